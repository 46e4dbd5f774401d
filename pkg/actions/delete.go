package actions

import (
	"context"
	"sort"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/vip"
)

// DeleteCommonRecordAction tombstones a shared record and cascades to
// its enrichments. Live children block the deletion outright, and so
// does any agency that still has holdings and exports them; both are
// checked before any mutation.
type DeleteCommonRecordAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewDeleteCommonRecordAction(state *State, record *marc.Record) *DeleteCommonRecordAction {
	return &DeleteCommonRecordAction{state: state, record: record}
}

func (a *DeleteCommonRecordAction) Name() string { return "DeleteCommonRecord" }

func (a *DeleteCommonRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}

	children, err := a.state.Store.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		return nil, bramblerrors.NewStructuralErrorf("record %s still has %d volume(s) and cannot be deleted", id.String(), len(children)).AddRecord(id.BibliographicRecordID, id.AgencyID)
	}

	holdings, err := a.state.Holdings.AgenciesWithHoldings(ctx, id.BibliographicRecordID)
	if err != nil {
		return nil, err
	}
	blocking, err := agenciesExportingHoldings(ctx, a.state, holdings)
	if err != nil {
		return nil, err
	}
	if len(blocking) > 0 {
		var entries []models.MessageEntry
		for _, agency := range blocking {
			entry := models.NewErrorEntry("record cannot be deleted while the agency still has holdings on it")
			entry.RecordID = id.BibliographicRecordID
			entry.AgencyID = agency
			entries = append(entries, entry)
		}
		return NewFailedValidationResult(entries...), nil
	}

	enrichments, err := a.state.Store.Enrichments(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, enrichmentID := range enrichments {
		a.Append(
			NewRemoveLinksAction(a.state, enrichmentID),
			NewDeleteRecordAction(a.state, enrichmentID),
			NewEnqueueRecordAction(a.state, enrichmentID, true),
		)
	}

	a.Append(
		NewRemoveLinksAction(a.state, id),
		NewDeleteRecordAction(a.state, id),
		NewEnqueueRecordAction(a.state, id, true),
	)
	return NewOKResult(), nil
}

// agenciesExportingHoldings filters the holdings set down to agencies
// whose holdings are exported downstream. Agencies without the export
// feature keep holdings for internal use only and do not block
// deletions.
func agenciesExportingHoldings(ctx context.Context, state *State, holdings map[int]bool) ([]int, error) {
	agencies := make([]int, 0, len(holdings))
	for agency := range holdings {
		agencies = append(agencies, agency)
	}
	sort.Ints(agencies)

	var blocking []int
	for _, agency := range agencies {
		exports, err := state.Permissions.HasFeature(ctx, agency, vip.FeatureExportHoldings)
		if err != nil {
			return nil, err
		}
		if exports {
			blocking = append(blocking, agency)
		}
	}
	return blocking, nil
}
