package actions

import (
	"context"
	"sort"

	"github.com/Ramsey-B/bramble/pkg/enrichment"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
	"github.com/Ramsey-B/bramble/pkg/vip"
)

// OverwriteSingleRecordAction replaces an existing shared record. When
// the classification changes, every agency holding the record gets its
// enrichment created or updated so the old classification stays
// visible to them.
type OverwriteSingleRecordAction struct {
	BaseAction
	state    *State
	record   *marc.Record
	mimeType string
}

func NewOverwriteSingleRecordAction(state *State, record *marc.Record, mimeType string) *OverwriteSingleRecordAction {
	return &OverwriteSingleRecordAction{state: state, record: record, mimeType: mimeType}
}

func (a *OverwriteSingleRecordAction) Name() string { return "OverwriteSingleRecord" }

func (a *OverwriteSingleRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	current, err := fetchDecoded(ctx, a.state, id)
	if err != nil {
		return nil, err
	}
	MergeOwnership(a.record, current)

	a.Append(
		NewStoreRecordAction(a.state, a.record, a.mimeType),
		NewRemoveLinksAction(a.state, id),
		NewLinkAuthorityRecordsAction(a.state, a.record),
	)

	fanOut, err := enrichmentFanOut(ctx, a.state, current, a.record, id)
	if err != nil {
		return nil, err
	}
	a.Append(fanOut...)

	a.Append(NewEnqueueRecordAction(a.state, id, false))
	return NewOKResult(), nil
}

// OverwriteVolumeRecordAction replaces an existing volume record,
// re-checking its parent linkage before any mutation.
type OverwriteVolumeRecordAction struct {
	BaseAction
	state    *State
	record   *marc.Record
	mimeType string
}

func NewOverwriteVolumeRecordAction(state *State, record *marc.Record, mimeType string) *OverwriteVolumeRecordAction {
	return &OverwriteVolumeRecordAction{state: state, record: record, mimeType: mimeType}
}

func (a *OverwriteVolumeRecordAction) Name() string { return "OverwriteVolumeRecord" }

func (a *OverwriteVolumeRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	if err := checkVolumeParent(ctx, a.state, a.record, id); err != nil {
		return nil, err
	}
	current, err := fetchDecoded(ctx, a.state, id)
	if err != nil {
		return nil, err
	}
	MergeOwnership(a.record, current)

	a.Append(
		NewStoreRecordAction(a.state, a.record, a.mimeType),
		NewRemoveLinksAction(a.state, id),
		NewLinkParentAction(a.state, a.record),
		NewLinkAuthorityRecordsAction(a.state, a.record),
	)

	fanOut, err := enrichmentFanOut(ctx, a.state, current, a.record, id)
	if err != nil {
		return nil, err
	}
	a.Append(fanOut...)

	a.Append(NewEnqueueRecordAction(a.state, id, false))
	return NewOKResult(), nil
}

func fetchDecoded(ctx context.Context, state *State, id models.RecordID) (*marc.Record, error) {
	stored, err := state.Store.FetchRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return marc.Decode(stored.Content)
}

// enrichmentFanOut builds the per-agency subtrees an overwrite with a
// classification change needs: agencies with holdings keep the old
// classification through an enrichment, created or updated depending
// on whether they already have a record of their own.
func enrichmentFanOut(ctx context.Context, state *State, current, updating *marc.Record, id models.RecordID) ([]Action, error) {
	if !ClassificationsChanged(current, updating) {
		return nil, nil
	}

	holdings, err := state.Holdings.AgenciesWithHoldings(ctx, id.BibliographicRecordID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, nil
	}

	existing, err := state.Store.AgenciesForRecord(ctx, id.BibliographicRecordID)
	if err != nil {
		return nil, err
	}
	hasRecord := make(map[int]bool, len(existing))
	for _, agency := range existing {
		hasRecord[agency] = true
	}

	agencies := make([]int, 0, len(holdings))
	for agency := range holdings {
		if !models.IsCommonAgency(agency) && agency != models.DBCEnrichmentAgency {
			agencies = append(agencies, agency)
		}
	}
	sort.Ints(agencies)

	var fanOut []Action
	for _, agency := range agencies {
		usesEnrichments, err := state.Permissions.HasFeature(ctx, agency, vip.FeatureUseEnrichments)
		if err != nil {
			return nil, err
		}
		if !usesEnrichments {
			continue
		}

		if hasRecord[agency] {
			enrichmentID := models.NewRecordID(id.BibliographicRecordID, agency)
			stored, err := state.Store.FetchRecord(ctx, enrichmentID)
			if err != nil {
				return nil, err
			}
			if stored.MimeType != rawrepo.MimeTypeEnrichment {
				// the agency maintains a full local record; leave it alone
				continue
			}
			fanOut = append(fanOut, NewUpdateClassificationsInEnrichmentRecordAction(state, current, enrichmentID))
			continue
		}

		if ok, reason := enrichment.ShouldCreateEnrichment(current, updating); ok {
			fanOut = append(fanOut, NewCreateEnrichmentRecordWithClassificationsAction(state, current, id, agency))
		} else {
			state.Logger.WithContext(ctx).WithFields(map[string]any{
				"record": id.String(),
				"agency": agency,
				"reason": reason,
			}).Debugf("skipping enrichment creation")
		}
	}
	return fanOut, nil
}
