package actions

import (
	"context"
	"sort"

	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
)

// UpdateSchoolCommonRecordAction handles the shared school description.
// The record itself is stored as an enrichment of the common record,
// and every school-library enrichment of the same bibliographic record
// is relinked to follow it: onto the school description while it lives,
// back onto the common record when it is deleted.
type UpdateSchoolCommonRecordAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewUpdateSchoolCommonRecordAction(state *State, record *marc.Record) *UpdateSchoolCommonRecordAction {
	return &UpdateSchoolCommonRecordAction{state: state, record: record}
}

func (a *UpdateSchoolCommonRecordAction) Name() string { return "UpdateSchoolCommonRecord" }

func (a *UpdateSchoolCommonRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}

	if marc.NewReader(a.record).MarkedForDeletion() {
		relinks, err := a.relinkSchoolEnrichments(ctx, id, models.CommonAgency)
		if err != nil {
			return nil, err
		}
		a.Append(relinks...)
		a.Append(NewUpdateEnrichmentRecordActionWithParent(a.state, a.record, models.CommonAgency))
		return NewOKResult(), nil
	}

	a.Append(NewUpdateEnrichmentRecordActionWithParent(a.state, a.record, models.CommonAgency))
	relinks, err := a.relinkSchoolEnrichments(ctx, id, models.SchoolCommonAgency)
	if err != nil {
		return nil, err
	}
	a.Append(relinks...)
	return NewOKResult(), nil
}

// relinkSchoolEnrichments points every school-library enrichment of the
// bibliographic record at the given shared parent.
func (a *UpdateSchoolCommonRecordAction) relinkSchoolEnrichments(ctx context.Context, id models.RecordID, targetAgency int) ([]Action, error) {
	agencies, err := a.state.Store.AgenciesForRecord(ctx, id.BibliographicRecordID)
	if err != nil {
		return nil, err
	}
	sort.Ints(agencies)

	target := models.NewRecordID(id.BibliographicRecordID, targetAgency)
	var out []Action
	for _, agencyID := range agencies {
		if !models.IsSchoolAgency(agencyID) {
			continue
		}
		enrichmentID := models.NewRecordID(id.BibliographicRecordID, agencyID)
		out = append(out,
			NewRemoveLinksAction(a.state, enrichmentID),
			NewLinkEnrichmentAction(a.state, enrichmentID, target),
			NewEnqueueRecordAction(a.state, enrichmentID, false),
		)
	}
	return out, nil
}
