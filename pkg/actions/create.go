package actions

import (
	"context"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
)

// CreateSingleRecordAction stores a record that does not exist yet and
// establishes its authority links.
type CreateSingleRecordAction struct {
	BaseAction
	state    *State
	record   *marc.Record
	mimeType string
}

func NewCreateSingleRecordAction(state *State, record *marc.Record, mimeType string) *CreateSingleRecordAction {
	return &CreateSingleRecordAction{state: state, record: record, mimeType: mimeType}
}

func (a *CreateSingleRecordAction) Name() string { return "CreateSingleRecord" }

func (a *CreateSingleRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}

	a.Append(
		NewStoreRecordAction(a.state, a.record, a.mimeType),
		NewRemoveLinksAction(a.state, id),
		NewLinkAuthorityRecordsAction(a.state, a.record),
		NewEnqueueRecordAction(a.state, id, false),
	)
	return NewOKResult(), nil
}

// CreateVolumeRecordAction stores a volume record and links it under
// its head record. The head must already exist, and a volume must
// never declare itself as its own parent; both are checked before any
// mutation.
type CreateVolumeRecordAction struct {
	BaseAction
	state    *State
	record   *marc.Record
	mimeType string
}

func NewCreateVolumeRecordAction(state *State, record *marc.Record, mimeType string) *CreateVolumeRecordAction {
	return &CreateVolumeRecordAction{state: state, record: record, mimeType: mimeType}
}

func (a *CreateVolumeRecordAction) Name() string { return "CreateVolumeRecord" }

func (a *CreateVolumeRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	if err := checkVolumeParent(ctx, a.state, a.record, id); err != nil {
		return nil, err
	}

	a.Append(
		NewStoreRecordAction(a.state, a.record, a.mimeType),
		NewRemoveLinksAction(a.state, id),
		NewLinkParentAction(a.state, a.record),
		NewLinkAuthorityRecordsAction(a.state, a.record),
		NewEnqueueRecordAction(a.state, id, false),
	)
	return NewOKResult(), nil
}

// checkVolumeParent verifies the structural preconditions of a volume
// store: a declared parent, no self-parenting, and a parent already in
// the graph. Runs before any mutation.
func checkVolumeParent(ctx context.Context, state *State, record *marc.Record, id models.RecordID) error {
	parent, err := parentID(record)
	if err != nil {
		return err
	}
	if parent.BibliographicRecordID == "" {
		return bramblerrors.NewStructuralErrorf("volume record %s declares no parent", id.String()).AddRecord(id.BibliographicRecordID, id.AgencyID)
	}
	if parent == id {
		return bramblerrors.NewStructuralErrorf("volume record %s declares itself as its own parent", id.String()).AddRecord(id.BibliographicRecordID, id.AgencyID)
	}
	exists, err := state.Store.RecordExists(ctx, parent)
	if err != nil {
		return err
	}
	if !exists {
		return bramblerrors.NewStructuralErrorf("parent record %s of volume %s does not exist", parent.String(), id.String()).AddRecord(parent.BibliographicRecordID, parent.AgencyID)
	}
	return nil
}

func recordID(record *marc.Record) (models.RecordID, error) {
	reader := marc.NewReader(record)
	agencyID, err := reader.AgencyID()
	if err != nil {
		return models.RecordID{}, bramblerrors.NewValidationErrorf("record has no readable agency id: %v", err).AddField("001")
	}
	return models.NewRecordID(reader.RecordID(), agencyID), nil
}

func parentID(record *marc.Record) (models.RecordID, error) {
	reader := marc.NewReader(record)
	parent := reader.ParentID()
	if parent == "" {
		return models.RecordID{}, nil
	}
	parentAgency, err := reader.ParentAgencyID()
	if err != nil {
		agencyID, agencyErr := reader.AgencyID()
		if agencyErr != nil {
			return models.RecordID{}, bramblerrors.NewValidationErrorf("record has no readable agency id: %v", agencyErr).AddField("001")
		}
		parentAgency = agencyID
	}
	return models.NewRecordID(parent, parentAgency), nil
}

