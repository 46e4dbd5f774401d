package actions

import (
	"context"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/extensions"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
)

// UpdateCommonRecordAction is the entry composite for shared records.
// It collapses note/subject extensions against the stored record,
// then hands off to the single or volume flow.
type UpdateCommonRecordAction struct {
	BaseAction
	state  *State
	record *marc.Record
	kind   models.Kind
}

func NewUpdateCommonRecordAction(state *State, record *marc.Record, kind models.Kind) *UpdateCommonRecordAction {
	return &UpdateCommonRecordAction{state: state, record: record, kind: kind}
}

func (a *UpdateCommonRecordAction) Name() string { return "UpdateCommonRecord" }

func (a *UpdateCommonRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}

	result := NewOKResult()
	record := a.record

	exists, err := a.state.Store.RecordExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists && !marc.NewReader(record).MarkedForDeletion() {
		current, err := fetchDecoded(ctx, a.state, id)
		if err != nil {
			return nil, err
		}
		if extensions.IsNationalCommonRecord(current) {
			merged, entries, err := a.state.Extensions.Collapse(ctx, record, current, a.state.AgencyID)
			if err != nil {
				return nil, err
			}
			record = merged
			result.Append(entries...)
		}
	}

	if a.kind == models.KindVolume {
		a.Append(NewUpdateVolumeRecordAction(a.state, record))
	} else {
		a.Append(NewUpdateSingleRecordAction(a.state, record))
	}
	return result, nil
}

// UpdateSingleRecordAction routes a single shared record to create,
// overwrite or delete based on what the graph already holds.
type UpdateSingleRecordAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewUpdateSingleRecordAction(state *State, record *marc.Record) *UpdateSingleRecordAction {
	return &UpdateSingleRecordAction{state: state, record: record}
}

func (a *UpdateSingleRecordAction) Name() string { return "UpdateSingleRecord" }

func (a *UpdateSingleRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	exists, err := a.state.Store.RecordExists(ctx, id)
	if err != nil {
		return nil, err
	}
	deletion := marc.NewReader(a.record).MarkedForDeletion()

	switch {
	case deletion && !exists:
		entry := models.NewErrorEntry("cannot delete a record that does not exist")
		entry.RecordID = id.BibliographicRecordID
		entry.AgencyID = id.AgencyID
		return NewFailedValidationResult(entry), nil
	case deletion:
		a.Append(NewDeleteCommonRecordAction(a.state, a.record))
	case !exists:
		a.Append(NewCreateSingleRecordAction(a.state, a.record, rawrepo.MimeTypeMARC))
	default:
		a.Append(NewOverwriteSingleRecordAction(a.state, a.record, rawrepo.MimeTypeMARC))
	}
	return NewOKResult(), nil
}

// UpdateVolumeRecordAction is UpdateSingleRecordAction for volume
// records; the create and overwrite flows additionally maintain the
// parent link.
type UpdateVolumeRecordAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewUpdateVolumeRecordAction(state *State, record *marc.Record) *UpdateVolumeRecordAction {
	return &UpdateVolumeRecordAction{state: state, record: record}
}

func (a *UpdateVolumeRecordAction) Name() string { return "UpdateVolumeRecord" }

func (a *UpdateVolumeRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	exists, err := a.state.Store.RecordExists(ctx, id)
	if err != nil {
		return nil, err
	}
	deletion := marc.NewReader(a.record).MarkedForDeletion()

	switch {
	case deletion && !exists:
		entry := models.NewErrorEntry("cannot delete a record that does not exist")
		entry.RecordID = id.BibliographicRecordID
		entry.AgencyID = id.AgencyID
		return NewFailedValidationResult(entry), nil
	case deletion:
		a.Append(NewDeleteCommonRecordAction(a.state, a.record))
	case !exists:
		a.Append(NewCreateVolumeRecordAction(a.state, a.record, rawrepo.MimeTypeMARC))
	default:
		a.Append(NewOverwriteVolumeRecordAction(a.state, a.record, rawrepo.MimeTypeMARC))
	}
	return NewOKResult(), nil
}

// UpdateLocalRecordAction handles records an agency owns outright. No
// enrichment fan-out and no shared-record policy apply; the record is
// stored, linked and enqueued as-is.
type UpdateLocalRecordAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewUpdateLocalRecordAction(state *State, record *marc.Record) *UpdateLocalRecordAction {
	return &UpdateLocalRecordAction{state: state, record: record}
}

func (a *UpdateLocalRecordAction) Name() string { return "UpdateLocalRecord" }

func (a *UpdateLocalRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	reader := marc.NewReader(a.record)

	if reader.MarkedForDeletion() {
		exists, err := a.state.Store.RecordExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			entry := models.NewErrorEntry("cannot delete a record that does not exist")
			entry.RecordID = id.BibliographicRecordID
			entry.AgencyID = id.AgencyID
			return NewFailedValidationResult(entry), nil
		}
		children, err := a.state.Store.Children(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			return nil, bramblerrors.NewStructuralErrorf("record %s still has %d volume(s) and cannot be deleted", id.String(), len(children)).AddRecord(id.BibliographicRecordID, id.AgencyID)
		}
		a.Append(
			NewRemoveLinksAction(a.state, id),
			NewDeleteRecordAction(a.state, id),
			NewEnqueueRecordAction(a.state, id, true),
		)
		return NewOKResult(), nil
	}

	a.Append(NewStoreRecordAction(a.state, a.record, rawrepo.MimeTypeMARC))
	a.Append(NewRemoveLinksAction(a.state, id))
	if reader.ParentID() != "" {
		if err := checkVolumeParent(ctx, a.state, a.record, id); err != nil {
			return nil, err
		}
		a.Append(NewLinkParentAction(a.state, a.record))
	}
	a.Append(NewEnqueueRecordAction(a.state, id, false))
	return NewOKResult(), nil
}
