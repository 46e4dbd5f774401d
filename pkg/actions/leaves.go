package actions

import (
	"context"
	"strconv"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
)

// field tags whose *5/*6 subfields point at authority records
var authorityLinkTags = []string{"600", "610", "700", "710", "770", "780"}

// StoreRecordAction writes the record wholesale. The content is
// sorted and timestamp-stamped before encoding; the first-seen stamp
// of any already stored content survives the overwrite.
type StoreRecordAction struct {
	BaseAction
	state    *State
	record   *marc.Record
	mimeType string
	deleted  bool
}

func NewStoreRecordAction(state *State, record *marc.Record, mimeType string) *StoreRecordAction {
	return &StoreRecordAction{state: state, record: record, mimeType: mimeType}
}

func (a *StoreRecordAction) Name() string { return "StoreRecord" }

func (a *StoreRecordAction) Perform(ctx context.Context) (*Result, error) {
	record := a.record.Clone()
	reader := marc.NewReader(record)
	agencyID, err := reader.AgencyID()
	if err != nil {
		return nil, bramblerrors.NewValidationErrorf("record has no readable agency id: %v", err).AddField("001")
	}
	id := models.NewRecordID(reader.RecordID(), agencyID)

	created, err := a.storedCreated(ctx, id)
	if err != nil {
		return nil, err
	}

	writer := marc.NewWriter(record)
	if created != "" {
		writer.SetCreated(created)
	}
	now := a.state.now()
	writer.SetModified(now)
	writer.Sort()

	content, err := marc.Encode(record)
	if err != nil {
		return nil, err
	}

	stored := &rawrepo.StoredRecord{
		ID:       id,
		Content:  content,
		MimeType: a.mimeType,
		Modified: now,
		Deleted:  a.deleted,
	}
	if err := a.state.Store.SaveRecord(ctx, stored); err != nil {
		return nil, err
	}

	a.state.Logger.WithContext(ctx).WithFields(map[string]any{
		"record":  id.String(),
		"deleted": a.deleted,
	}).Debugf("stored record")
	return NewOKResult(), nil
}

// storedCreated returns the first-seen stamp of the content already
// stored under id, or "" for a fresh record.
func (a *StoreRecordAction) storedCreated(ctx context.Context, id models.RecordID) (string, error) {
	current, err := fetchDecoded(ctx, a.state, id)
	if err != nil {
		if bramblerrors.IsNotFoundError(err) {
			return "", nil
		}
		return "", err
	}
	return marc.NewReader(current).CreatedDate(), nil
}

// RemoveLinksAction clears every outgoing relation so the following
// link actions re-establish the full edge set from scratch.
type RemoveLinksAction struct {
	BaseAction
	state *State
	id    models.RecordID
}

func NewRemoveLinksAction(state *State, id models.RecordID) *RemoveLinksAction {
	return &RemoveLinksAction{state: state, id: id}
}

func (a *RemoveLinksAction) Name() string { return "RemoveLinks" }

func (a *RemoveLinksAction) Perform(ctx context.Context) (*Result, error) {
	if err := a.state.Store.RemoveLinks(ctx, a.id); err != nil {
		return nil, err
	}
	return NewOKResult(), nil
}

// LinkParentAction links a volume to the head record its content
// declares.
type LinkParentAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewLinkParentAction(state *State, record *marc.Record) *LinkParentAction {
	return &LinkParentAction{state: state, record: record}
}

func (a *LinkParentAction) Name() string { return "LinkParent" }

func (a *LinkParentAction) Perform(ctx context.Context) (*Result, error) {
	reader := marc.NewReader(a.record)
	agencyID, err := reader.AgencyID()
	if err != nil {
		return nil, bramblerrors.NewValidationErrorf("record has no readable agency id: %v", err).AddField("001")
	}
	parentAgencyID, err := reader.ParentAgencyID()
	if err != nil {
		parentAgencyID = agencyID
	}

	child := models.NewRecordID(reader.RecordID(), agencyID)
	parent := models.NewRecordID(reader.ParentID(), parentAgencyID)
	if err := a.state.Store.SetParent(ctx, child, parent); err != nil {
		return nil, err
	}
	return NewOKResult(), nil
}

// LinkAuthorityRecordsAction links the record to every authority
// record its name and subject fields reference through *5/*6 pairs.
type LinkAuthorityRecordsAction struct {
	BaseAction
	state  *State
	record *marc.Record
}

func NewLinkAuthorityRecordsAction(state *State, record *marc.Record) *LinkAuthorityRecordsAction {
	return &LinkAuthorityRecordsAction{state: state, record: record}
}

func (a *LinkAuthorityRecordsAction) Name() string { return "LinkAuthorityRecords" }

func (a *LinkAuthorityRecordsAction) Perform(ctx context.Context) (*Result, error) {
	reader := marc.NewReader(a.record)
	agencyID, err := reader.AgencyID()
	if err != nil {
		return nil, bramblerrors.NewValidationErrorf("record has no readable agency id: %v", err).AddField("001")
	}
	from := models.NewRecordID(reader.RecordID(), agencyID)

	for _, tag := range authorityLinkTags {
		for _, field := range reader.Fields(tag) {
			authorityAgency, ok := field.SubValue("5")
			if !ok {
				continue
			}
			authorityID, ok := field.SubValue("6")
			if !ok {
				continue
			}
			targetAgency, err := strconv.Atoi(authorityAgency)
			if err != nil {
				return nil, bramblerrors.NewValidationErrorf("authority reference %q is not an agency id", authorityAgency).
					AddField(tag).AddSubField("5").AddRecordID(from.BibliographicRecordID)
			}
			to := models.NewRecordID(authorityID, targetAgency)
			if err := a.state.Store.LinkAuthority(ctx, from, to); err != nil {
				return nil, err
			}
		}
	}
	return NewOKResult(), nil
}

// LinkEnrichmentAction links an enrichment to the shared record it
// layers onto.
type LinkEnrichmentAction struct {
	BaseAction
	state      *State
	enrichment models.RecordID
	common     models.RecordID
}

func NewLinkEnrichmentAction(state *State, enrichment, common models.RecordID) *LinkEnrichmentAction {
	return &LinkEnrichmentAction{state: state, enrichment: enrichment, common: common}
}

func (a *LinkEnrichmentAction) Name() string { return "LinkEnrichment" }

func (a *LinkEnrichmentAction) Perform(ctx context.Context) (*Result, error) {
	if err := a.state.Store.LinkEnrichment(ctx, a.enrichment, a.common); err != nil {
		return nil, err
	}
	return NewOKResult(), nil
}

// EnqueueRecordAction notifies downstream consumers of the change.
// Every mutating subtree ends with one of these.
type EnqueueRecordAction struct {
	BaseAction
	state   *State
	id      models.RecordID
	deleted bool
}

func NewEnqueueRecordAction(state *State, id models.RecordID, deleted bool) *EnqueueRecordAction {
	return &EnqueueRecordAction{state: state, id: id, deleted: deleted}
}

func (a *EnqueueRecordAction) Name() string { return "EnqueueRecord" }

func (a *EnqueueRecordAction) Perform(ctx context.Context) (*Result, error) {
	provider, err := a.state.provider(ctx, a.state.AgencyID)
	if err != nil {
		return nil, err
	}
	if err := a.state.Store.Enqueue(ctx, a.id, provider, a.state.Settings.Priority, a.deleted); err != nil {
		return nil, err
	}
	return NewOKResult(), nil
}

// DeleteRecordAction tombstones the stored record. Content survives
// for audit; only the flag and the deletion mark inside the content
// change.
type DeleteRecordAction struct {
	BaseAction
	state *State
	id    models.RecordID
}

func NewDeleteRecordAction(state *State, id models.RecordID) *DeleteRecordAction {
	return &DeleteRecordAction{state: state, id: id}
}

func (a *DeleteRecordAction) Name() string { return "DeleteRecord" }

func (a *DeleteRecordAction) Perform(ctx context.Context) (*Result, error) {
	stored, err := a.state.Store.FetchRecord(ctx, a.id)
	if err != nil {
		return nil, err
	}

	record, err := marc.Decode(stored.Content)
	if err != nil {
		return nil, err
	}
	now := a.state.now()
	writer := marc.NewWriter(record)
	writer.MarkForDeletion()
	writer.SetModified(now)

	content, err := marc.Encode(record)
	if err != nil {
		return nil, err
	}
	stored.Content = content
	stored.Modified = now
	stored.Deleted = true
	if err := a.state.Store.SaveRecord(ctx, stored); err != nil {
		return nil, err
	}

	a.state.Logger.WithContext(ctx).WithFields(map[string]any{"record": a.id.String()}).Infof("tombstoned record")
	return NewOKResult(), nil
}
