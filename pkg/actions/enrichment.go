package actions

import (
	"context"
	"strconv"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/rawrepo"
)

// fields every enrichment carries regardless of local additions
var enrichmentCarrierTags = map[string]bool{"001": true, "004": true, "996": true}

// UpdateEnrichmentRecordAction stores an agency's enrichment of a
// shared record. The content is first collapsed against the shared
// record: a classification identical to the parent's and fields the
// parent already carries verbatim are stripped, so only the agency's
// own contribution is persisted. An enrichment that collapses to
// nothing beyond identity is deleted instead of stored empty.
type UpdateEnrichmentRecordAction struct {
	BaseAction
	state        *State
	record       *marc.Record
	parentAgency int
}

func NewUpdateEnrichmentRecordAction(state *State, record *marc.Record) *UpdateEnrichmentRecordAction {
	return &UpdateEnrichmentRecordAction{state: state, record: record}
}

// NewUpdateEnrichmentRecordActionWithParent pins the shared record the
// enrichment layers onto instead of resolving it from the agency.
func NewUpdateEnrichmentRecordActionWithParent(state *State, record *marc.Record, parentAgency int) *UpdateEnrichmentRecordAction {
	return &UpdateEnrichmentRecordAction{state: state, record: record, parentAgency: parentAgency}
}

func (a *UpdateEnrichmentRecordAction) Name() string { return "UpdateEnrichmentRecord" }

func (a *UpdateEnrichmentRecordAction) Perform(ctx context.Context) (*Result, error) {
	id, err := recordID(a.record)
	if err != nil {
		return nil, err
	}
	common, err := a.resolveParent(ctx, id)
	if err != nil {
		return nil, err
	}

	parent, err := fetchDecoded(ctx, a.state, common)
	if err != nil {
		if bramblerrors.IsNotFoundError(err) {
			return nil, bramblerrors.NewStructuralErrorf("enrichment %s has no shared record to layer onto", id.String()).AddRecord(common.BibliographicRecordID, common.AgencyID)
		}
		return nil, err
	}

	exists, err := a.state.Store.RecordExists(ctx, id)
	if err != nil {
		return nil, err
	}

	record := a.record
	deletion := marc.NewReader(record).MarkedForDeletion()
	if !deletion {
		record = collapseEnrichment(record, parent)
	}

	if deletion || isEmptyEnrichment(record) {
		if !exists {
			// nothing stored and nothing to store
			return NewOKResult(), nil
		}
		a.Append(
			NewRemoveLinksAction(a.state, id),
			NewDeleteRecordAction(a.state, id),
			NewEnqueueRecordAction(a.state, id, true),
		)
		return NewOKResult(), nil
	}

	a.Append(
		NewStoreRecordAction(a.state, record, rawrepo.MimeTypeEnrichment),
		NewRemoveLinksAction(a.state, id),
		NewLinkEnrichmentAction(a.state, id, common),
		NewEnqueueRecordAction(a.state, id, false),
	)
	return NewOKResult(), nil
}

// resolveParent picks the shared record the enrichment belongs under.
// School libraries layer onto the shared school description when one
// exists, otherwise onto the common record like everyone else.
func (a *UpdateEnrichmentRecordAction) resolveParent(ctx context.Context, id models.RecordID) (models.RecordID, error) {
	if a.parentAgency != 0 {
		return models.NewRecordID(id.BibliographicRecordID, a.parentAgency), nil
	}
	if models.IsSchoolAgency(id.AgencyID) {
		school := models.NewRecordID(id.BibliographicRecordID, models.SchoolCommonAgency)
		exists, err := a.state.Store.RecordExists(ctx, school)
		if err != nil {
			return models.RecordID{}, err
		}
		if exists {
			return school, nil
		}
	}
	return models.NewRecordID(id.BibliographicRecordID, models.CommonAgency), nil
}

// collapseEnrichment strips content the shared record already carries:
// the classification when it matches the parent's, and any other field
// restating a parent field of the same tag. Identity fields and a
// diverging classification always survive.
func collapseEnrichment(record, parent *marc.Record) *marc.Record {
	collapsed := record.Clone()
	if len(marc.NewReader(parent).Fields("652")) > 0 && !ClassificationsChanged(parent, collapsed) {
		marc.NewWriter(collapsed).RemoveField("652")
	}

	kept := collapsed.Fields[:0]
	for i := range collapsed.Fields {
		field := &collapsed.Fields[i]
		if enrichmentCarrierTags[field.Tag] || field.Tag == "652" || !parentCarriesField(parent, field) {
			kept = append(kept, *field)
		}
	}
	collapsed.Fields = kept
	return collapsed
}

// subfield codes that carry ownership stamps rather than content
var stampSubFieldCodes = map[string]bool{"&": true, "0": true, "1": true, "4": true}

func parentCarriesField(parent *marc.Record, field *marc.Field) bool {
	for _, parentField := range marc.NewReader(parent).Fields(field.Tag) {
		if fieldContentEqual(field, parentField) {
			return true
		}
	}
	return false
}

func fieldContentEqual(a, b *marc.Field) bool {
	av, bv := contentPairs(a), contentPairs(b)
	if len(av) != len(bv) {
		return false
	}
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}

func contentPairs(f *marc.Field) []string {
	var out []string
	for _, sf := range f.SubFields {
		if !stampSubFieldCodes[sf.Code] {
			out = append(out, sf.Code+":"+sf.Value)
		}
	}
	return out
}

// isEmptyEnrichment reports whether the record carries only identity
// and housekeeping fields.
func isEmptyEnrichment(record *marc.Record) bool {
	for _, field := range record.Fields {
		if !enrichmentCarrierTags[field.Tag] {
			return false
		}
	}
	return true
}

// CreateEnrichmentRecordWithClassificationsAction builds a fresh
// enrichment for an agency, copying the classification of the stored
// shared record so the agency keeps seeing it after the shared record
// moves on.
type CreateEnrichmentRecordWithClassificationsAction struct {
	BaseAction
	state    *State
	current  *marc.Record
	common   models.RecordID
	agencyID int
}

func NewCreateEnrichmentRecordWithClassificationsAction(state *State, current *marc.Record, common models.RecordID, agencyID int) *CreateEnrichmentRecordWithClassificationsAction {
	return &CreateEnrichmentRecordWithClassificationsAction{state: state, current: current, common: common, agencyID: agencyID}
}

func (a *CreateEnrichmentRecordWithClassificationsAction) Name() string {
	return "CreateEnrichmentRecordWithClassifications"
}

func (a *CreateEnrichmentRecordWithClassificationsAction) Perform(ctx context.Context) (*Result, error) {
	id := models.NewRecordID(a.common.BibliographicRecordID, a.agencyID)
	record := newEnrichmentRecord(a.current, id)

	a.Append(
		NewStoreRecordAction(a.state, record, rawrepo.MimeTypeEnrichment),
		NewRemoveLinksAction(a.state, id),
		NewLinkEnrichmentAction(a.state, id, a.common),
		NewEnqueueRecordAction(a.state, id, false),
	)
	return NewOKResult(), nil
}

func newEnrichmentRecord(current *marc.Record, id models.RecordID) *marc.Record {
	record := &marc.Record{}
	writer := marc.NewWriter(record)
	writer.AddSubField("001", "a", id.BibliographicRecordID)
	writer.AddSubField("001", "b", strconv.Itoa(id.AgencyID))
	writer.AddSubField("004", "r", "n")
	writer.AddSubField("004", "a", marc.NewReader(current).TypeCode())

	copyClassifications(current, record)
	return record
}

// UpdateClassificationsInEnrichmentRecordAction refreshes the
// classification fields of an existing enrichment from the stored
// shared record, leaving the agency's own additions intact.
type UpdateClassificationsInEnrichmentRecordAction struct {
	BaseAction
	state   *State
	current *marc.Record
	id      models.RecordID
}

func NewUpdateClassificationsInEnrichmentRecordAction(state *State, current *marc.Record, id models.RecordID) *UpdateClassificationsInEnrichmentRecordAction {
	return &UpdateClassificationsInEnrichmentRecordAction{state: state, current: current, id: id}
}

func (a *UpdateClassificationsInEnrichmentRecordAction) Name() string {
	return "UpdateClassificationsInEnrichmentRecord"
}

func (a *UpdateClassificationsInEnrichmentRecordAction) Perform(ctx context.Context) (*Result, error) {
	record, err := fetchDecoded(ctx, a.state, a.id)
	if err != nil {
		return nil, err
	}

	marc.NewWriter(record).RemoveField("652")
	copyClassifications(a.current, record)

	a.Append(
		NewStoreRecordAction(a.state, record, rawrepo.MimeTypeEnrichment),
		NewEnqueueRecordAction(a.state, a.id, false),
	)
	return NewOKResult(), nil
}

func copyClassifications(from, to *marc.Record) {
	writer := marc.NewWriter(to)
	for _, field := range marc.NewReader(from).Fields("652") {
		copied := marc.Field{Tag: field.Tag, Indicators: field.Indicators}
		copied.SubFields = append(copied.SubFields, field.SubFields...)
		writer.AddField(copied)
	}
}

// MoveEnrichmentRecordAction relinks an enrichment under a different
// shared record, typically after the shared description it pointed at
// was merged away.
type MoveEnrichmentRecordAction struct {
	BaseAction
	state  *State
	id     models.RecordID
	target models.RecordID
}

func NewMoveEnrichmentRecordAction(state *State, id, target models.RecordID) *MoveEnrichmentRecordAction {
	return &MoveEnrichmentRecordAction{state: state, id: id, target: target}
}

func (a *MoveEnrichmentRecordAction) Name() string { return "MoveEnrichmentRecord" }

func (a *MoveEnrichmentRecordAction) Perform(ctx context.Context) (*Result, error) {
	exists, err := a.state.Store.RecordExists(ctx, a.target)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, bramblerrors.NewStructuralErrorf("cannot move enrichment %s onto missing record %s", a.id.String(), a.target.String()).AddRecord(a.target.BibliographicRecordID, a.target.AgencyID)
	}

	record, err := fetchDecoded(ctx, a.state, a.id)
	if err != nil {
		return nil, err
	}
	moved := record.Clone()
	marc.NewWriter(moved).AddOrReplaceSubField("001", "a", a.target.BibliographicRecordID)
	movedID := models.NewRecordID(a.target.BibliographicRecordID, a.id.AgencyID)

	a.Append(
		NewRemoveLinksAction(a.state, a.id),
		NewDeleteRecordAction(a.state, a.id),
		NewEnqueueRecordAction(a.state, a.id, true),
		NewStoreRecordAction(a.state, moved, rawrepo.MimeTypeEnrichment),
		NewLinkEnrichmentAction(a.state, movedID, a.target),
		NewEnqueueRecordAction(a.state, movedID, false),
	)
	return NewOKResult(), nil
}
