// Package extensions merges library-added notes, subjects and catalog
// codes into nationally shared records.
package extensions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/vip"
)

// nationalOwner is the 996a value marking a record as nationally
// catalogued.
const nationalOwner = "DBC"

// exclusionaryCodePrefixes in 032x take a record out of the national
// extension rules even when the owner is national.
var exclusionaryCodePrefixes = []string{"BKM", "NET", "SF"}

// Permissions is the slice of the rules service the handler needs.
type Permissions interface {
	HasFeature(ctx context.Context, agencyID int, feature vip.Feature) (bool, error)
	IsAuthRootOrCB(ctx context.Context, agencyID int) (bool, error)
}

// Handler applies the extension rules. It never rejects a record
// outright: unauthorized edits come back as warning entries and the
// caller decides whether they block the update.
type Handler struct {
	permissions Permissions
	logger      ectologger.Logger
}

func NewHandler(permissions Permissions, logger ectologger.Logger) *Handler {
	return &Handler{permissions: permissions, logger: logger}
}

// IsNationalCommonRecord reports whether the record is subject to the
// extension rules: nationally owned, with a catalog-code field whose
// codes are not all in the exclusionary families.
func IsNationalCommonRecord(rec *marc.Record) bool {
	reader := marc.NewReader(rec)
	if reader.Owner() != nationalOwner {
		return false
	}
	for _, f := range reader.Fields(catalogueCodeTag) {
		if _, hasA := f.SubValue("a"); !hasA {
			continue
		}
		excluded := false
		for _, x := range f.SubValues("x") {
			for _, prefix := range exclusionaryCodePrefixes {
				if strings.HasPrefix(x, prefix) {
					excluded = true
				}
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}

// Collapse merges the incoming record with the stored one under the
// acting agency's permissions. current is nil when no shared record
// exists yet. The returned entries are warnings about edits the agency
// was not entitled to make; the record itself always comes back whole.
func (h *Handler) Collapse(ctx context.Context, incoming, current *marc.Record, agencyID int) (*marc.Record, []models.MessageEntry, error) {
	logger := h.logger.WithContext(ctx).WithFields(map[string]any{"agencyId": agencyID})

	reader := marc.NewReader(incoming)
	recID := reader.RecordID()
	agency := strconv.Itoa(agencyID)
	var entries []models.MessageEntry

	if current == nil {
		if reader.Owner() != nationalOwner && reader.HasField(catalogueCodeTag) {
			rootOrCB, err := h.permissions.IsAuthRootOrCB(ctx, agencyID)
			if err != nil {
				return nil, nil, err
			}
			if !rootOrCB {
				entries = append(entries, h.warn("catalog codes may only be set by a root or central bureau agency", catalogueCodeTag, recID, agencyID))
				return incoming, entries, nil
			}
			entries = append(entries, h.validateCatalogCodes(incoming, recID, agencyID)...)
			result := incoming.Clone()
			merged, _ := mergeCatalogFields(fieldsWithTags(result, []string{catalogueCodeTag}), nil, agency)
			marc.NewWriter(result).RemoveField(catalogueCodeTag)
			result.Fields = append(result.Fields, merged...)
			marc.NewWriter(result).Sort()
			return result, entries, nil
		}
		return incoming, entries, nil
	}

	if !IsNationalCommonRecord(current) {
		logger.Debugf("record %s is not nationally shared, no extension rules apply", recID)
		entries = append(entries, h.validateCatalogCodes(incoming, recID, agencyID)...)
		return incoming, entries, nil
	}

	canNotes, err := h.permissions.HasFeature(ctx, agencyID, vip.FeatureCommonNotes)
	if err != nil {
		return nil, nil, err
	}
	canSubjects, err := h.permissions.HasFeature(ctx, agencyID, vip.FeatureCommonSubjects)
	if err != nil {
		return nil, nil, err
	}
	rootOrCB, err := h.permissions.IsAuthRootOrCB(ctx, agencyID)
	if err != nil {
		return nil, nil, err
	}

	extendable := append([]string{catalogueCodeTag, classificationTag}, noteFieldTags...)
	extendable = append(extendable, controlledSubjectFieldTags...)
	extendable = append(extendable, freeSubjectFieldTags...)

	result := &marc.Record{}
	for i := range current.Fields {
		if !tagIn(current.Fields[i].Tag, extendable) {
			result.Fields = append(result.Fields, copyField(current.Fields[i]))
		}
	}

	// catalog codes: only root/central-bureau agencies, and only
	// stamp/OVE changes or genuine extensions of the stored set
	result.Fields = append(result.Fields, h.collapseCatalog(incoming, current, rootOrCB, agency, recID, agencyID, &entries)...)

	// note fields are handled tag by tag
	for _, tag := range noteFieldTags {
		result.Fields = append(result.Fields, h.collapseClass(
			fieldsWithTags(incoming, []string{tag}),
			fieldsWithTags(current, []string{tag}),
			current, canNotes, agency, recID, agencyID, &entries)...)
	}

	// controlled subjects are one collection, free subjects another
	result.Fields = append(result.Fields, h.collapseClass(
		fieldsWithTags(incoming, controlledSubjectFieldTags),
		fieldsWithTags(current, controlledSubjectFieldTags),
		current, canSubjects, agency, recID, agencyID, &entries)...)
	result.Fields = append(result.Fields, h.collapseClass(
		fieldsWithTags(incoming, freeSubjectFieldTags),
		fieldsWithTags(current, freeSubjectFieldTags),
		current, canSubjects, agency, recID, agencyID, &entries)...)

	classification, err := h.collapseClassification(ctx, incoming, current, agency, recID, agencyID, &entries)
	if err != nil {
		return nil, nil, err
	}
	result.Fields = append(result.Fields, classification...)

	marc.NewWriter(result).Sort()
	return result, entries, nil
}

// collapseClass merges one class of extendable fields. Unchanged
// content keeps the stored fields. Changed content is applied with the
// stamping rule; when the agency lacks the permission or the fields
// belong to the national cataloguer the change still goes through, but
// every offending field yields a warning entry.
func (h *Handler) collapseClass(newFields, curFields []marc.Field, current *marc.Record, permitted bool, agency, recID string, agencyID int, entries *[]models.MessageEntry) []marc.Field {
	if fieldsEqualIgnoreStamp(newFields, curFields) {
		return curFields
	}

	if permitted && len(curFields) > 0 && isNationallyOwned(curFields) {
		for _, f := range newFields {
			if IsFieldChangedInOtherRecord(f, current) {
				*entries = append(*entries, h.warn(fmt.Sprintf("field %s is maintained by the national cataloguer and cannot be changed", f.Tag), f.Tag, recID, agencyID))
			}
		}
		return curFields
	}

	if !permitted {
		for _, f := range newFields {
			if IsFieldChangedInOtherRecord(f, current) {
				*entries = append(*entries, h.warn(fmt.Sprintf("agency %d is not allowed to edit field %s on record %s", agencyID, f.Tag, recID), f.Tag, recID, agencyID))
			}
		}
		if len(newFields) < len(curFields) {
			*entries = append(*entries, h.warn(fmt.Sprintf("agency %d is not allowed to delete fields on record %s", agencyID, recID), "", recID, agencyID))
		}
	}

	var out []marc.Field
	for _, f := range newFields {
		if hasStamp(f) {
			out = append(out, f)
			continue
		}
		kept := false
		for i := range curFields {
			if fieldEqual(withoutStamp(curFields[i]), withoutStamp(f)) {
				out = append(out, curFields[i])
				kept = true
				break
			}
		}
		if !kept {
			out = append(out, stamped(f, agency))
		}
	}
	return out
}

func (h *Handler) collapseCatalog(incoming, current *marc.Record, rootOrCB bool, agency, recID string, agencyID int, entries *[]models.MessageEntry) []marc.Field {
	newFields := fieldsWithTags(incoming, []string{catalogueCodeTag})
	curFields := fieldsWithTags(current, []string{catalogueCodeTag})

	if !rootOrCB {
		if !fieldsEqualIgnoreStamp(newFields, curFields) {
			*entries = append(*entries, h.warn(fmt.Sprintf("agency %d is not allowed to change catalog codes on record %s", agencyID, recID), catalogueCodeTag, recID, agencyID))
		}
		return curFields
	}

	merged, ok := mergeCatalogFields(newFields, curFields, agency)
	if ok {
		return merged
	}

	// a root/CB agency may still extend the stored code set
	if len(newFields) > 0 && len(curFields) > 0 && catalogCodesExtended(newFields[0], curFields[0]) {
		return []marc.Field{withOveAndStamp(newFields[0], agency, oveCode(newFields[0]))}
	}

	*entries = append(*entries, h.warn(fmt.Sprintf("catalog codes on record %s may only be extended, not replaced or removed", recID), catalogueCodeTag, recID, agencyID))
	return curFields
}

// collapseClassification guards 652. The only permitted change is
// assigning a first classification to a dissertation that has none,
// and only for agencies holding the dk5 feature.
func (h *Handler) collapseClassification(ctx context.Context, incoming, current *marc.Record, agency, recID string, agencyID int, entries *[]models.MessageEntry) ([]marc.Field, error) {
	newFields := fieldsWithTags(incoming, []string{classificationTag})
	curFields := fieldsWithTags(current, []string{classificationTag})

	if fieldsEqualIgnoreStamp(newFields, curFields) {
		return curFields, nil
	}

	curReader := marc.NewReader(current)
	if curReader.HasValue("008", "d", "m") && len(newFields) > 0 {
		canDK5, err := h.permissions.HasFeature(ctx, agencyID, vip.FeatureAddDK5ToPhd)
		if err != nil {
			return nil, err
		}
		curClassification, _ := curReader.Value(classificationTag, "m")
		newClassification, _ := marc.NewReader(incoming).Value(classificationTag, "m")

		if canDK5 && strings.EqualFold(curClassification, "uden klassemærke") && newClassification != "" {
			var out []marc.Field
			for _, f := range newFields {
				out = append(out, stamped(f, agency))
			}
			return out, nil
		}
	}

	*entries = append(*entries, h.warn(fmt.Sprintf("agency %d is not allowed to change the classification of record %s", agencyID, recID), classificationTag, recID, agencyID))
	return curFields, nil
}

// validateCatalogCodes flags 032a subfields on records owned outside
// the national catalogue; libraries may only supply 032x.
func (h *Handler) validateCatalogCodes(rec *marc.Record, recID string, agencyID int) []models.MessageEntry {
	var entries []models.MessageEntry
	for _, f := range marc.NewReader(rec).Fields(catalogueCodeTag) {
		if _, ok := f.SubValue("a"); ok {
			entries = append(entries, h.warn(fmt.Sprintf("libraries may only register catalog codes in 032x on record %s", recID), catalogueCodeTag, recID, agencyID))
		}
	}
	return entries
}

func (h *Handler) warn(message, field, recID string, agencyID int) models.MessageEntry {
	return models.MessageEntry{
		Type:     models.EntryWarning,
		Message:  message,
		Field:    field,
		RecordID: recID,
		AgencyID: agencyID,
	}
}
