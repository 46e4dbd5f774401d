package extensions

import (
	"strings"

	"github.com/Ramsey-B/bramble/pkg/marc"
)

func isOveValue(sf marc.SubField) bool {
	return sf.Code == "x" && strings.HasPrefix(sf.Value, "OVE")
}

// cleanCatalog drops the ownership stamp and OVE codes unless all is
// set, in which case the subfields pass through untouched.
func cleanCatalog(subs []marc.SubField, all bool) []marc.SubField {
	if all {
		return append([]marc.SubField{}, subs...)
	}
	var out []marc.SubField
	for _, sf := range subs {
		if sf.Code == ownershipStamp || isOveValue(sf) {
			continue
		}
		out = append(out, sf)
	}
	return out
}

// sameCatalogSubFields compares two 032 fields as multisets. With all
// unset the stamp and OVE codes are excluded from the comparison.
func sameCatalogSubFields(a, b marc.Field, all bool) bool {
	left := cleanCatalog(a.SubFields, all)
	right := cleanCatalog(b.SubFields, all)

	for _, sf := range left {
		found := -1
		for i, other := range right {
			if other == sf {
				found = i
				break
			}
		}
		if found < 0 {
			return false
		}
		right = append(right[:found], right[found+1:]...)
	}
	return len(right) == 0
}

func oveCode(f marc.Field) string {
	for _, sf := range f.SubFields {
		if isOveValue(sf) {
			return sf.Value
		}
	}
	return ""
}

// withOveAndStamp strips any existing stamp and OVE code and, when an
// OVE code is present, re-adds it together with the acting agency's
// stamp.
func withOveAndStamp(f marc.Field, agency, ove string) marc.Field {
	out := marc.Field{Tag: f.Tag, Indicators: f.Indicators}
	for _, sf := range f.SubFields {
		if sf.Code == ownershipStamp || isOveValue(sf) {
			continue
		}
		out.SubFields = append(out.SubFields, sf)
	}
	if ove != "" {
		out.SubFields = append(out.SubFields,
			marc.SubField{Code: ownershipStamp, Value: agency},
			marc.SubField{Code: "x", Value: ove},
		)
	}
	return out
}

// mergeCatalogFields merges the incoming 032 with the stored one. An
// authorized agency may only change the stamp and OVE code; any other
// difference is a violation and ok comes back false.
func mergeCatalogFields(newFields, curFields []marc.Field, agency string) ([]marc.Field, bool) {
	var current, incoming marc.Field
	current.Tag, incoming.Tag = catalogueCodeTag, catalogueCodeTag
	if len(curFields) > 0 {
		current = curFields[0]
	}
	if len(newFields) > 0 {
		incoming = newFields[0]
	}

	// identical including stamp and OVE
	if sameCatalogSubFields(incoming, current, true) {
		return curFields, true
	}

	// incoming record dropped 032 entirely; only allowed when the
	// stored field held nothing but a stamp and OVE codes
	if len(newFields) == 0 {
		if len(cleanCatalog(current.SubFields, true)) == 0 {
			return nil, true
		}
		return curFields, false
	}

	// no stored 032; the incoming one may only introduce an OVE code
	if len(curFields) == 0 {
		if len(cleanCatalog(incoming.SubFields, false)) == 0 {
			return []marc.Field{withOveAndStamp(incoming, agency, oveCode(incoming))}, true
		}
		return nil, false
	}

	// both exist; the difference must be confined to stamp and OVE
	if sameCatalogSubFields(incoming, current, false) {
		return []marc.Field{withOveAndStamp(incoming, agency, oveCode(incoming))}, true
	}
	return curFields, false
}

// catalogCodesExtended reports whether the incoming 032 keeps every
// stored production code (possibly adding new ones). Used for the
// root/central-bureau guarded path.
func catalogCodesExtended(incoming, current marc.Field) bool {
	cur := cleanCatalog(current.SubFields, false)
	in := cleanCatalog(incoming.SubFields, false)
	for _, sf := range cur {
		found := false
		for _, other := range in {
			if other == sf {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
