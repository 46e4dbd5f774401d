package extensions

import (
	"github.com/Ramsey-B/bramble/pkg/marc"
)

const ownershipStamp = "&"

// field tag classes libraries may extend on a nationally shared record
var (
	noteFieldTags              = []string{"504", "530"}
	controlledSubjectFieldTags = []string{"600", "610", "630", "666"}
	freeSubjectFieldTags       = []string{"631", "664", "665"}
)

const (
	catalogueCodeTag  = "032"
	classificationTag = "652"
)

func tagIn(tag string, tags []string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func fieldsWithTags(rec *marc.Record, tags []string) []marc.Field {
	var out []marc.Field
	for i := range rec.Fields {
		if tagIn(rec.Fields[i].Tag, tags) {
			out = append(out, rec.Fields[i])
		}
	}
	return out
}

func copyField(f marc.Field) marc.Field {
	out := marc.Field{Tag: f.Tag, Indicators: f.Indicators}
	out.SubFields = append(out.SubFields, f.SubFields...)
	return out
}

func withoutStamp(f marc.Field) marc.Field {
	out := marc.Field{Tag: f.Tag, Indicators: f.Indicators}
	for _, sf := range f.SubFields {
		if sf.Code != ownershipStamp {
			out.SubFields = append(out.SubFields, sf)
		}
	}
	return out
}

func fieldEqual(a, b marc.Field) bool {
	if a.Tag != b.Tag || len(a.SubFields) != len(b.SubFields) {
		return false
	}
	for i := range a.SubFields {
		if a.SubFields[i] != b.SubFields[i] {
			return false
		}
	}
	return true
}

// fieldsEqualIgnoreStamp compares two field lists position by
// position, ignoring the ownership stamp subfield.
func fieldsEqualIgnoreStamp(a, b []marc.Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !fieldEqual(withoutStamp(a[i]), withoutStamp(b[i])) {
			return false
		}
	}
	return true
}

// hasStamp reports whether the field carries any ownership stamp.
func hasStamp(f marc.Field) bool {
	_, ok := f.SubValue(ownershipStamp)
	return ok
}

// isNationallyOwned reports whether a field list belongs to the
// national cataloguer. Some nationally owned fields carry stamps like
// "0" or "1", so a field counts as library-owned only when its stamp
// starts with "7".
func isNationallyOwned(fields []marc.Field) bool {
	for _, f := range fields {
		libraryOwned := false
		for _, sf := range f.SubFields {
			if sf.Code == ownershipStamp && len(sf.Value) > 0 && sf.Value[0] == '7' {
				libraryOwned = true
				break
			}
		}
		if !libraryOwned {
			return true
		}
	}
	return false
}

func stamped(f marc.Field, agency string) marc.Field {
	out := withoutStamp(f)
	out.SubFields = append([]marc.SubField{{Code: ownershipStamp, Value: agency}}, out.SubFields...)
	return out
}

// IsFieldChangedInOtherRecord reports whether the field differs from
// every same-tagged field in the record. For the identifying field the
// comparison tolerates a missing modified/created stamp, and for
// authority-expanded fields the derived subfields are aligned before
// comparing.
func IsFieldChangedInOtherRecord(field marc.Field, record *marc.Record) bool {
	clone := record.Clone()
	writer := marc.NewWriter(clone)

	if field.Tag == "001" {
		if c, ok := field.SubValue("c"); ok {
			writer.AddOrReplaceSubField("001", "c", c)
		}
		if d, ok := field.SubValue("d"); ok {
			writer.AddOrReplaceSubField("001", "d", d)
		}
	}

	// 9xx fields gain w/x/z subfields when authority records are
	// expanded into them; align those before comparing
	if tagIn(field.Tag, []string{"900", "910", "945", "952"}) {
		for i := range clone.Fields {
			if clone.Fields[i].Tag != field.Tag {
				continue
			}
			for _, code := range []string{"w", "x", "z"} {
				if v, ok := field.SubValue(code); ok {
					replaceOrAppendSubField(&clone.Fields[i], code, v)
				} else {
					removeSubField(&clone.Fields[i], code)
				}
			}
		}
	}

	for i := range clone.Fields {
		if clone.Fields[i].Tag == field.Tag && fieldEqual(clone.Fields[i], field) {
			return false
		}
	}
	return true
}

func replaceOrAppendSubField(f *marc.Field, code, value string) {
	for i := range f.SubFields {
		if f.SubFields[i].Code == code {
			f.SubFields[i].Value = value
			return
		}
	}
	f.SubFields = append(f.SubFields, marc.SubField{Code: code, Value: value})
}

func removeSubField(f *marc.Field, code string) {
	kept := f.SubFields[:0]
	for _, sf := range f.SubFields {
		if sf.Code != code {
			kept = append(kept, sf)
		}
	}
	f.SubFields = kept
}
