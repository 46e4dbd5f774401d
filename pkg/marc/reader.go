package marc

import (
	"strconv"
	"strings"
)

const (
	tagID           = "001"
	tagType         = "004"
	tagParent       = "014"
	subfieldID      = "a"
	subfieldAgency  = "b"
	subfieldUpdated = "c"
	subfieldCreated = "d"
)

// Reader gives typed access to the well-known fields of a record. It
// never mutates; missing fields read as empty values.
type Reader struct {
	record *Record
}

func NewReader(r *Record) Reader {
	return Reader{record: r}
}

// Value returns the first value for tag/code across all fields with
// that tag.
func (r Reader) Value(tag, code string) (string, bool) {
	for i := range r.record.Fields {
		if r.record.Fields[i].Tag != tag {
			continue
		}
		if v, ok := r.record.Fields[i].SubValue(code); ok {
			return v, true
		}
	}
	return "", false
}

// Values returns every value for tag/code, in record order.
func (r Reader) Values(tag, code string) []string {
	var values []string
	for i := range r.record.Fields {
		if r.record.Fields[i].Tag != tag {
			continue
		}
		values = append(values, r.record.Fields[i].SubValues(code)...)
	}
	return values
}

func (r Reader) HasField(tag string) bool {
	for i := range r.record.Fields {
		if r.record.Fields[i].Tag == tag {
			return true
		}
	}
	return false
}

func (r Reader) HasValue(tag, code, value string) bool {
	for i := range r.record.Fields {
		if r.record.Fields[i].Tag == tag && r.record.Fields[i].HasSubValue(code, value) {
			return true
		}
	}
	return false
}

// Fields returns all fields with the given tag, in record order.
func (r Reader) Fields(tag string) []*Field {
	var out []*Field
	for i := range r.record.Fields {
		if r.record.Fields[i].Tag == tag {
			out = append(out, &r.record.Fields[i])
		}
	}
	return out
}

// RecordID returns the bibliographic record id (001a).
func (r Reader) RecordID() string {
	v, _ := r.Value(tagID, subfieldID)
	return v
}

// AgencyID returns the owning agency (001b) as an int.
func (r Reader) AgencyID() (int, error) {
	v, ok := r.Value(tagID, subfieldAgency)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

func (r Reader) AgencyIDString() string {
	v, _ := r.Value(tagID, subfieldAgency)
	return v
}

// ParentID returns the parent record id (014a) for volumes and
// sections. A 014 with an x subfield pointing elsewhere than the
// bibliographic hierarchy does not count as a parent link.
func (r Reader) ParentID() string {
	for _, f := range r.Fields(tagParent) {
		x, hasX := f.SubValue("x")
		if hasX && x != "DEB" {
			continue
		}
		if a, ok := f.SubValue(subfieldID); ok {
			return a
		}
	}
	return ""
}

// ParentAgencyID returns 014b when set, otherwise the record's own
// agency. Volumes and their heads always live under the same agency.
func (r Reader) ParentAgencyID() (int, error) {
	for _, f := range r.Fields(tagParent) {
		if b, ok := f.SubValue(subfieldAgency); ok {
			return strconv.Atoi(strings.TrimSpace(b))
		}
	}
	return r.AgencyID()
}

// MarkedForDeletion reports whether the record carries the deletion
// mark (004r == "d").
func (r Reader) MarkedForDeletion() bool {
	v, _ := r.Value(tagType, "r")
	return v == "d"
}

// TypeCode returns 004a (e.g. "e" single, "h" head, "b" volume).
func (r Reader) TypeCode() string {
	v, _ := r.Value(tagType, subfieldID)
	return v
}

// Owner returns the cataloguing owner (996a), empty for local records.
func (r Reader) Owner() string {
	v, _ := r.Value("996", subfieldID)
	return v
}

func (r Reader) CreatedDate() string {
	v, _ := r.Value(tagID, subfieldCreated)
	return v
}

func (r Reader) ModifiedDate() string {
	v, _ := r.Value(tagID, subfieldUpdated)
	return v
}
