package marc

import (
	"sort"
	"time"
)

// timestampLayout is the layout used for 001c/001d values.
const timestampLayout = "20060102150405"

// Writer mutates a record in place. Callers that need rollback safety
// Clone first.
type Writer struct {
	record *Record
}

func NewWriter(r *Record) Writer {
	return Writer{record: r}
}

func (w Writer) AddField(f Field) {
	w.record.Fields = append(w.record.Fields, f)
}

// AddSubField appends code/value to the first field with the given tag,
// creating the field if the record has none.
func (w Writer) AddSubField(tag, code, value string) {
	for i := range w.record.Fields {
		if w.record.Fields[i].Tag == tag {
			w.record.Fields[i].SubFields = append(w.record.Fields[i].SubFields, SubField{Code: code, Value: value})
			return
		}
	}
	w.record.Fields = append(w.record.Fields, Field{
		Tag:        tag,
		Indicators: "00",
		SubFields:  []SubField{{Code: code, Value: value}},
	})
}

// AddOrReplaceSubField sets the first occurrence of tag/code to value,
// appending when no occurrence exists.
func (w Writer) AddOrReplaceSubField(tag, code, value string) {
	for i := range w.record.Fields {
		if w.record.Fields[i].Tag != tag {
			continue
		}
		for j := range w.record.Fields[i].SubFields {
			if w.record.Fields[i].SubFields[j].Code == code {
				w.record.Fields[i].SubFields[j].Value = value
				return
			}
		}
	}
	w.AddSubField(tag, code, value)
}

// RemoveField removes every field with the given tag.
func (w Writer) RemoveField(tag string) {
	kept := w.record.Fields[:0]
	for i := range w.record.Fields {
		if w.record.Fields[i].Tag != tag {
			kept = append(kept, w.record.Fields[i])
		}
	}
	w.record.Fields = kept
}

// RemoveSubField removes every tag/code occurrence. Fields left with no
// subfields are removed entirely.
func (w Writer) RemoveSubField(tag, code string) {
	kept := w.record.Fields[:0]
	for i := range w.record.Fields {
		f := w.record.Fields[i]
		if f.Tag == tag {
			subs := f.SubFields[:0]
			for _, sf := range f.SubFields {
				if sf.Code != code {
					subs = append(subs, sf)
				}
			}
			f.SubFields = subs
			if len(f.SubFields) == 0 {
				continue
			}
		}
		kept = append(kept, f)
	}
	w.record.Fields = kept
}

// MarkForDeletion sets the deletion mark (004r = "d").
func (w Writer) MarkForDeletion() {
	w.AddOrReplaceSubField(tagType, "r", "d")
}

// SetModified stamps 001c. 001d is stamped too when missing, so a
// freshly created record carries both.
func (w Writer) SetModified(t time.Time) {
	stamp := t.Format(timestampLayout)
	w.AddOrReplaceSubField(tagID, subfieldUpdated, stamp)
	if created, _ := w.reader().Value(tagID, subfieldCreated); created == "" {
		w.AddOrReplaceSubField(tagID, subfieldCreated, stamp)
	}
}

// SetCreated overwrites 001d. Used when a stored record is overwritten
// and the first-seen instant must survive.
func (w Writer) SetCreated(stamp string) {
	w.AddOrReplaceSubField(tagID, subfieldCreated, stamp)
}

// Sort orders fields by tag, preserving the relative order of fields
// that share a tag.
func (w Writer) Sort() {
	sort.SliceStable(w.record.Fields, func(i, j int) bool {
		return w.record.Fields[i].Tag < w.record.Fields[j].Tag
	})
}

func (w Writer) reader() Reader {
	return NewReader(w.record)
}
