package marc

// SubField is a single code/value pair inside a field.
type SubField struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// Field is a tagged group of subfields. Tags repeat; order is
// significant and preserved through the codec.
type Field struct {
	Tag        string     `json:"tag"`
	Indicators string     `json:"indicators,omitempty"`
	SubFields  []SubField `json:"subfields"`
}

// Record is the parsed bibliographic record. It is a plain data holder;
// use a Reader for typed access and a Writer for mutation.
type Record struct {
	Fields []Field `json:"fields"`
}

// SubValue returns the value of the first subfield with the given code.
func (f *Field) SubValue(code string) (string, bool) {
	for _, sf := range f.SubFields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

// SubValues returns the values of every subfield with the given code,
// in field order.
func (f *Field) SubValues(code string) []string {
	var values []string
	for _, sf := range f.SubFields {
		if sf.Code == code {
			values = append(values, sf.Value)
		}
	}
	return values
}

func (f *Field) HasSubValue(code, value string) bool {
	for _, sf := range f.SubFields {
		if sf.Code == code && sf.Value == value {
			return true
		}
	}
	return false
}

func (f *Field) clone() Field {
	out := Field{Tag: f.Tag, Indicators: f.Indicators}
	out.SubFields = make([]SubField, len(f.SubFields))
	copy(out.SubFields, f.SubFields)
	return out
}

// Clone returns a deep copy. Actions mutate copies so a failed subtree
// never leaves a half-edited record behind.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{Fields: make([]Field, 0, len(r.Fields))}
	for i := range r.Fields {
		out.Fields = append(out.Fields, r.Fields[i].clone())
	}
	return out
}

// Equal compares two records field by field, order included.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for i := range r.Fields {
		if !fieldsEqual(&r.Fields[i], &other.Fields[i]) {
			return false
		}
	}
	return true
}

func fieldsEqual(a, b *Field) bool {
	if a.Tag != b.Tag || a.Indicators != b.Indicators || len(a.SubFields) != len(b.SubFields) {
		return false
	}
	for i := range a.SubFields {
		if a.SubFields[i] != b.SubFields[i] {
			return false
		}
	}
	return true
}
