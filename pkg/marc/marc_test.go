package marc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return &Record{Fields: []Field{
		{Tag: "001", Indicators: "00", SubFields: []SubField{
			{Code: "a", Value: "12345678"},
			{Code: "b", Value: "870970"},
			{Code: "c", Value: "20240101120000"},
			{Code: "d", Value: "20200101120000"},
		}},
		{Tag: "004", Indicators: "00", SubFields: []SubField{
			{Code: "a", Value: "e"},
			{Code: "r", Value: "n"},
		}},
		{Tag: "245", Indicators: "00", SubFields: []SubField{
			{Code: "a", Value: "En titel"},
		}},
	}}
}

func TestReaderIdentity(t *testing.T) {
	r := NewReader(testRecord())

	assert.Equal(t, "12345678", r.RecordID())

	agency, err := r.AgencyID()
	require.NoError(t, err)
	assert.Equal(t, 870970, agency)

	assert.Equal(t, "e", r.TypeCode())
	assert.False(t, r.MarkedForDeletion())
	assert.Equal(t, "20200101120000", r.CreatedDate())
}

func TestReaderParentID(t *testing.T) {
	tests := []struct {
		name     string
		fields   []Field
		expected string
	}{
		{
			name:     "no 014",
			fields:   nil,
			expected: "",
		},
		{
			name: "plain parent link",
			fields: []Field{
				{Tag: "014", SubFields: []SubField{{Code: "a", Value: "11111111"}}},
			},
			expected: "11111111",
		},
		{
			name: "014 with foreign x is not a parent",
			fields: []Field{
				{Tag: "014", SubFields: []SubField{{Code: "a", Value: "11111111"}, {Code: "x", Value: "ANM"}}},
			},
			expected: "",
		},
		{
			name: "014 with DEB x is a parent",
			fields: []Field{
				{Tag: "014", SubFields: []SubField{{Code: "a", Value: "22222222"}, {Code: "x", Value: "DEB"}}},
			},
			expected: "22222222",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(&Record{Fields: tt.fields})
			assert.Equal(t, tt.expected, r.ParentID())
		})
	}
}

func TestWriterAddOrReplaceSubField(t *testing.T) {
	rec := testRecord()
	w := NewWriter(rec)

	w.AddOrReplaceSubField("004", "r", "d")
	assert.True(t, NewReader(rec).MarkedForDeletion())

	w.AddOrReplaceSubField("032", "a", "DBF202402")
	v, ok := NewReader(rec).Value("032", "a")
	require.True(t, ok)
	assert.Equal(t, "DBF202402", v)
}

func TestWriterRemoveSubFieldDropsEmptyField(t *testing.T) {
	rec := &Record{Fields: []Field{
		{Tag: "652", SubFields: []SubField{{Code: "m", Value: "99.4"}}},
	}}
	NewWriter(rec).RemoveSubField("652", "m")
	assert.False(t, NewReader(rec).HasField("652"))
}

func TestWriterSetModifiedPreservesCreated(t *testing.T) {
	rec := testRecord()
	NewWriter(rec).SetModified(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	r := NewReader(rec)
	assert.Equal(t, "20250601103000", r.ModifiedDate())
	assert.Equal(t, "20200101120000", r.CreatedDate())
}

func TestWriterSetModifiedStampsCreatedWhenMissing(t *testing.T) {
	rec := &Record{Fields: []Field{
		{Tag: "001", SubFields: []SubField{{Code: "a", Value: "1"}, {Code: "b", Value: "870970"}}},
	}}
	NewWriter(rec).SetModified(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC))

	r := NewReader(rec)
	assert.Equal(t, "20250601103000", r.ModifiedDate())
	assert.Equal(t, "20250601103000", r.CreatedDate())
}

func TestWriterSortIsStable(t *testing.T) {
	rec := &Record{Fields: []Field{
		{Tag: "245", SubFields: []SubField{{Code: "a", Value: "title"}}},
		{Tag: "001", SubFields: []SubField{{Code: "a", Value: "1"}}},
		{Tag: "245", SubFields: []SubField{{Code: "c", Value: "second"}}},
		{Tag: "004", SubFields: []SubField{{Code: "a", Value: "e"}}},
	}}
	NewWriter(rec).Sort()

	tags := []string{}
	for _, f := range rec.Fields {
		tags = append(tags, f.Tag)
	}
	assert.Equal(t, []string{"001", "004", "245", "245"}, tags)
	// fields sharing a tag keep their relative order
	_, hasA := rec.Fields[2].SubValue("a")
	assert.True(t, hasA)
}

func TestCodecRoundTrip(t *testing.T) {
	rec := testRecord()

	data, err := Encode(rec)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, rec.Equal(decoded))
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "00921 n"},
		{"unknown keys", `{"fields": [], "leader": "x"}`},
		{"trailing content", `{"fields": []}{"fields": []}`},
		{"field without tag", `{"fields": [{"subfields": [{"code": "a", "value": "1"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode([]byte(tt.payload))
			assert.Nil(t, rec)

			var ce *CodecError
			require.ErrorAs(t, err, &ce)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := testRecord()
	clone := rec.Clone()
	NewWriter(clone).AddOrReplaceSubField("245", "a", "Ny titel")

	v, _ := NewReader(rec).Value("245", "a")
	assert.Equal(t, "En titel", v)
	assert.False(t, rec.Equal(clone))
}
