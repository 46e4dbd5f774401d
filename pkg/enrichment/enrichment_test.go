package enrichment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/bramble/pkg/marc"
)

func commonRecord(owner string, codes032 []marc.SubField, extra ...marc.Field) *marc.Record {
	rec := &marc.Record{Fields: []marc.Field{
		{Tag: "001", SubFields: []marc.SubField{{Code: "a", Value: "12345678"}, {Code: "b", Value: "870970"}}},
		{Tag: "004", SubFields: []marc.SubField{{Code: "a", Value: "e"}, {Code: "r", Value: "n"}}},
	}}
	if owner != "" {
		rec.Fields = append(rec.Fields, marc.Field{Tag: "996", SubFields: []marc.SubField{{Code: "a", Value: owner}}})
	}
	if len(codes032) > 0 {
		rec.Fields = append(rec.Fields, marc.Field{Tag: "032", SubFields: codes032})
	}
	rec.Fields = append(rec.Fields, extra...)
	return rec
}

// the Friday of ISO week 1 of 2024 is January 5th, so BKM202402
// resolves to that day
var (
	dayBeforeExtraction = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	dayAfterExtraction  = time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
)

func TestShouldCreateEnrichmentPlaceholderClassification(t *testing.T) {
	current := commonRecord("DBC", nil, marc.Field{Tag: "652", SubFields: []marc.SubField{{Code: "m", Value: "Ny Titel"}}})
	updating := commonRecord("DBC", nil)

	ok, reason := ShouldCreateEnrichmentAt(current, updating, dayAfterExtraction)
	assert.False(t, ok)
	assert.Contains(t, reason, "652m")
}

func TestShouldCreateEnrichmentTemporaryExtractionWeek(t *testing.T) {
	current := commonRecord("DBC", []marc.SubField{{Code: "a", Value: "DBI999999"}})
	updating := commonRecord("DBC", []marc.SubField{{Code: "a", Value: "DBI999999"}})

	ok, reason := ShouldCreateEnrichmentAt(current, updating, dayAfterExtraction)
	assert.False(t, ok)
	assert.Contains(t, reason, "032a")

	// same placeholder in 032x
	updating = commonRecord("DBC", []marc.SubField{{Code: "x", Value: "BKM999999"}})
	ok, reason = ShouldCreateEnrichmentAt(current, updating, dayAfterExtraction)
	assert.False(t, ok)
	assert.Contains(t, reason, "032x")
}

func TestShouldCreateEnrichmentOwnershipPromotion(t *testing.T) {
	// still in production and 008u missing, which alone would say no
	current := commonRecord("654321", []marc.SubField{{Code: "a", Value: "DBF202404"}})
	updating := commonRecord("DBC", []marc.SubField{{Code: "a", Value: "DBF202404"}})

	ok, reason := ShouldCreateEnrichmentAt(current, updating, dayBeforeExtraction)
	assert.True(t, ok)
	assert.Contains(t, reason, "ownership promoted")
}

func TestShouldCreateEnrichmentUnderProduction(t *testing.T) {
	future := []marc.SubField{{Code: "a", Value: "DBF202404"}, {Code: "x", Value: "BKM202404"}}

	t.Run("no revision marker", func(t *testing.T) {
		current := commonRecord("DBC", future)
		updating := commonRecord("DBC", future)

		ok, _ := ShouldCreateEnrichmentAt(current, updating, dayBeforeExtraction)
		assert.False(t, ok)
	})

	t.Run("revision with unchanged codes", func(t *testing.T) {
		current := commonRecord("DBC", future)
		updating := commonRecord("DBC", future, marc.Field{Tag: "008", SubFields: []marc.SubField{{Code: "u", Value: "r"}}})

		ok, _ := ShouldCreateEnrichmentAt(current, updating, dayBeforeExtraction)
		assert.False(t, ok)
	})

	t.Run("revision with changed codes", func(t *testing.T) {
		current := commonRecord("DBC", []marc.SubField{{Code: "a", Value: "DBF202404"}})
		updating := commonRecord("DBC", future, marc.Field{Tag: "008", SubFields: []marc.SubField{{Code: "u", Value: "r"}}})

		ok, _ := ShouldCreateEnrichmentAt(current, updating, dayBeforeExtraction)
		assert.True(t, ok)
	})
}

func TestShouldCreateEnrichmentPublishedRecord(t *testing.T) {
	past := []marc.SubField{{Code: "a", Value: "BKM202402"}}
	current := commonRecord("DBC", past)
	updating := commonRecord("DBC", past)

	ok, reason := ShouldCreateEnrichmentAt(current, updating, dayAfterExtraction)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestShouldCreateEnrichmentOrderInvariance(t *testing.T) {
	codes := []marc.SubField{
		{Code: "a", Value: "DBF202404"},
		{Code: "x", Value: "BKM202404"},
		{Code: "a", Value: "UTI202404"},
	}
	reversed := []marc.SubField{codes[2], codes[1], codes[0]}

	current := commonRecord("DBC", codes)
	revision := marc.Field{Tag: "008", SubFields: []marc.SubField{{Code: "u", Value: "r"}}}

	ordered, _ := ShouldCreateEnrichmentAt(current, commonRecord("DBC", codes, revision), dayBeforeExtraction)
	shuffled, _ := ShouldCreateEnrichmentAt(current, commonRecord("DBC", reversed, revision), dayBeforeExtraction)

	assert.Equal(t, ordered, shuffled)
	assert.False(t, ordered)
}

func TestIsUnderProduction(t *testing.T) {
	tests := []struct {
		name     string
		codes    []marc.SubField
		today    time.Time
		expected bool
	}{
		{"no 032", nil, dayBeforeExtraction, false},
		{"future week", []marc.SubField{{Code: "a", Value: "BKM202402"}}, dayBeforeExtraction, true},
		{"past week", []marc.SubField{{Code: "a", Value: "BKM202402"}}, dayAfterExtraction, false},
		{"placeholder week", []marc.SubField{{Code: "a", Value: "DBI999999"}}, dayAfterExtraction, true},
		{"past beats future", []marc.SubField{{Code: "a", Value: "BKM202402"}, {Code: "x", Value: "DBF203001"}}, dayAfterExtraction, false},
		{"unknown code ignored", []marc.SubField{{Code: "a", Value: "OVE202402"}}, dayBeforeExtraction, false},
		{"ownership stamp ignored", []marc.SubField{{Code: "&", Value: "710100"}}, dayBeforeExtraction, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := commonRecord("DBC", tt.codes)
			assert.Equal(t, tt.expected, IsUnderProduction(rec, tt.today))
		})
	}
}

func TestHasPublishingDate(t *testing.T) {
	assert.True(t, hasPublishingDate("DBF202404"))
	assert.True(t, hasPublishingDate("dbf202404"))
	assert.True(t, hasPublishingDate("BKM999999"))
	assert.False(t, hasPublishingDate("OVE202404"))
	assert.False(t, hasPublishingDate("DBF20240"))
	assert.False(t, hasPublishingDate("DBF2024044"))
	assert.False(t, hasPublishingDate("DBF20240a"))
}

func TestIsPublished(t *testing.T) {
	rec := commonRecord("DBC", []marc.SubField{{Code: "a", Value: "BKM202402"}})
	assert.True(t, IsPublished(rec, dayAfterExtraction))
	assert.False(t, IsPublished(rec, dayBeforeExtraction))
	assert.False(t, IsPublished(commonRecord("DBC", nil), dayAfterExtraction))
}
