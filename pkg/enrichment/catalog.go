package enrichment

import (
	"sort"
	"strings"
	"time"

	"github.com/Ramsey-B/bramble/pkg/marc"
)

// catalogCodes are the 3-letter prefixes in 032a/032x that carry an
// extraction week. Other prefixes (OVE among them) are not part of the
// production calculation.
var catalogCodes = map[string]bool{
	"DBF": true, "DLF": true, "DBI": true, "DMF": true, "DMO": true,
	"DPF": true, "BKM": true, "GBF": true, "GMO": true, "GPF": true,
	"FPF": true, "DBR": true, "UTI": true,
}

// temporaryDate is the placeholder week used while the real extraction
// week is unknown. It always counts as a future date.
const temporaryDate = "999999"

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// hasPublishingDate reports whether a 032 subfield value is a catalog
// code followed by an extraction week: exactly 9 chars, a known
// 3-letter code, and 6 digits (or the 999999 placeholder).
func hasPublishingDate(value string) bool {
	if len(value) != 9 {
		return false
	}
	if !catalogCodes[strings.ToUpper(value[:3])] {
		return false
	}
	date := value[3:]
	return date == temporaryDate || isDigits(date)
}

// fridayOfWeek returns the Friday of the given ISO week.
func fridayOfWeek(year, week int) time.Time {
	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	daysSinceMonday := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -daysSinceMonday)
	return monday.AddDate(0, 0, (week-1)*7+4)
}

// hasFuturePublishingDate reports whether the extraction week embedded
// in value lies on or after today. The week resolves to the Friday of
// the week before the printed one, matching how extraction runs are
// scheduled.
func hasFuturePublishingDate(value string, today time.Time) bool {
	date := value[3:9]
	if date == temporaryDate {
		return true
	}

	year := atoiOrZero(value[3:7])
	week := atoiOrZero(value[7:9])

	production := fridayOfWeek(year, week-1)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return !production.Before(day)
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// IsUnderProduction reports whether the record is still being
// catalogued: at least one future extraction week and none in the
// past. A single past week means the record went public.
func IsUnderProduction(record *marc.Record, today time.Time) bool {
	if IsPublished(record, today) {
		return false
	}
	for _, f := range marc.NewReader(record).Fields("032") {
		for _, sf := range f.SubFields {
			if hasPublishingDate(sf.Value) && hasFuturePublishingDate(sf.Value, today) {
				return true
			}
		}
	}
	return false
}

// IsPublished reports whether the record has at least one extraction
// week in the past.
func IsPublished(record *marc.Record, today time.Time) bool {
	for _, f := range marc.NewReader(record).Fields("032") {
		for _, sf := range f.SubFields {
			if hasPublishingDate(sf.Value) && !hasFuturePublishingDate(sf.Value, today) {
				return true
			}
		}
	}
	return false
}

// productionCodes lists every valid code:value pair in 032, sorted so
// two records can be compared regardless of field order.
func productionCodes(record *marc.Record) []string {
	var out []string
	for _, f := range marc.NewReader(record).Fields("032") {
		for _, sf := range f.SubFields {
			if hasPublishingDate(sf.Value) {
				out = append(out, sf.Code+":"+sf.Value)
			}
		}
	}
	sort.Strings(out)
	return out
}

// sameProductionCodes compares the 032 catalog-code sets of two
// records, order-insensitively.
func sameProductionCodes(a, b *marc.Record) bool {
	av, bv := productionCodes(a), productionCodes(b)
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
