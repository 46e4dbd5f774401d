// Package enrichment decides whether updating a shared record should
// fan out enrichment records to the institutions that hold it.
package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/bramble/pkg/marc"
	"github.com/Ramsey-B/bramble/pkg/models"
)

// ShouldCreateEnrichment evaluates the updating record against the
// stored one and decides whether enrichments should be created. The
// returned reason is logged when the answer is no (and for the
// ownership override when it is yes).
func ShouldCreateEnrichment(current, updating *marc.Record) (bool, string) {
	return ShouldCreateEnrichmentAt(current, updating, time.Now())
}

// ShouldCreateEnrichmentAt is ShouldCreateEnrichment with an explicit
// evaluation day.
func ShouldCreateEnrichmentAt(current, updating *marc.Record, today time.Time) (bool, string) {
	currentReader := marc.NewReader(current)
	updatingReader := marc.NewReader(updating)

	if v, _ := currentReader.Value("652", "m"); isPlaceholderClassification(v) {
		return false, fmt.Sprintf("no enrichments: stored record has placeholder classification 652m '%s'", v)
	}

	if v, _ := updatingReader.Value("032", "x"); isCatalogCodeWithTemporaryDate(v) {
		return false, fmt.Sprintf("no enrichments: 032x carries temporary extraction week '%s'", v)
	}
	if v, _ := updatingReader.Value("032", "a"); isCatalogCodeWithTemporaryDate(v) {
		return false, fmt.Sprintf("no enrichments: 032a carries temporary extraction week '%s'", v)
	}

	currentOwner := currentReader.Owner()
	updatingOwner := updatingReader.Owner()
	if !models.IsCentralizedOwner(currentOwner) && models.IsCentralizedOwner(updatingOwner) {
		return true, fmt.Sprintf("enrichments forced: ownership promoted from '%s' to '%s'", currentOwner, updatingOwner)
	}

	if IsUnderProduction(updating, today) {
		if updatingReader.HasValue("008", "u", "r") {
			if sameProductionCodes(current, updating) {
				return false, "no enrichments: record is under production and 032 is unchanged"
			}
		} else {
			return false, "no enrichments: record is under production"
		}
	}

	return true, ""
}

func isPlaceholderClassification(value string) bool {
	return strings.EqualFold(value, "ny titel") || strings.EqualFold(value, "uden klassemærke")
}

func isCatalogCodeWithTemporaryDate(value string) bool {
	if len(value) != 9 {
		return false
	}
	return catalogCodes[strings.ToUpper(value[:3])] && value[3:] == temporaryDate
}
