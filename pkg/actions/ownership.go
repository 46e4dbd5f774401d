package actions

import (
	"sort"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/bramble/pkg/marc"
)

// MergeOwnership carries the ownership history of the stored record
// onto the incoming one. When the owner changes, the previous owner
// moves into subfield o and every older owner accumulates in m; owners
// never silently disappear from a shared record.
func MergeOwnership(incoming, current *marc.Record) {
	if incoming == nil || current == nil {
		return
	}
	newOwner := marc.NewReader(incoming).Owner()
	prevOwner := marc.NewReader(current).Owner()
	if newOwner == "" || prevOwner == "" || newOwner == prevOwner {
		return
	}

	writer := marc.NewWriter(incoming)
	writer.AddOrReplaceSubField("996", "o", prevOwner)

	seen := map[string]bool{newOwner: true, prevOwner: true}
	var history []string
	for _, field := range marc.NewReader(current).Fields("996") {
		for _, value := range field.SubValues("m") {
			if !seen[value] {
				seen[value] = true
				history = append(history, value)
			}
		}
		if older, ok := field.SubValue("o"); ok && !seen[older] {
			seen[older] = true
			history = append(history, older)
		}
	}
	writer.RemoveSubField("996", "m")
	for _, owner := range history {
		writer.AddSubField("996", "m", owner)
	}
}

// ClassificationsChanged reports whether the classification codes of
// the two records differ, ignoring order and case.
func ClassificationsChanged(current, updating *marc.Record) bool {
	return !stringSetsEqual(classificationCodes(current), classificationCodes(updating))
}

func classificationCodes(record *marc.Record) []string {
	if record == nil {
		return nil
	}
	codes := ectolinq.Map(marc.NewReader(record).Values("652", "m"), func(value string) string {
		return strings.ToLower(strings.TrimSpace(value))
	})
	sort.Strings(codes)
	return codes
}

func stringSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
