package actions

import "github.com/Ramsey-B/bramble/pkg/models"

// Status is the outcome class of an action or of a whole tree run.
type Status string

const (
	StatusOK               Status = "OK"
	StatusValidateOnly     Status = "VALIDATE_ONLY"
	StatusFailedValidation Status = "FAILED_VALIDATION"
	StatusFailedUpdate     Status = "FAILED_UPDATE"
	StatusFailed           Status = "FAILED"
)

// IsTerminal reports whether the status stops the tree walk. OK and
// VALIDATE_ONLY let execution continue; everything else short-circuits.
func (s Status) IsTerminal() bool {
	return s != StatusOK && s != StatusValidateOnly
}

// Result is the aggregated outcome of an action. The engine merges
// child entries into it in execution order.
type Result struct {
	Status          Status
	Entries         []models.MessageEntry
	DoubleRecordKey string
}

func NewOKResult() *Result {
	return &Result{Status: StatusOK}
}

func NewValidateOnlyResult(entries ...models.MessageEntry) *Result {
	return &Result{Status: StatusValidateOnly, Entries: entries}
}

func NewFailedValidationResult(entries ...models.MessageEntry) *Result {
	return &Result{Status: StatusFailedValidation, Entries: entries}
}

func NewFailedUpdateResult(entries ...models.MessageEntry) *Result {
	return &Result{Status: StatusFailedUpdate, Entries: entries}
}

// Append adds entries while keeping their arrival order.
func (r *Result) Append(entries ...models.MessageEntry) {
	r.Entries = append(r.Entries, entries...)
}

func newCollaboratorEntry() models.MessageEntry {
	return models.NewErrorEntry("the update could not be completed because a backing service failed")
}
