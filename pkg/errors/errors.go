package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// ValidationError is a non-fatal rejection of the incoming record. The
// record never reaches the store; the caller gets the field path back.
type ValidationError struct {
	Field    string
	SubField string
	RecordID string
	Message  string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// NewValidationErrorf creates a new ValidationError with a formatted message
func NewValidationErrorf(format string, args ...any) *ValidationError {
	// Handle error wrapping directive %w
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
		}
	}

	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	path := []string{}
	if e.RecordID != "" {
		path = append(path, fmt.Sprintf("record '%s'", e.RecordID))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}
	if e.SubField != "" {
		path = append(path, fmt.Sprintf("subfield '%s'", e.SubField))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *ValidationError) AddField(tag string) *ValidationError {
	e.Field = tag
	return e
}

func (e *ValidationError) AddSubField(code string) *ValidationError {
	e.SubField = code
	return e
}

func (e *ValidationError) AddRecordID(id string) *ValidationError {
	e.RecordID = id
	return e
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("record_id", e.RecordID).AddMetaValue("field", e.Field).AddMetaValue("subfield", e.SubField)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StructuralError means the update would break the record graph:
// missing parents, self-referencing volumes, deletes with live
// dependents. Nothing has been mutated when one is returned.
type StructuralError struct {
	RecordID string
	AgencyID int
	Message  string
}

func NewStructuralErrorf(format string, args ...any) *StructuralError {
	return &StructuralError{Message: fmt.Sprintf(format, args...)}
}

func (e *StructuralError) Error() string {
	if e.RecordID == "" {
		return e.Message
	}
	return fmt.Sprintf("record '%s:%d': %s", e.RecordID, e.AgencyID, e.Message)
}

func (e *StructuralError) AddRecord(id string, agencyID int) *StructuralError {
	e.RecordID = id
	e.AgencyID = agencyID
	return e
}

func (e *StructuralError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).AddMetaValue("record_id", e.RecordID)
}

func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// CollaboratorError wraps a failure from one of the external systems
// (record graph, permission oracle, holdings, rule evaluator, key
// store). The underlying cause is kept for logs; callers surface a
// generic message.
type CollaboratorError struct {
	System  string
	Op      string
	cause   error
	Message string
}

func NewCollaboratorError(system, op string, cause error) *CollaboratorError {
	return &CollaboratorError{
		System:  system,
		Op:      op,
		cause:   cause,
		Message: fmt.Sprintf("%s: %s failed", system, op),
	}
}

func (e *CollaboratorError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *CollaboratorError) Unwrap() error {
	return e.cause
}

func (e *CollaboratorError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("%s is unavailable", e.System)).AddMetaValue("system", e.System).AddMetaValue("operation", e.Op)
}

func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}

// NotFoundError is returned by lookups for records that were never
// stored. Tombstoned records do NOT produce it; they still exist.
type NotFoundError struct {
	RecordID string
	AgencyID int
}

func NewNotFoundError(id string, agencyID int) *NotFoundError {
	return &NotFoundError{RecordID: id, AgencyID: agencyID}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record '%s:%d' does not exist", e.RecordID, e.AgencyID)
}

func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// FatalError is a misconfiguration or internal invariant breach. The
// process should not keep serving after one escapes to main.
type FatalError struct {
	Message string
	cause   error
}

func NewFatalErrorf(format string, args ...any) *FatalError {
	for i, arg := range args {
		if err, ok := arg.(error); ok && strings.Contains(format, "%w") {
			format = strings.Replace(format, "%w", "%v", 1)
			args[i] = err.Error()
		}
	}
	return &FatalError{Message: fmt.Sprintf(format, args...)}
}

func WrapFatal(msg string, cause error) *FatalError {
	return &FatalError{Message: msg, cause: cause}
}

func (e *FatalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *FatalError) Unwrap() error {
	return e.cause
}

func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// ToHTTPError maps any error in the taxonomy onto the edge error the
// echo error handler understands. Unknown errors become 500s.
func ToHTTPError(err error) *httperror.HTTPError {
	if err == nil {
		return nil
	}
	if httperror.IsHTTPError(err) {
		return err.(*httperror.HTTPError)
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.ToHTTPError()
	}
	var se *StructuralError
	if errors.As(err, &se) {
		return se.ToHTTPError()
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.ToHTTPError()
	}
	var ne *NotFoundError
	if errors.As(err, &ne) {
		return httperror.NewHTTPError(http.StatusNotFound, ne.Error())
	}

	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}
