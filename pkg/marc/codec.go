package marc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CodecError is returned for payloads that cannot be decoded into a
// record. Decoding is all-or-nothing; a CodecError means no record.
type CodecError struct {
	Message string
	cause   error
}

func (e *CodecError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *CodecError) Unwrap() error {
	return e.cause
}

// Encode serializes a record to its stored JSON form.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, &CodecError{Message: "cannot encode nil record"}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, &CodecError{Message: "record could not be serialized", cause: err}
	}
	return data, nil
}

// Decode parses a stored payload back into a record. Unknown keys and
// trailing garbage are rejected so a truncated or foreign payload never
// half-parses.
func Decode(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, &CodecError{Message: "record payload is malformed", cause: err}
	}
	if dec.More() {
		return nil, &CodecError{Message: "record payload has trailing content"}
	}

	for i := range r.Fields {
		if r.Fields[i].Tag == "" {
			return nil, &CodecError{Message: fmt.Sprintf("field %d is missing a tag", i)}
		}
	}
	return &r, nil
}
