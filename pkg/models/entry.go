package models

// EntryType classifies a message entry in an update outcome.
type EntryType string

const (
	EntryError   EntryType = "ERROR"
	EntryWarning EntryType = "WARNING"
	EntryInfo    EntryType = "INFO"
)

// MessageEntry is one human-readable line in an update outcome. Field,
// RecordID and AgencyID are filled when the message concerns a
// specific field edit.
type MessageEntry struct {
	Type     EntryType `json:"type"`
	Message  string    `json:"message"`
	Field    string    `json:"field,omitempty"`
	RecordID string    `json:"recordId,omitempty"`
	AgencyID int       `json:"agencyId,omitempty"`
}

func NewErrorEntry(message string) MessageEntry {
	return MessageEntry{Type: EntryError, Message: message}
}

func NewWarningEntry(message string) MessageEntry {
	return MessageEntry{Type: EntryWarning, Message: message}
}
