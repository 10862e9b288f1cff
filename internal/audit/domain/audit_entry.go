package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an immutable record of a sensitive action. Checksum covers the
// identifying fields and the stored Details, so any later mutation outside the
// anonymization pass is detectable.
type AuditEntry struct {
	ID         uuid.UUID
	EntityType EntityType
	EntityID   string
	Action     Action
	UserID     *string
	// Details is the stored representation: plain JSON, or an encrypted envelope
	// as JSON when Encrypted is set.
	Details       json.RawMessage
	IPAddress     *string
	UserAgent     *string
	Timestamp     time.Time
	Severity      Severity
	Category      Category
	CorrelationID string
	Checksum      string
	Encrypted     bool
	ArchivedAt    *time.Time
}

// LogActionInput describes an action to record.
type LogActionInput struct {
	EntityType EntityType
	EntityID   string
	Action     Action
	UserID     *string
	Details    map[string]any
	IPAddress  string
	UserAgent  string
	// Severity and Category are derived from Action when empty.
	Severity Severity
	Category Category
	// CorrelationID overrides the id derived from UserID.
	CorrelationID string
}

// IntegrityResult is the outcome of re-verifying one entry.
type IntegrityResult struct {
	EntryID   uuid.UUID
	Valid     bool
	Tampering bool
}

// BatchVerification summarizes the verification of a range of entries.
type BatchVerification struct {
	Total      int
	Valid      int
	Invalid    int
	InvalidIDs []uuid.UUID
}

// QueryFilter selects entries. Zero-valued fields do not filter.
type QueryFilter struct {
	EntityType    EntityType
	EntityID      string
	Action        Action
	UserID        string
	Severity      Severity
	Category      Category
	CorrelationID string
	From          *time.Time
	To            *time.Time
	Offset        int
	Limit         int
	// Decrypt asks for encrypted details to be opened in the result.
	Decrypt bool
}

// QueriedEntry is an entry with its details decoded. Payload is nil for an
// encrypted entry unless decryption was requested.
type QueriedEntry struct {
	*AuditEntry
	Payload map[string]any
}

// QueryResult is one page of entries.
type QueryResult struct {
	Entries []*QueriedEntry
	Total   int
	HasMore bool
}
