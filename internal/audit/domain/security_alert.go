package domain

import (
	"time"

	"github.com/google/uuid"
)

// SecurityAlert is raised by anomaly detection after an audit write. EntityID is
// the student id for suspicious_access and the client IP for multiple_failed_logins.
type SecurityAlert struct {
	ID            uuid.UUID
	Type          AlertType
	Severity      Severity
	EntityType    EntityType
	EntityID      string
	Description   string
	DetectedAt    time.Time
	AuditEntryIDs []uuid.UUID
	Resolved      bool
	ResolvedAt    *time.Time
	ResolvedBy    *string
}
