package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is one learning session of a student.
type Session struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	IPAddress      *string
	UserAgent      *string
	DeviceID       *string
	Metadata       Metadata
	StartedAt      time.Time
	LastActivityAt time.Time
	AnonymizedAt   *time.Time
	ArchivedAt     *time.Time
}
