// Package domain defines the platform entities the compliance core protects:
// parents, the students they consented for, and learning sessions.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Metadata flags recognised by retention exceptions.
const (
	FlagLegalHold             = "legal_hold"
	FlagActiveLegalCase       = "active_legal_case"
	FlagOngoingAudit          = "ongoing_audit"
	FlagPremiumAccount        = "premium_account"
	FlagRegulatoryRequirement = "regulatory_requirement"
)

// Metadata is free-form entity metadata stored as JSON.
type Metadata map[string]any

// Flag reports whether a boolean flag is set.
func (m Metadata) Flag(name string) bool {
	v, ok := m[name].(bool)
	return ok && v
}

// Parent is the adult who gave consent for one or more students.
type Parent struct {
	ID             uuid.UUID
	Email          string
	FirstName      string
	LastName       string
	Phone          *string
	Address        *string
	Metadata       Metadata
	LastActivityAt time.Time
	AnonymizedAt   *time.Time
	ArchivedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
