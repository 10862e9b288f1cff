// Package domain defines the parental consent record and its double opt-in
// state machine.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"

	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
)

// Status is the lifecycle state of a consent.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// Type is a processing purpose the parent agrees to.
type Type string

const (
	TypeDataCollection     Type = "data_collection"
	TypeEducationalContent Type = "educational_content"
	TypeProgressTracking   Type = "progress_tracking"
	TypeCommunication      Type = "communication"
	TypeAnalytics          Type = "analytics"
)

// Types lists every consent type.
var Types = []Type{
	TypeDataCollection,
	TypeEducationalContent,
	TypeProgressTracking,
	TypeCommunication,
	TypeAnalytics,
}

// Valid reports whether t is a known consent type.
func (t Type) Valid() bool {
	return slices.Contains(Types, t)
}

// Consent is one parental consent initiation. Confirmation tokens are only
// ever stored as SHA-256 hashes.
type Consent struct {
	ID                uuid.UUID
	ParentEmail       string
	ParentName        string
	ChildName         string
	ChildAge          int
	ConsentTypes      []Type
	Status            Status
	FirstTokenHash    string
	SecondTokenHash   *string
	FirstConsentDate  *time.Time
	SecondConsentDate *time.Time
	// ExpiryDate is the deadline for completing both confirmation steps.
	ExpiryDate time.Time
	// ValidUntil bounds processing once the consent is verified.
	ValidUntil       *time.Time
	ParentID         *uuid.UUID
	StudentID        *uuid.UUID
	RevokedAt        *time.Time
	RevocationReason *string
	IPAddress        string
	UserAgent        string
	Metadata         learnerDomain.Metadata
	ArchivedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Covers reports whether the consent includes the given type.
func (c *Consent) Covers(t Type) bool {
	return slices.Contains(c.ConsentTypes, t)
}

// ExpiredAt reports whether a pending consent has passed its confirmation window.
func (c *Consent) ExpiredAt(now time.Time) bool {
	return c.Status == StatusPending && now.After(c.ExpiryDate)
}

// ValidForProcessing reports whether data covered by t may be processed at now.
func (c *Consent) ValidForProcessing(t Type, now time.Time) bool {
	return c.Status == StatusVerified && c.Covers(t) && c.ValidUntil != nil && !now.After(*c.ValidUntil)
}

// InitiateInput starts a consent.
type InitiateInput struct {
	ParentEmail  string
	ParentName   string
	ChildName    string
	ChildAge     int
	ConsentTypes []Type
	IPAddress    string
	UserAgent    string
}

// RevokeInput withdraws a consent.
type RevokeInput struct {
	ConsentID   uuid.UUID
	ParentEmail string
	Reason      string
	IPAddress   string
	UserAgent   string
}
