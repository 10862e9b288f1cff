package domain

import (
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
)

// Outcome is the latest result of applying a policy to one entity.
type Outcome string

const (
	OutcomeNotified   Outcome = "notified"
	OutcomeDeleted    Outcome = "deleted"
	OutcomeAnonymized Outcome = "anonymized"
	OutcomeArchived   Outcome = "archived"
	OutcomeNotifyOnly Outcome = "notify_only"
	OutcomeFailed     Outcome = "failed"
)

// OutcomeFor returns the outcome recorded after a successful action.
func OutcomeFor(action Action) Outcome {
	switch action {
	case ActionDelete:
		return OutcomeDeleted
	case ActionAnonymize:
		return OutcomeAnonymized
	case ActionArchive:
		return OutcomeArchived
	default:
		return OutcomeNotifyOnly
	}
}

// Record tracks one entity through a policy: when it was warned, when the
// action ran and how it ended. Unprocessed records are retried on the next run.
type Record struct {
	ID          uuid.UUID
	PolicyID    uuid.UUID
	EntityType  auditDomain.EntityType
	EntityID    uuid.UUID
	NotifiedAt  *time.Time
	ProcessedAt *time.Time
	Outcome     Outcome
	Error       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contact is who is warned before an entity is processed.
type Contact struct {
	Email string
	Name  string
}

// Candidate is an entity past a policy's horizon.
type Candidate struct {
	EntityType auditDomain.EntityType
	EntityID   uuid.UUID
	// ReferenceTime is the timestamp compared against the horizon.
	ReferenceTime  time.Time
	LastActivityAt time.Time
	Metadata       learnerDomain.Metadata
	// Contact is nil when nobody is to be warned.
	Contact *Contact
}

// recentActivityWindow is how recent an activity must be to exempt an entity.
const recentActivityWindow = 30 * 24 * time.Hour

// ExceptionApplies reports whether the named exception exempts the candidate.
func (c *Candidate) ExceptionApplies(e Exception, now time.Time) bool {
	switch e {
	case ExceptionActiveLegalCase:
		return c.Metadata.Flag(learnerDomain.FlagActiveLegalCase)
	case ExceptionOngoingAudit:
		return c.Metadata.Flag(learnerDomain.FlagOngoingAudit)
	case ExceptionPremiumAccount:
		return c.Metadata.Flag(learnerDomain.FlagPremiumAccount)
	case ExceptionRegulatoryRequirement:
		return c.Metadata.Flag(learnerDomain.FlagRegulatoryRequirement)
	case ExceptionRecentActivity:
		return now.Sub(c.LastActivityAt) < recentActivityWindow
	default:
		return false
	}
}

// Exempt returns the reason a candidate escapes the policy, or "" when it does
// not. A legal hold or an active legal case always exempts.
func (c *Candidate) Exempt(p *Policy, now time.Time) string {
	if c.Metadata.Flag(learnerDomain.FlagLegalHold) {
		return learnerDomain.FlagLegalHold
	}
	if c.ExceptionApplies(ExceptionActiveLegalCase, now) {
		return string(ExceptionActiveLegalCase)
	}
	for _, e := range p.Exceptions {
		if c.ExceptionApplies(e, now) {
			return string(e)
		}
	}
	return ""
}
