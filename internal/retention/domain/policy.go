// Package domain defines retention policies, the legal bounds they must respect
// and the per-entity records of their execution.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// Action is what a policy does to an eligible entity.
type Action string

const (
	ActionDelete     Action = "delete"
	ActionAnonymize  Action = "anonymize"
	ActionArchive    Action = "archive"
	ActionNotifyOnly Action = "notify_only"
)

// Actions lists every policy action.
var Actions = []Action{ActionDelete, ActionAnonymize, ActionArchive, ActionNotifyOnly}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return slices.Contains(Actions, a)
}

// Exception names a predicate that exempts an entity from a policy.
type Exception string

const (
	ExceptionActiveLegalCase       Exception = "active_legal_case"
	ExceptionOngoingAudit          Exception = "ongoing_audit"
	ExceptionPremiumAccount        Exception = "premium_account"
	ExceptionRecentActivity        Exception = "recent_activity"
	ExceptionRegulatoryRequirement Exception = "regulatory_requirement"
)

// Exceptions lists every named exception.
var Exceptions = []Exception{
	ExceptionActiveLegalCase,
	ExceptionOngoingAudit,
	ExceptionPremiumAccount,
	ExceptionRecentActivity,
	ExceptionRegulatoryRequirement,
}

// Valid reports whether e is a known exception.
func (e Exception) Valid() bool {
	return slices.Contains(Exceptions, e)
}

// Policy maps an entity type to a retention period and an action.
type Policy struct {
	ID                  uuid.UUID
	Name                string
	EntityType          auditDomain.EntityType
	RetentionPeriodDays int
	// TriggerCondition documents which timestamp starts the retention period.
	TriggerCondition string
	Action           Action
	// Priority orders execution; lower runs first.
	Priority   int
	Active     bool
	LegalBasis string
	Exceptions []Exception
	// NotificationDays is the notice period between the warning and the action.
	// Zero acts without notice.
	NotificationDays int
	LastExecuted     *time.Time
	RecordsProcessed int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Horizon returns the cutoff before which entities are eligible at now.
func (p *Policy) Horizon(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.RetentionPeriodDays)
}

// NoticeElapsed reports whether the notice period started at notifiedAt is over.
func (p *Policy) NoticeElapsed(notifiedAt, now time.Time) bool {
	return !now.Before(notifiedAt.AddDate(0, 0, p.NotificationDays))
}

// CreatePolicyInput contains the parameters for a new policy.
type CreatePolicyInput struct {
	Name                string
	EntityType          auditDomain.EntityType
	RetentionPeriodDays int
	TriggerCondition    string
	Action              Action
	Priority            int
	LegalBasis          string
	Exceptions          []Exception
	NotificationDays    int
	Active              *bool
}
