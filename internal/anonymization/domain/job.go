// Package domain defines anonymization jobs and the field-level rules they apply.
package domain

import (
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// Reason explains why an entity is anonymized.
type Reason string

const (
	ReasonConsentWithdrawal Reason = "consent_withdrawal"
	ReasonRetentionPolicy   Reason = "retention_policy"
	ReasonGDPRRequest       Reason = "gdpr_request"
	ReasonInactivity        Reason = "inactivity"
	ReasonAccountDeletion   Reason = "account_deletion"
)

// Reasons lists every accepted reason.
var Reasons = []Reason{
	ReasonConsentWithdrawal,
	ReasonRetentionPolicy,
	ReasonGDPRRequest,
	ReasonInactivity,
	ReasonAccountDeletion,
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Priority orders jobs. It is derived from the reason, never set by callers.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PriorityFor returns the priority of a job scheduled for reason.
func PriorityFor(reason Reason) Priority {
	switch reason {
	case ReasonGDPRRequest, ReasonConsentWithdrawal:
		return PriorityUrgent
	case ReasonAccountDeletion:
		return PriorityHigh
	case ReasonRetentionPolicy:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Status is the lifecycle state of a job: pending -> running -> completed|failed,
// or pending -> cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every job status.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether a job in this status still occupies its target.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Job tracks the anonymization of one entity and its dependent records.
type Job struct {
	ID                 uuid.UUID
	EntityType         auditDomain.EntityType
	EntityID           uuid.UUID
	Reason             Reason
	Status             Status
	Priority           Priority
	PreserveStatistics bool
	// Progress is a percentage between 0 and 100.
	Progress         int
	AffectedRecords  int
	AnonymizedFields []string
	PreservedFields  []string
	Errors           []string
	RequestedBy      *string
	ScheduledFor     time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScheduleInput describes a job to create.
type ScheduleInput struct {
	EntityType         auditDomain.EntityType
	EntityID           uuid.UUID
	Reason             Reason
	PreserveStatistics bool
	// ScheduledFor delays execution. Nil or past means run immediately.
	ScheduledFor *time.Time
	RequestedBy  *string
}

// InactivityReport summarizes one inactive account sweep.
type InactivityReport struct {
	Checked   int
	Warned    int
	Scheduled int
	Skipped   int
}

// RecoveryReport summarizes the jobs recovered at startup.
type RecoveryReport struct {
	Failed      int
	Rescheduled int
}

// DueReport summarizes one sweep of due and stale jobs.
type DueReport struct {
	Stale     int
	Completed int
	Failed    int
	Skipped   int
}
