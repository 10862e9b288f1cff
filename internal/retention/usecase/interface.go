// Package usecase implements the retention scheduler: policy administration,
// eligibility through per-entity adapters, notice periods and the execution of
// delete, anonymize, archive and notify-only actions.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	"github.com/allisson/compliance/internal/database"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

// PolicyRepository defines retention policy persistence operations.
type PolicyRepository interface {
	Create(ctx context.Context, p *retentionDomain.Policy) error
	Get(ctx context.Context, id uuid.UUID) (*retentionDomain.Policy, error)
	GetByName(ctx context.Context, name string) (*retentionDomain.Policy, error)
	List(ctx context.Context, activeOnly bool) ([]*retentionDomain.Policy, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error
	RecordExecution(ctx context.Context, id uuid.UUID, at time.Time, processed int) error
}

// RecordRepository defines retention record persistence operations.
type RecordRepository interface {
	Get(ctx context.Context, policyID, entityID uuid.UUID) (*retentionDomain.Record, error)
	Create(ctx context.Context, rec *retentionDomain.Record) error
	Update(ctx context.Context, rec *retentionDomain.Record) error
	CountByOutcome(ctx context.Context, policyID uuid.UUID) (map[retentionDomain.Outcome]int, error)
}

// EntityAdapter gives the scheduler access to one entity type. Supporting a new
// entity type means registering a new adapter.
type EntityAdapter interface {
	EntityType() auditDomain.EntityType
	// FindEligible returns at most limit entities whose reference time is before the
	// horizon, ordered by (reference time, id) and starting after the cursor.
	FindEligible(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*retentionDomain.Candidate, error)
	// Delete removes the entity and the rows that depend on it.
	Delete(ctx context.Context, id uuid.UUID) error
	// Archive copies the entity to cold storage and tags it archived. It returns the archive key.
	Archive(ctx context.Context, id uuid.UUID, at time.Time) (string, error)
}

// AnonymizationScheduler schedules anonymization jobs.
type AnonymizationScheduler interface {
	Schedule(ctx context.Context, input *anonymizationDomain.ScheduleInput) (*anonymizationDomain.Job, error)
}

// AuditLogger records actions.
type AuditLogger interface {
	LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID
}

// Notifier queues emails.
type Notifier interface {
	Notify(ctx context.Context, to string, template notificationDomain.Template, vars map[string]string) error
}

// StudentStore defines the student operations the adapters need.
type StudentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Student, error)
	FindInactive(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*learnerDomain.Student, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*learnerDomain.Student, error)
	MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ParentStore defines the parent operations the adapters need.
type ParentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Parent, error)
	FindInactive(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*learnerDomain.Parent, error)
	MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionStore defines the session operations the adapters need.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Session, error)
	FindInactive(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*learnerDomain.Session, error)
	MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByStudent(ctx context.Context, studentID uuid.UUID) (int64, error)
}

// ConsentStore defines the consent operations the adapters need.
type ConsentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error)
	FindOlderThan(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*consentDomain.Consent, error)
	MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditEntryStore defines the audit entry operations the adapters need.
type AuditEntryStore interface {
	Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditEntry, error)
	FindOlderThan(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*auditDomain.AuditEntry, error)
	MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UseCase defines the retention scheduler operations.
type UseCase interface {
	// CreatePolicy admits a policy whose period lies within the legal bounds of its entity type.
	CreatePolicy(ctx context.Context, input *retentionDomain.CreatePolicyInput) (*retentionDomain.Policy, error)

	SetPolicyActive(ctx context.Context, id uuid.UUID, active bool) (*retentionDomain.Policy, error)
	ListPolicies(ctx context.Context) ([]*retentionDomain.Policy, error)

	// ExecutePolicies runs every active policy by priority. Only one run may be
	// in progress per process.
	ExecutePolicies(ctx context.Context) (*retentionDomain.RunReport, error)

	// ExecuteSinglePolicy runs one active policy over a batch of eligible entities.
	// A failure on one entity is recorded and does not abort the batch.
	ExecuteSinglePolicy(ctx context.Context, id uuid.UUID) (*retentionDomain.PolicyReport, error)

	GetStatus(ctx context.Context) (*retentionDomain.Status, error)

	// SeedDefaultPolicies creates the default policies that do not exist yet.
	SeedDefaultPolicies(ctx context.Context) ([]*retentionDomain.Policy, error)
}
