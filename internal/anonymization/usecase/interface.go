// Package usecase implements the anonymization engine: job scheduling and
// execution, per-entity rule tables and the inactive account sweep.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
	"github.com/allisson/compliance/internal/scheduler"
)

// JobRepository defines anonymization job persistence operations.
type JobRepository interface {
	Create(ctx context.Context, job *anonymizationDomain.Job) error
	Get(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error)
	FindActive(
		ctx context.Context,
		entityType auditDomain.EntityType,
		entityID uuid.UUID,
	) (*anonymizationDomain.Job, error)
	// Transition writes job only while the stored job is still in status from.
	Transition(ctx context.Context, job *anonymizationDomain.Job, from anonymizationDomain.Status) error
	List(ctx context.Context, status *anonymizationDomain.Status, offset, limit int) ([]*anonymizationDomain.Job, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*anonymizationDomain.Job, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]*anonymizationDomain.Job, error)
}

// StudentRepository defines the student operations the engine needs.
type StudentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Student, error)
	UpdateAnonymized(ctx context.Context, student *learnerDomain.Student) error
	FindInactive(
		ctx context.Context,
		before time.Time,
		after *database.Cursor,
		limit int,
	) ([]*learnerDomain.Student, error)
	MarkInactivityWarned(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ParentRepository defines the parent operations the engine needs.
type ParentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Parent, error)
	UpdateAnonymized(ctx context.Context, parent *learnerDomain.Parent) error
}

// SessionRepository defines the session operations the engine needs.
type SessionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Session, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*learnerDomain.Session, error)
	UpdateAnonymized(ctx context.Context, session *learnerDomain.Session) error
}

// AuditLogger records actions and scrubs a student's audit trail.
type AuditLogger interface {
	LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID
	AnonymizeStudentLogs(ctx context.Context, studentID, reason string) (int, error)
}

// Notifier queues parent emails.
type Notifier interface {
	Notify(ctx context.Context, to string, template notificationDomain.Template, vars map[string]string) error
}

// Dispatcher runs jobs in the background.
type Dispatcher interface {
	RunNow(name string, task scheduler.Task)
	RunAt(name string, at time.Time, task scheduler.Task)
}

// FieldAnonymizer applies one strategy to one value.
type FieldAnonymizer interface {
	Apply(rule anonymizationDomain.FieldRule, value any) (any, error)
}

// EntityHandler anonymizes one entity type. Adding an anonymizable entity type
// means registering a new handler.
type EntityHandler interface {
	EntityType() auditDomain.EntityType
	Rules() []anonymizationDomain.FieldRule
	Load(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Record, error)
	Save(ctx context.Context, id uuid.UUID, fields map[string]any, at time.Time) error
	// Dependents lists records anonymized together with the entity.
	Dependents(ctx context.Context, id uuid.UUID) ([]anonymizationDomain.Target, error)
}

// Finalizer is implemented by handlers with extra work once the entity and its
// dependents are anonymized. It returns the number of records it changed.
type Finalizer interface {
	Finalize(ctx context.Context, id uuid.UUID, reason anonymizationDomain.Reason) (int, error)
}

// UseCase defines the anonymization engine operations.
type UseCase interface {
	// Schedule creates a pending job and dispatches it now or at ScheduledFor.
	Schedule(ctx context.Context, input *anonymizationDomain.ScheduleInput) (*anonymizationDomain.Job, error)

	// Execute runs a pending job to completion or failure. Failed jobs are not retried.
	Execute(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error)

	// Cancel cancels a pending job. Running jobs cannot be cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error)

	GetJobStatus(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error)
	ListJobs(
		ctx context.Context,
		status *anonymizationDomain.Status,
		offset, limit int,
	) ([]*anonymizationDomain.Job, error)

	// CheckInactiveAccounts warns the parents of inactive students once, then
	// schedules their anonymization when the inactivity horizon has passed.
	CheckInactiveAccounts(ctx context.Context) (*anonymizationDomain.InactivityReport, error)

	// RecoverJobs fails running jobs with no progress within the stale threshold
	// and re-dispatches pending ones.
	RecoverJobs(ctx context.Context) (*anonymizationDomain.RecoveryReport, error)

	// RunDueJobs fails stale running jobs and executes pending jobs whose
	// scheduled time has passed.
	RunDueJobs(ctx context.Context) (*anonymizationDomain.DueReport, error)
}
