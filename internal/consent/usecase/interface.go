// Package usecase implements the parental consent double opt-in workflow.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
)

// ConsentRepository defines consent persistence operations.
type ConsentRepository interface {
	Create(ctx context.Context, consent *consentDomain.Consent) error
	Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error)
	GetByFirstTokenHash(ctx context.Context, hash string) (*consentDomain.Consent, error)
	GetBySecondTokenHash(ctx context.Context, hash string) (*consentDomain.Consent, error)
	FindPendingByEmail(ctx context.Context, email string) (*consentDomain.Consent, error)
	GetByStudent(ctx context.Context, studentID uuid.UUID) (*consentDomain.Consent, error)
	Update(ctx context.Context, consent *consentDomain.Consent) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*consentDomain.Consent, error)
}

// ParentRepository finds or creates the consenting parent.
type ParentRepository interface {
	GetByEmail(ctx context.Context, email string) (*learnerDomain.Parent, error)
	Create(ctx context.Context, parent *learnerDomain.Parent) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// StudentRepository creates the child's account.
type StudentRepository interface {
	Create(ctx context.Context, student *learnerDomain.Student) error
}

// TokenIssuer generates confirmation tokens and their lookup hashes.
type TokenIssuer interface {
	RandomToken() (string, error)
	SHA256(value string) string
}

// AuditLogger records consent transitions.
type AuditLogger interface {
	LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID
}

// Notifier queues parent emails.
type Notifier interface {
	Notify(ctx context.Context, to string, template notificationDomain.Template, vars map[string]string) error
}

// AnonymizationScheduler schedules the erasure of a student after revocation.
type AnonymizationScheduler interface {
	Schedule(ctx context.Context, input *anonymizationDomain.ScheduleInput) (*anonymizationDomain.Job, error)
}

// UseCase defines the parental consent operations.
type UseCase interface {
	// Initiate creates a pending consent and emails the first confirmation token.
	Initiate(ctx context.Context, input *consentDomain.InitiateInput) (*consentDomain.Consent, error)

	// ProcessFirstConsent confirms the first step and emails the second token.
	ProcessFirstConsent(ctx context.Context, token string) (*consentDomain.Consent, error)

	// ProcessSecondConsent verifies the consent and creates the student account.
	ProcessSecondConsent(ctx context.Context, token string) (*consentDomain.Consent, error)

	// Revoke withdraws a consent. Revoking a verified consent schedules the
	// full anonymization of the student.
	Revoke(ctx context.Context, input *consentDomain.RevokeInput) (*consentDomain.Consent, error)

	// IsValidForProcessing reports whether the student's data may be processed
	// for the given purpose.
	IsValidForProcessing(ctx context.Context, studentID uuid.UUID, consentType consentDomain.Type) (bool, error)

	// Get returns a consent, expiring it first when its window has closed.
	Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error)

	// ExpirePending expires every pending consent past its window and returns the count.
	ExpirePending(ctx context.Context) (int, error)
}
