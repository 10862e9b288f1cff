// Package usecase implements the audit log: tamper-evident writes, integrity
// verification, filtered queries, PII redaction and anomaly detection.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
)

// AuditEntryRepository defines audit entry persistence operations.
type AuditEntryRepository interface {
	Create(ctx context.Context, entry *auditDomain.AuditEntry) error
	Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditEntry, error)
	UpdateAnonymized(ctx context.Context, entry *auditDomain.AuditEntry) error
	List(ctx context.Context, filter *auditDomain.QueryFilter) ([]*auditDomain.AuditEntry, error)
	Count(ctx context.Context, filter *auditDomain.QueryFilter) (int, error)
	ListRecentIDs(
		ctx context.Context,
		entityType auditDomain.EntityType,
		entityID string,
		action auditDomain.Action,
		since time.Time,
	) ([]uuid.UUID, error)
	ListRecentIDsByIP(
		ctx context.Context,
		entityType auditDomain.EntityType,
		action auditDomain.Action,
		ipAddress string,
		since time.Time,
	) ([]uuid.UUID, error)
	CountOlderThan(ctx context.Context, before time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// SecurityAlertRepository defines security alert persistence operations.
type SecurityAlertRepository interface {
	Create(ctx context.Context, alert *auditDomain.SecurityAlert) error
	Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityAlert, error)
	FindActive(
		ctx context.Context,
		alertType auditDomain.AlertType,
		entityType auditDomain.EntityType,
		entityID string,
		since time.Time,
	) (*auditDomain.SecurityAlert, error)
	List(ctx context.Context, resolved *bool, offset, limit int) ([]*auditDomain.SecurityAlert, error)
	Resolve(ctx context.Context, alert *auditDomain.SecurityAlert) error
}

// EnvelopeCipher encrypts and decrypts entry details.
type EnvelopeCipher interface {
	EncryptEnvelope(plaintext []byte) (*cryptoDomain.Envelope, error)
	DecryptEnvelope(envelope *cryptoDomain.Envelope) ([]byte, error)
}

// UseCase defines the audit log operations.
type UseCase interface {
	// LogAction records an entry and returns its id. It never fails: on any error
	// the failure is logged and uuid.Nil is returned.
	LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID

	// VerifyIntegrity recomputes the checksum of one entry.
	VerifyIntegrity(ctx context.Context, id uuid.UUID) (*auditDomain.IntegrityResult, error)

	// VerifyBatch verifies every entry written inside the optional time range.
	VerifyBatch(ctx context.Context, from, to *time.Time) (*auditDomain.BatchVerification, error)

	// Query returns a page of entries, decrypting details when requested.
	Query(ctx context.Context, filter *auditDomain.QueryFilter) (*auditDomain.QueryResult, error)

	// AnonymizeStudentLogs redacts PII from every entry about a student and
	// returns how many entries were rewritten.
	AnonymizeStudentLogs(ctx context.Context, studentID, reason string) (int, error)

	// DeleteOlderThan removes entries written before the given time. With dryRun
	// it only counts them.
	DeleteOlderThan(ctx context.Context, before time.Time, dryRun bool) (int64, error)

	ListAlerts(ctx context.Context, resolved *bool, offset, limit int) ([]*auditDomain.SecurityAlert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID, resolvedBy string) (*auditDomain.SecurityAlert, error)
}
