package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/metrics"
)

const metricsDomain = "audit"

// auditUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type auditUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewAuditUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewAuditUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &auditUseCaseWithMetrics{next: useCase, metrics: m}
}

func (a *auditUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	a.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	a.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (a *auditUseCaseWithMetrics) LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID {
	start := time.Now()
	id := a.next.LogAction(ctx, input)
	a.record(ctx, "log_action", start, id == uuid.Nil)
	return id
}

func (a *auditUseCaseWithMetrics) VerifyIntegrity(
	ctx context.Context,
	id uuid.UUID,
) (*auditDomain.IntegrityResult, error) {
	start := time.Now()
	result, err := a.next.VerifyIntegrity(ctx, id)
	a.record(ctx, "verify_integrity", start, err != nil)
	return result, err
}

func (a *auditUseCaseWithMetrics) VerifyBatch(
	ctx context.Context,
	from, to *time.Time,
) (*auditDomain.BatchVerification, error) {
	start := time.Now()
	report, err := a.next.VerifyBatch(ctx, from, to)
	a.record(ctx, "verify_batch", start, err != nil)
	return report, err
}

func (a *auditUseCaseWithMetrics) Query(
	ctx context.Context,
	filter *auditDomain.QueryFilter,
) (*auditDomain.QueryResult, error) {
	start := time.Now()
	result, err := a.next.Query(ctx, filter)
	a.record(ctx, "query", start, err != nil)
	return result, err
}

func (a *auditUseCaseWithMetrics) AnonymizeStudentLogs(ctx context.Context, studentID, reason string) (int, error) {
	start := time.Now()
	count, err := a.next.AnonymizeStudentLogs(ctx, studentID, reason)
	a.record(ctx, "anonymize_student_logs", start, err != nil)
	return count, err
}

func (a *auditUseCaseWithMetrics) DeleteOlderThan(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := a.next.DeleteOlderThan(ctx, before, dryRun)
	a.record(ctx, "delete_older_than", start, err != nil)
	return count, err
}

func (a *auditUseCaseWithMetrics) ListAlerts(
	ctx context.Context,
	resolved *bool,
	offset, limit int,
) ([]*auditDomain.SecurityAlert, error) {
	start := time.Now()
	alerts, err := a.next.ListAlerts(ctx, resolved, offset, limit)
	a.record(ctx, "list_alerts", start, err != nil)
	return alerts, err
}

func (a *auditUseCaseWithMetrics) ResolveAlert(
	ctx context.Context,
	id uuid.UUID,
	resolvedBy string,
) (*auditDomain.SecurityAlert, error) {
	start := time.Now()
	alert, err := a.next.ResolveAlert(ctx, id, resolvedBy)
	a.record(ctx, "resolve_alert", start, err != nil)
	return alert, err
}
