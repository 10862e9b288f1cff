package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	"github.com/allisson/compliance/internal/metrics"
)

const metricsDomain = "anonymization"

// anonymizationUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type anonymizationUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewAnonymizationUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewAnonymizationUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &anonymizationUseCaseWithMetrics{next: useCase, metrics: m}
}

func (a *anonymizationUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	a.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (a *anonymizationUseCaseWithMetrics) Schedule(
	ctx context.Context,
	input *anonymizationDomain.ScheduleInput,
) (*anonymizationDomain.Job, error) {
	start := time.Now()
	job, err := a.next.Schedule(ctx, input)
	a.record(ctx, "schedule", start, err)
	return job, err
}

func (a *anonymizationUseCaseWithMetrics) Execute(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	start := time.Now()
	job, err := a.next.Execute(ctx, id)
	a.record(ctx, "execute", start, err)
	return job, err
}

func (a *anonymizationUseCaseWithMetrics) Cancel(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	start := time.Now()
	job, err := a.next.Cancel(ctx, id)
	a.record(ctx, "cancel", start, err)
	return job, err
}

func (a *anonymizationUseCaseWithMetrics) GetJobStatus(
	ctx context.Context,
	id uuid.UUID,
) (*anonymizationDomain.Job, error) {
	start := time.Now()
	job, err := a.next.GetJobStatus(ctx, id)
	a.record(ctx, "get_job_status", start, err)
	return job, err
}

func (a *anonymizationUseCaseWithMetrics) ListJobs(
	ctx context.Context,
	status *anonymizationDomain.Status,
	offset, limit int,
) ([]*anonymizationDomain.Job, error) {
	start := time.Now()
	jobs, err := a.next.ListJobs(ctx, status, offset, limit)
	a.record(ctx, "list_jobs", start, err)
	return jobs, err
}

func (a *anonymizationUseCaseWithMetrics) CheckInactiveAccounts(
	ctx context.Context,
) (*anonymizationDomain.InactivityReport, error) {
	start := time.Now()
	report, err := a.next.CheckInactiveAccounts(ctx)
	a.record(ctx, "check_inactive_accounts", start, err)
	return report, err
}

func (a *anonymizationUseCaseWithMetrics) RecoverJobs(
	ctx context.Context,
) (*anonymizationDomain.RecoveryReport, error) {
	start := time.Now()
	report, err := a.next.RecoverJobs(ctx)
	a.record(ctx, "recover_jobs", start, err)
	return report, err
}

func (a *anonymizationUseCaseWithMetrics) RunDueJobs(ctx context.Context) (*anonymizationDomain.DueReport, error) {
	start := time.Now()
	report, err := a.next.RunDueJobs(ctx)
	a.record(ctx, "run_due_jobs", start, err)
	return report, err
}
