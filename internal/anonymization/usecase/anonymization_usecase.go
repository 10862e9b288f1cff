package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	apperrors "github.com/allisson/compliance/internal/errors"
	appValidation "github.com/allisson/compliance/internal/validation"
)

const (
	defaultListLimit = 50
	// defaultInactivityBatchSize bounds each page of the inactive account sweep.
	defaultInactivityBatchSize = 500
	maxListLimit               = 1000
	// recoveryPageSize bounds each page read while recovering or sweeping jobs.
	recoveryPageSize  = 200
	defaultStaleAfter = 30 * time.Minute
	staleError        = "abandoned: no progress recorded before the stale threshold"
)

// Config holds the inactive account sweep and job recovery settings.
type Config struct {
	InactivityDays       int
	WarningDaysBefore    int
	InactivityBatchSize  int
	PreserveOnInactivity bool
	// StaleAfter is how long a running job may go without a progress write
	// before it is considered abandoned.
	StaleAfter time.Duration
}

// AnonymizationUseCase implements UseCase.
type AnonymizationUseCase struct {
	config     Config
	jobRepo    JobRepository
	students   StudentRepository
	parents    ParentRepository
	handlers   map[auditDomain.EntityType]EntityHandler
	anonymizer FieldAnonymizer
	audit      AuditLogger
	notifier   Notifier
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewAnonymizationUseCase creates a new AnonymizationUseCase.
func NewAnonymizationUseCase(
	config Config,
	jobRepo JobRepository,
	students StudentRepository,
	parents ParentRepository,
	handlers []EntityHandler,
	anonymizer FieldAnonymizer,
	audit AuditLogger,
	notifier Notifier,
	dispatcher Dispatcher,
	logger *slog.Logger,
) *AnonymizationUseCase {
	if config.InactivityBatchSize <= 0 {
		config.InactivityBatchSize = defaultInactivityBatchSize
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaultStaleAfter
	}

	registry := make(map[auditDomain.EntityType]EntityHandler, len(handlers))
	for _, h := range handlers {
		registry[h.EntityType()] = h
	}

	return &AnonymizationUseCase{
		config:     config,
		jobRepo:    jobRepo,
		students:   students,
		parents:    parents,
		handlers:   registry,
		anonymizer: anonymizer,
		audit:      audit,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *AnonymizationUseCase) validateScheduleInput(input *anonymizationDomain.ScheduleInput) error {
	if input == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "schedule input is required")
	}

	err := validation.ValidateStruct(input,
		validation.Field(&input.EntityType,
			validation.Required.Error("entity type is required"),
			validation.By(func(any) error {
				if _, ok := uc.handlers[input.EntityType]; !ok {
					return fmt.Errorf("entity type %q cannot be anonymized", input.EntityType)
				}
				return nil
			}),
		),
		validation.Field(&input.EntityID,
			validation.By(func(any) error {
				if input.EntityID == uuid.Nil {
					return fmt.Errorf("entity id is required")
				}
				return nil
			}),
		),
		validation.Field(&input.Reason,
			validation.Required.Error("reason is required"),
			validation.By(func(any) error {
				if !input.Reason.Valid() {
					return fmt.Errorf("unknown reason %q", input.Reason)
				}
				return nil
			}),
		),
	)
	return appValidation.WrapValidationError(err)
}

// Schedule creates a pending job. Only one pending or running job may target an
// entity at a time.
func (uc *AnonymizationUseCase) Schedule(
	ctx context.Context,
	input *anonymizationDomain.ScheduleInput,
) (*anonymizationDomain.Job, error) {
	if err := uc.validateScheduleInput(input); err != nil {
		return nil, err
	}

	if active, err := uc.jobRepo.FindActive(ctx, input.EntityType, input.EntityID); err == nil {
		return nil, apperrors.Wrapf(anonymizationDomain.ErrJobAlreadyActive, "job %s", active.ID)
	} else if !apperrors.Is(err, anonymizationDomain.ErrJobNotFound) {
		return nil, apperrors.Wrap(err, "failed to look up active jobs")
	}

	now := uc.now().UTC()
	scheduledFor := now
	if input.ScheduledFor != nil && input.ScheduledFor.After(now) {
		scheduledFor = input.ScheduledFor.UTC()
	}

	job := &anonymizationDomain.Job{
		ID:                 uuid.Must(uuid.NewV7()),
		EntityType:         input.EntityType,
		EntityID:           input.EntityID,
		Reason:             input.Reason,
		Status:             anonymizationDomain.StatusPending,
		Priority:           anonymizationDomain.PriorityFor(input.Reason),
		PreserveStatistics: input.PreserveStatistics,
		AnonymizedFields:   []string{},
		PreservedFields:    []string{},
		Errors:             []string{},
		RequestedBy:        input.RequestedBy,
		ScheduledFor:       scheduledFor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := uc.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAnonymizationJob,
		EntityID:   job.ID.String(),
		Action:     auditDomain.ActionAnonymizationScheduled,
		UserID:     input.RequestedBy,
		Details: map[string]any{
			"entity_type":         string(job.EntityType),
			"entity_id":           job.EntityID.String(),
			"reason":              string(job.Reason),
			"priority":            string(job.Priority),
			"preserve_statistics": job.PreserveStatistics,
			"scheduled_for":       job.ScheduledFor.Format(time.RFC3339),
		},
	})

	uc.logger.Info("anonymization scheduled",
		slog.String("job_id", job.ID.String()),
		slog.String("entity_type", string(job.EntityType)),
		slog.String("entity_id", job.EntityID.String()),
		slog.String("reason", string(job.Reason)),
		slog.String("priority", string(job.Priority)),
		slog.Time("scheduled_for", job.ScheduledFor),
	)

	uc.dispatch(job)
	return job, nil
}

func (uc *AnonymizationUseCase) dispatch(job *anonymizationDomain.Job) {
	id := job.ID
	task := func(ctx context.Context) error {
		_, err := uc.Execute(ctx, id)
		if apperrors.Is(err, anonymizationDomain.ErrJobNotPending) {
			return nil
		}
		return err
	}

	name := "anonymization:" + id.String()
	if job.ScheduledFor.After(uc.now()) {
		uc.dispatcher.RunAt(name, job.ScheduledFor, task)
		return
	}
	uc.dispatcher.RunNow(name, task)
}

// Execute runs a pending job. A cancelled job is returned unchanged. Only the
// caller that moves the job from pending to running executes it.
func (uc *AnonymizationUseCase) Execute(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	job, err := uc.jobRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case anonymizationDomain.StatusCancelled:
		uc.logger.Info("skipping cancelled anonymization job", slog.String("job_id", job.ID.String()))
		return job, nil
	case anonymizationDomain.StatusPending:
	default:
		return nil, apperrors.Wrapf(anonymizationDomain.ErrJobNotPending, "job %s is %s", job.ID, job.Status)
	}

	handler, ok := uc.handlers[job.EntityType]
	if !ok {
		return uc.fail(
			ctx, job, anonymizationDomain.StatusPending,
			apperrors.Wrapf(anonymizationDomain.ErrUnsupportedEntity, "%s", job.EntityType),
		)
	}

	started := uc.now().UTC()
	job.Status = anonymizationDomain.StatusRunning
	job.StartedAt = &started
	job.UpdatedAt = started
	if err := uc.jobRepo.Transition(ctx, job, anonymizationDomain.StatusPending); err != nil {
		if statusChanged(err) {
			uc.logger.Info("anonymization job taken by another worker", slog.String("job_id", job.ID.String()))
		}
		return nil, apperrors.Wrap(err, "failed to mark job running")
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAnonymizationJob,
		EntityID:   job.ID.String(),
		Action:     auditDomain.ActionAnonymizationStarted,
		Details: map[string]any{
			"entity_type": string(job.EntityType),
			"entity_id":   job.EntityID.String(),
		},
	})

	if err := uc.run(ctx, job, handler); err != nil {
		if statusChanged(err) {
			return nil, uc.abandoned(job, err)
		}
		return uc.fail(ctx, job, anonymizationDomain.StatusRunning, err)
	}

	completed := uc.now().UTC()
	job.Status = anonymizationDomain.StatusCompleted
	job.Progress = 100
	job.CompletedAt = &completed
	job.UpdatedAt = completed
	if err := uc.jobRepo.Transition(context.WithoutCancel(ctx), job, anonymizationDomain.StatusRunning); err != nil {
		if statusChanged(err) {
			return nil, uc.abandoned(job, err)
		}
		return nil, apperrors.Wrap(err, "failed to mark job completed")
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAnonymizationJob,
		EntityID:   job.ID.String(),
		Action:     auditDomain.ActionAnonymizationCompleted,
		Details: map[string]any{
			"entity_type":       string(job.EntityType),
			"entity_id":         job.EntityID.String(),
			"affected_records":  job.AffectedRecords,
			"anonymized_fields": job.AnonymizedFields,
			"preserved_fields":  job.PreservedFields,
		},
	})

	uc.logger.Info("anonymization completed",
		slog.String("job_id", job.ID.String()),
		slog.Int("affected_records", job.AffectedRecords),
		slog.Int("anonymized_fields", len(job.AnonymizedFields)),
		slog.Int("preserved_fields", len(job.PreservedFields)),
	)
	return job, nil
}

// run anonymizes the target, then its dependents, then lets the handler finalize.
func (uc *AnonymizationUseCase) run(
	ctx context.Context,
	job *anonymizationDomain.Job,
	handler EntityHandler,
) error {
	dependents, err := handler.Dependents(ctx, job.EntityID)
	if err != nil {
		return apperrors.Wrap(err, "failed to list dependent records")
	}

	finalizer, hasFinalizer := handler.(Finalizer)
	steps := 1 + len(dependents)
	if hasFinalizer {
		steps++
	}
	done := 0
	advance := func() error {
		done++
		job.Progress = done * 100 / steps
		job.UpdatedAt = uc.now().UTC()
		err := uc.jobRepo.Transition(ctx, job, anonymizationDomain.StatusRunning)
		if statusChanged(err) {
			return err
		}
		if err != nil {
			uc.logger.Warn("failed to record job progress",
				slog.String("job_id", job.ID.String()),
				slog.Any("error", err),
			)
		}
		return nil
	}

	anonymized, preserved, err := uc.anonymizeRecord(ctx, handler, job.EntityID, job.PreserveStatistics)
	if err != nil {
		return err
	}
	job.AnonymizedFields = anonymized
	job.PreservedFields = preserved
	if anonymized != nil {
		job.AffectedRecords++
	}
	if err := advance(); err != nil {
		return err
	}

	for _, target := range dependents {
		dependentHandler, ok := uc.handlers[target.EntityType]
		if !ok {
			return apperrors.Wrapf(anonymizationDomain.ErrUnsupportedEntity, "%s", target.EntityType)
		}
		fields, _, err := uc.anonymizeRecord(ctx, dependentHandler, target.EntityID, job.PreserveStatistics)
		if err != nil {
			return apperrors.Wrapf(err, "%s %s", target.EntityType, target.EntityID)
		}
		if fields != nil {
			job.AffectedRecords++
		}
		if err := advance(); err != nil {
			return err
		}
	}

	if hasFinalizer {
		n, err := finalizer.Finalize(ctx, job.EntityID, job.Reason)
		if err != nil {
			return apperrors.Wrap(err, "failed to finalize anonymization")
		}
		job.AffectedRecords += n
		if err := advance(); err != nil {
			return err
		}
	}
	return nil
}

// anonymizeRecord applies the handler's rules to one record. It returns nil
// field lists when the record was already anonymized.
func (uc *AnonymizationUseCase) anonymizeRecord(
	ctx context.Context,
	handler EntityHandler,
	id uuid.UUID,
	preserveStatistics bool,
) (anonymized, preserved []string, err error) {
	record, err := handler.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if record.AnonymizedAt != nil {
		return nil, nil, nil
	}

	anonymized, preserved = []string{}, []string{}
	for _, rule := range handler.Rules() {
		effective, keepsStatistics := rule.Effective(preserveStatistics)
		value, err := uc.anonymizer.Apply(effective, record.Fields[rule.Field])
		if err != nil {
			return nil, nil, apperrors.Wrapf(err, "field %s", rule.Field)
		}
		record.Fields[rule.Field] = value
		if keepsStatistics {
			preserved = append(preserved, rule.Field)
		} else {
			anonymized = append(anonymized, rule.Field)
		}
	}

	if err := handler.Save(ctx, id, record.Fields, uc.now().UTC()); err != nil {
		return nil, nil, err
	}
	return anonymized, preserved, nil
}

func statusChanged(err error) bool {
	return apperrors.Is(err, anonymizationDomain.ErrJobNotPending) ||
		apperrors.Is(err, anonymizationDomain.ErrJobNotRunning)
}

// abandoned stops an execution whose job was moved on by another process.
// Nothing is written so the other process's outcome stands.
func (uc *AnonymizationUseCase) abandoned(job *anonymizationDomain.Job, err error) error {
	uc.logger.Warn("anonymization job changed by another process",
		slog.String("job_id", job.ID.String()),
		slog.Any("error", err),
	)
	return apperrors.Wrapf(err, "anonymization job %s", job.ID)
}

// fail records err on a job still in status from. The job is not retried.
func (uc *AnonymizationUseCase) fail(
	ctx context.Context,
	job *anonymizationDomain.Job,
	from anonymizationDomain.Status,
	cause error,
) (*anonymizationDomain.Job, error) {
	ctx = context.WithoutCancel(ctx)
	now := uc.now().UTC()
	job.Status = anonymizationDomain.StatusFailed
	job.Errors = append(job.Errors, cause.Error())
	job.CompletedAt = &now
	job.UpdatedAt = now

	if err := uc.jobRepo.Transition(ctx, job, from); err != nil {
		if statusChanged(err) {
			return nil, uc.abandoned(job, err)
		}
		uc.logger.Error("failed to record job failure",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err),
		)
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAnonymizationJob,
		EntityID:   job.ID.String(),
		Action:     auditDomain.ActionAnonymizationFailed,
		Severity:   auditDomain.SeverityHigh,
		Details: map[string]any{
			"entity_type": string(job.EntityType),
			"entity_id":   job.EntityID.String(),
			"error":       cause.Error(),
		},
	})

	uc.logger.Error("anonymization failed",
		slog.String("job_id", job.ID.String()),
		slog.String("entity_type", string(job.EntityType)),
		slog.String("entity_id", job.EntityID.String()),
		slog.Any("error", cause),
	)
	return job, apperrors.Wrapf(cause, "anonymization job %s failed", job.ID)
}

// Cancel cancels a pending job.
func (uc *AnonymizationUseCase) Cancel(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	job, err := uc.jobRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != anonymizationDomain.StatusPending {
		return nil, apperrors.Wrapf(anonymizationDomain.ErrJobNotPending, "job %s is %s", job.ID, job.Status)
	}

	now := uc.now().UTC()
	job.Status = anonymizationDomain.StatusCancelled
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := uc.jobRepo.Transition(ctx, job, anonymizationDomain.StatusPending); err != nil {
		return nil, apperrors.Wrapf(err, "job %s", job.ID)
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAnonymizationJob,
		EntityID:   job.ID.String(),
		Action:     auditDomain.ActionAnonymizationCancelled,
		Details: map[string]any{
			"entity_type": string(job.EntityType),
			"entity_id":   job.EntityID.String(),
		},
	})
	return job, nil
}

// GetJobStatus returns a job.
func (uc *AnonymizationUseCase) GetJobStatus(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	return uc.jobRepo.Get(ctx, id)
}

// ListJobs returns jobs ordered by priority.
func (uc *AnonymizationUseCase) ListJobs(
	ctx context.Context,
	status *anonymizationDomain.Status,
	offset, limit int,
) ([]*anonymizationDomain.Job, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown status %q", *status)
	}
	if offset < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "offset must not be negative")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return uc.jobRepo.List(ctx, status, offset, limit)
}

// RecoverJobs fails stale running jobs and re-dispatches pending ones.
func (uc *AnonymizationUseCase) RecoverJobs(ctx context.Context) (*anonymizationDomain.RecoveryReport, error) {
	report := &anonymizationDomain.RecoveryReport{}

	failed, err := uc.failStale(ctx)
	report.Failed = failed
	if err != nil {
		return report, err
	}

	pending := anonymizationDomain.StatusPending
	for offset := 0; ; offset += recoveryPageSize {
		jobs, err := uc.jobRepo.List(ctx, &pending, offset, recoveryPageSize)
		if err != nil {
			return report, apperrors.Wrap(err, "failed to list pending jobs")
		}
		for _, job := range jobs {
			uc.dispatch(job)
			report.Rescheduled++
		}
		if len(jobs) < recoveryPageSize {
			break
		}
	}

	uc.logger.Info("anonymization jobs recovered",
		slog.Int("failed", report.Failed),
		slog.Int("rescheduled", report.Rescheduled),
	)
	return report, nil
}

// failStale fails running jobs whose last write is older than the stale
// threshold. Jobs another process finishes meanwhile are left alone.
func (uc *AnonymizationUseCase) failStale(ctx context.Context) (int, error) {
	before := uc.now().UTC().Add(-uc.config.StaleAfter)
	failed := 0
	seen := make(map[uuid.UUID]bool)
	for {
		// Failed jobs leave the stale set, so the first page is always re-read.
		jobs, err := uc.jobRepo.ListStale(ctx, before, recoveryPageSize)
		if err != nil {
			return failed, apperrors.Wrap(err, "failed to list stale jobs")
		}
		progressed := false
		for _, job := range jobs {
			if seen[job.ID] {
				continue
			}
			seen[job.ID] = true
			progressed = true
			_, err := uc.fail(ctx, job, anonymizationDomain.StatusRunning, apperrors.New(staleError))
			if statusChanged(err) {
				continue
			}
			failed++
		}
		if len(jobs) < recoveryPageSize || !progressed {
			return failed, nil
		}
	}
}

// RunDueJobs fails stale running jobs, then executes every pending job whose
// scheduled time has passed. It picks up delayed jobs whose in-process timer
// was lost with a previous process.
func (uc *AnonymizationUseCase) RunDueJobs(ctx context.Context) (*anonymizationDomain.DueReport, error) {
	report := &anonymizationDomain.DueReport{}

	stale, err := uc.failStale(ctx)
	report.Stale = stale
	if err != nil {
		return report, err
	}

	now := uc.now().UTC()
	seen := make(map[uuid.UUID]bool)
	for {
		jobs, err := uc.jobRepo.ListDue(ctx, now, recoveryPageSize)
		if err != nil {
			return report, apperrors.Wrap(err, "failed to list due jobs")
		}
		progressed := false
		for _, job := range jobs {
			if seen[job.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}
			seen[job.ID] = true
			progressed = true

			executed, err := uc.Execute(ctx, job.ID)
			switch {
			case statusChanged(err):
				report.Skipped++
			case err != nil:
				report.Failed++
			case executed.Status != anonymizationDomain.StatusCompleted:
				report.Skipped++
			default:
				report.Completed++
			}
		}
		if len(jobs) < recoveryPageSize || !progressed {
			break
		}
	}

	if report.Stale+report.Completed+report.Failed+report.Skipped > 0 {
		uc.logger.Info("due anonymization jobs processed",
			slog.Int("stale", report.Stale),
			slog.Int("completed", report.Completed),
			slog.Int("failed", report.Failed),
			slog.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

var _ UseCase = (*AnonymizationUseCase)(nil)
