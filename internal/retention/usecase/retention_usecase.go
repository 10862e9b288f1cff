package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	apperrors "github.com/allisson/compliance/internal/errors"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
	appValidation "github.com/allisson/compliance/internal/validation"
)

const defaultBatchSize = 500

// anonymizable lists the entity types the anonymization engine can process.
var anonymizable = map[auditDomain.EntityType]bool{
	auditDomain.EntityStudent: true,
	auditDomain.EntityParent:  true,
	auditDomain.EntitySession: true,
}

// Config holds the retention scheduler settings.
type Config struct {
	// BatchSize is the page size used when reading eligible entities.
	BatchSize int
}

// RetentionUseCase implements UseCase.
type RetentionUseCase struct {
	config     Config
	policies   PolicyRepository
	records    RecordRepository
	adapters   map[auditDomain.EntityType]EntityAdapter
	anonymizer AnonymizationScheduler
	audit      AuditLogger
	notifier   Notifier
	logger     *slog.Logger
	running    atomic.Bool
	now        func() time.Time
	newID      func() uuid.UUID
}

// NewRetentionUseCase creates a new RetentionUseCase.
func NewRetentionUseCase(
	config Config,
	policies PolicyRepository,
	records RecordRepository,
	adapters []EntityAdapter,
	anonymizer AnonymizationScheduler,
	audit AuditLogger,
	notifier Notifier,
	logger *slog.Logger,
) *RetentionUseCase {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}

	registry := make(map[auditDomain.EntityType]EntityAdapter, len(adapters))
	for _, a := range adapters {
		registry[a.EntityType()] = a
	}

	return &RetentionUseCase{
		config:     config,
		policies:   policies,
		records:    records,
		adapters:   registry,
		anonymizer: anonymizer,
		audit:      audit,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		newID:      func() uuid.UUID { return uuid.Must(uuid.NewV7()) },
	}
}

func validateCreatePolicyInput(input *retentionDomain.CreatePolicyInput) error {
	if input == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "policy input is required")
	}

	err := validation.ValidateStruct(input,
		validation.Field(&input.Name,
			validation.Required.Error("policy name is required"),
			appValidation.NotBlank,
			validation.Length(1, 100),
		),
		validation.Field(&input.EntityType, validation.Required.Error("entity type is required")),
		validation.Field(&input.RetentionPeriodDays,
			validation.Required.Error("retention period is required"),
			validation.Min(1),
		),
		validation.Field(&input.Action,
			validation.Required.Error("action is required"),
			validation.By(func(any) error {
				if !input.Action.Valid() {
					return fmt.Errorf("unknown action %q", input.Action)
				}
				return nil
			}),
		),
		validation.Field(&input.LegalBasis, validation.Required.Error("legal basis is required"), appValidation.NotBlank),
		validation.Field(&input.Exceptions, validation.By(func(any) error {
			for _, e := range input.Exceptions {
				if !e.Valid() {
					return fmt.Errorf("unknown exception %q", e)
				}
			}
			return nil
		})),
		validation.Field(&input.NotificationDays,
			validation.Min(0),
			validation.By(func(any) error {
				if input.NotificationDays >= input.RetentionPeriodDays && input.RetentionPeriodDays > 0 {
					return fmt.Errorf("notice period must be shorter than the retention period")
				}
				return nil
			}),
		),
		validation.Field(&input.Priority, validation.Min(0)),
	)
	return appValidation.WrapValidationError(err)
}

// CreatePolicy rejects a period below the minimum or above the maximum of the
// entity type's legal category. Both bounds are accepted.
func (uc *RetentionUseCase) CreatePolicy(
	ctx context.Context,
	input *retentionDomain.CreatePolicyInput,
) (*retentionDomain.Policy, error) {
	if err := validateCreatePolicyInput(input); err != nil {
		return nil, err
	}

	req, ok := retentionDomain.RequirementFor(input.EntityType)
	if !ok {
		return nil, apperrors.Wrapf(retentionDomain.ErrUnsupportedEntity, "%s", input.EntityType)
	}
	if _, ok := uc.adapters[input.EntityType]; !ok {
		return nil, apperrors.Wrapf(retentionDomain.ErrUnsupportedEntity, "%s", input.EntityType)
	}
	if !req.Allows(input.RetentionPeriodDays) {
		return nil, apperrors.Wrapf(retentionDomain.ErrRetentionOutOfBounds,
			"%s requires %d to %d days for %s, got %d",
			input.EntityType, req.MinimumRetentionDays, req.MaximumRetentionDays, req.Category,
			input.RetentionPeriodDays,
		)
	}
	if input.Action == retentionDomain.ActionAnonymize && !anonymizable[input.EntityType] {
		return nil, apperrors.Wrapf(retentionDomain.ErrUnsupportedAction, "%s cannot be anonymized", input.EntityType)
	}

	now := uc.now().UTC()
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	exceptions := input.Exceptions
	if exceptions == nil {
		exceptions = []retentionDomain.Exception{}
	}

	policy := &retentionDomain.Policy{
		ID:                  uc.newID(),
		Name:                input.Name,
		EntityType:          input.EntityType,
		RetentionPeriodDays: input.RetentionPeriodDays,
		TriggerCondition:    input.TriggerCondition,
		Action:              input.Action,
		Priority:            input.Priority,
		Active:              active,
		LegalBasis:          input.LegalBasis,
		Exceptions:          exceptions,
		NotificationDays:    input.NotificationDays,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.policies.Create(ctx, policy); err != nil {
		if apperrors.Is(err, retentionDomain.ErrPolicyAlreadyExists) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "failed to create retention policy")
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityRetentionPolicy,
		EntityID:   policy.ID.String(),
		Action:     auditDomain.ActionRetentionPolicyCreated,
		Details: map[string]any{
			"policy_name":           policy.Name,
			"entity_type":           string(policy.EntityType),
			"retention_period_days": policy.RetentionPeriodDays,
			"action":                string(policy.Action),
			"legal_basis":           policy.LegalBasis,
			"legal_category":        req.Category,
		},
	})

	uc.logger.Info("retention policy created",
		slog.String("policy_id", policy.ID.String()),
		slog.String("policy_name", policy.Name),
		slog.String("entity_type", string(policy.EntityType)),
		slog.Int("retention_period_days", policy.RetentionPeriodDays),
	)
	return policy, nil
}

func (uc *RetentionUseCase) SetPolicyActive(
	ctx context.Context,
	id uuid.UUID,
	active bool,
) (*retentionDomain.Policy, error) {
	policy, err := uc.policies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy.Active == active {
		return policy, nil
	}

	now := uc.now().UTC()
	if err := uc.policies.SetActive(ctx, id, active, now); err != nil {
		return nil, apperrors.Wrap(err, "failed to update retention policy")
	}
	policy.Active = active
	policy.UpdatedAt = now

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityRetentionPolicy,
		EntityID:   id.String(),
		Action:     auditDomain.ActionUpdate,
		Details:    map[string]any{"active": active},
	})
	return policy, nil
}

func (uc *RetentionUseCase) ListPolicies(ctx context.Context) ([]*retentionDomain.Policy, error) {
	return uc.policies.List(ctx, false)
}

// ExecutePolicies returns ErrRunInProgress when another run has not finished.
func (uc *RetentionUseCase) ExecutePolicies(ctx context.Context) (*retentionDomain.RunReport, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return nil, retentionDomain.ErrRunInProgress
	}
	defer uc.running.Store(false)

	report := &retentionDomain.RunReport{StartedAt: uc.now().UTC(), Policies: []*retentionDomain.PolicyReport{}}

	policies, err := uc.policies.List(ctx, true)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active retention policies")
	}

	for _, policy := range policies {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		pr, err := uc.execute(ctx, policy)
		if err != nil {
			report.Failed++
			uc.policyFailed(ctx, policy, err)
		}
		if pr != nil {
			report.Policies = append(report.Policies, pr)
		}
	}

	report.FinishedAt = uc.now().UTC()
	uc.logger.Info("retention run completed",
		slog.Int("policies", len(policies)),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (uc *RetentionUseCase) ExecuteSinglePolicy(
	ctx context.Context,
	id uuid.UUID,
) (*retentionDomain.PolicyReport, error) {
	policy, err := uc.policies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Active {
		return nil, retentionDomain.ErrPolicyInactive
	}

	report, err := uc.execute(ctx, policy)
	if err != nil {
		uc.policyFailed(ctx, policy, err)
		return report, err
	}
	return report, nil
}

func (uc *RetentionUseCase) policyFailed(ctx context.Context, policy *retentionDomain.Policy, err error) {
	uc.logger.Error("retention policy failed",
		slog.String("policy_id", policy.ID.String()),
		slog.String("policy_name", policy.Name),
		slog.Any("error", err),
	)
	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityRetentionPolicy,
		EntityID:   policy.ID.String(),
		Action:     auditDomain.ActionRetentionFailed,
		Details:    map[string]any{"policy_name": policy.Name, "error": err.Error()},
	})
}

// execute applies a policy to one batch of eligible entities. Only errors that
// stop the whole policy are returned; per-entity failures land in the report.
func (uc *RetentionUseCase) execute(
	ctx context.Context,
	policy *retentionDomain.Policy,
) (*retentionDomain.PolicyReport, error) {
	now := uc.now().UTC()
	report := &retentionDomain.PolicyReport{
		PolicyID:   policy.ID,
		PolicyName: policy.Name,
		EntityType: policy.EntityType,
		Action:     policy.Action,
		Errors:     []string{},
		StartedAt:  now,
	}

	adapter, ok := uc.adapters[policy.EntityType]
	if !ok {
		return report, apperrors.Wrapf(retentionDomain.ErrUnsupportedEntity, "%s", policy.EntityType)
	}

	// Exempt, deferred and already processed entities stay eligible, so the run
	// pages past them instead of stopping at the first batch.
	horizon := policy.Horizon(now)
	var cursor *database.Cursor
	for {
		candidates, err := adapter.FindEligible(ctx, horizon, cursor, uc.config.BatchSize)
		if err != nil {
			return report, apperrors.Wrap(err, "failed to find eligible entities")
		}
		report.Eligible += len(candidates)

		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := uc.apply(ctx, policy, adapter, c, now, report); err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s %s: %v", c.EntityType, c.EntityID, err))
			}
		}

		if len(candidates) < uc.config.BatchSize {
			break
		}
		last := candidates[len(candidates)-1]
		cursor = &database.Cursor{At: last.ReferenceTime, ID: last.EntityID}
	}

	if err := uc.policies.RecordExecution(ctx, policy.ID, now, report.Processed); err != nil {
		return report, apperrors.Wrap(err, "failed to record policy execution")
	}
	policy.LastExecuted = &now
	policy.RecordsProcessed += report.Processed

	report.FinishedAt = uc.now().UTC()
	uc.logger.Info("retention policy executed",
		slog.String("policy_name", policy.Name),
		slog.Int("eligible", report.Eligible),
		slog.Int("processed", report.Processed),
		slog.Int("notified", report.Notified),
		slog.Int("deferred", report.Deferred),
		slog.Int("exempted", report.Exempted),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// apply moves one entity through the policy. A returned error means the entity
// failed and has been recorded and audited as such.
func (uc *RetentionUseCase) apply(
	ctx context.Context,
	policy *retentionDomain.Policy,
	adapter EntityAdapter,
	c *retentionDomain.Candidate,
	now time.Time,
	report *retentionDomain.PolicyReport,
) error {
	if reason := c.Exempt(policy, now); reason != "" {
		report.Exempted++
		uc.logger.Debug("entity exempted from retention",
			slog.String("policy_name", policy.Name),
			slog.String("entity_id", c.EntityID.String()),
			slog.String("exception", reason),
		)
		return nil
	}

	rec, err := uc.records.Get(ctx, policy.ID, c.EntityID)
	if err != nil && !apperrors.Is(err, retentionDomain.ErrRecordNotFound) {
		return apperrors.Wrap(err, "failed to load retention record")
	}
	if rec != nil && rec.ProcessedAt != nil {
		// Processed or failed before. Failures are not retried.
		report.Skipped++
		return nil
	}

	if policy.NotificationDays > 0 {
		if rec == nil || rec.NotifiedAt == nil {
			if err := uc.warn(ctx, policy, c, now); err != nil {
				return uc.fail(ctx, policy, c, rec, now, err)
			}
			if err := uc.saveRecord(ctx, policy, c, rec, now, func(r *retentionDomain.Record) {
				r.NotifiedAt = &now
				r.Outcome = retentionDomain.OutcomeNotified
			}); err != nil {
				return err
			}
			report.Notified++
			return nil
		}
		if !policy.NoticeElapsed(*rec.NotifiedAt, now) {
			report.Deferred++
			return nil
		}
	}

	details, err := uc.act(ctx, policy, adapter, c, rec, now)
	if err != nil {
		return uc.fail(ctx, policy, c, rec, now, err)
	}

	outcome := retentionDomain.OutcomeFor(policy.Action)
	if err := uc.saveRecord(ctx, policy, c, rec, now, func(r *retentionDomain.Record) {
		r.ProcessedAt = &now
		r.Outcome = outcome
	}); err != nil {
		return err
	}
	report.Processed++

	details["policy_id"] = policy.ID.String()
	details["policy_name"] = policy.Name
	details["legal_basis"] = policy.LegalBasis
	details["retention_period_days"] = policy.RetentionPeriodDays
	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: c.EntityType,
		EntityID:   c.EntityID.String(),
		Action:     auditActionFor(policy.Action),
		Details:    details,
	})
	return nil
}

func auditActionFor(action retentionDomain.Action) auditDomain.Action {
	switch action {
	case retentionDomain.ActionDelete:
		return auditDomain.ActionRetentionDeleted
	case retentionDomain.ActionAnonymize:
		return auditDomain.ActionRetentionAnonymized
	case retentionDomain.ActionArchive:
		return auditDomain.ActionRetentionArchived
	default:
		return auditDomain.ActionRetentionNotificationSent
	}
}

// act runs the policy action and returns the audit details describing it.
func (uc *RetentionUseCase) act(
	ctx context.Context,
	policy *retentionDomain.Policy,
	adapter EntityAdapter,
	c *retentionDomain.Candidate,
	rec *retentionDomain.Record,
	now time.Time,
) (map[string]any, error) {
	switch policy.Action {
	case retentionDomain.ActionDelete:
		if err := adapter.Delete(ctx, c.EntityID); err != nil {
			return nil, apperrors.Wrap(err, "delete failed")
		}
		return map[string]any{}, nil

	case retentionDomain.ActionAnonymize:
		job, err := uc.anonymizer.Schedule(ctx, &anonymizationDomain.ScheduleInput{
			EntityType:         c.EntityType,
			EntityID:           c.EntityID,
			Reason:             anonymizationDomain.ReasonRetentionPolicy,
			PreserveStatistics: true,
		})
		if apperrors.Is(err, anonymizationDomain.ErrJobAlreadyActive) {
			return map[string]any{"job": "already_active"}, nil
		}
		if err != nil {
			return nil, apperrors.Wrap(err, "anonymization scheduling failed")
		}
		return map[string]any{"job_id": job.ID.String()}, nil

	case retentionDomain.ActionArchive:
		key, err := adapter.Archive(ctx, c.EntityID, now)
		if err != nil {
			return nil, apperrors.Wrap(err, "archive failed")
		}
		return map[string]any{"archive_key": key}, nil

	case retentionDomain.ActionNotifyOnly:
		if rec == nil || rec.NotifiedAt == nil {
			if err := uc.warn(ctx, policy, c, now); err != nil {
				return nil, err
			}
		}
		return map[string]any{"notify_only": true}, nil

	default:
		return nil, apperrors.Wrapf(retentionDomain.ErrUnsupportedAction, "%s", policy.Action)
	}
}

// warn emails the entity's contact, when it has one, and audits the notice.
func (uc *RetentionUseCase) warn(
	ctx context.Context,
	policy *retentionDomain.Policy,
	c *retentionDomain.Candidate,
	now time.Time,
) error {
	actionDate := now.AddDate(0, 0, policy.NotificationDays)
	if c.Contact != nil && c.Contact.Email != "" {
		err := uc.notifier.Notify(ctx, c.Contact.Email, notificationDomain.TemplateRetentionWarning, map[string]string{
			"name":              c.Contact.Name,
			"entity_type":       string(c.EntityType),
			"action":            string(policy.Action),
			"action_date":       actionDate.Format(time.DateOnly),
			"notification_days": strconv.Itoa(policy.NotificationDays),
		})
		if err != nil {
			return apperrors.Wrap(err, "failed to queue retention warning")
		}
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: c.EntityType,
		EntityID:   c.EntityID.String(),
		Action:     auditDomain.ActionRetentionNotificationSent,
		Details: map[string]any{
			"policy_id":   policy.ID.String(),
			"policy_name": policy.Name,
			"action":      string(policy.Action),
			"action_date": actionDate.Format(time.RFC3339),
			"recipient":   c.Contact != nil,
		},
	})
	return nil
}

// fail records and audits a per-entity failure and returns the cause.
func (uc *RetentionUseCase) fail(
	ctx context.Context,
	policy *retentionDomain.Policy,
	c *retentionDomain.Candidate,
	rec *retentionDomain.Record,
	now time.Time,
	cause error,
) error {
	msg := cause.Error()
	if err := uc.saveRecord(ctx, policy, c, rec, now, func(r *retentionDomain.Record) {
		r.ProcessedAt = &now
		r.Outcome = retentionDomain.OutcomeFailed
		r.Error = &msg
	}); err != nil {
		uc.logger.Error("failed to record retention failure",
			slog.String("entity_id", c.EntityID.String()),
			slog.Any("error", err),
		)
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: c.EntityType,
		EntityID:   c.EntityID.String(),
		Action:     auditDomain.ActionRetentionFailed,
		Details: map[string]any{
			"policy_id":   policy.ID.String(),
			"policy_name": policy.Name,
			"action":      string(policy.Action),
			"error":       msg,
		},
	})
	uc.logger.Warn("retention action failed",
		slog.String("policy_name", policy.Name),
		slog.String("entity_type", string(c.EntityType)),
		slog.String("entity_id", c.EntityID.String()),
		slog.Any("error", cause),
	)
	return cause
}

// saveRecord creates the record on first contact with the entity and updates it afterwards.
func (uc *RetentionUseCase) saveRecord(
	ctx context.Context,
	policy *retentionDomain.Policy,
	c *retentionDomain.Candidate,
	rec *retentionDomain.Record,
	now time.Time,
	mutate func(r *retentionDomain.Record),
) error {
	if rec == nil {
		r := &retentionDomain.Record{
			ID:         uc.newID(),
			PolicyID:   policy.ID,
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		mutate(r)
		if err := uc.records.Create(ctx, r); err != nil {
			return apperrors.Wrap(err, "failed to create retention record")
		}
		return nil
	}

	mutate(rec)
	rec.UpdatedAt = now
	if err := uc.records.Update(ctx, rec); err != nil {
		return apperrors.Wrap(err, "failed to update retention record")
	}
	return nil
}

func (uc *RetentionUseCase) GetStatus(ctx context.Context) (*retentionDomain.Status, error) {
	policies, err := uc.policies.List(ctx, false)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list retention policies")
	}

	status := &retentionDomain.Status{
		TotalPolicies: len(policies),
		Policies:      make([]*retentionDomain.PolicyStatus, 0, len(policies)),
	}
	for _, p := range policies {
		if p.Active {
			status.ActivePolicies++
		}
		if p.LastExecuted != nil && (status.LastRun == nil || p.LastExecuted.After(*status.LastRun)) {
			status.LastRun = p.LastExecuted
		}

		outcomes, err := uc.records.CountByOutcome(ctx, p.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to count retention records")
		}
		status.Policies = append(status.Policies, &retentionDomain.PolicyStatus{Policy: p, Outcomes: outcomes})
	}
	return status, nil
}

func (uc *RetentionUseCase) SeedDefaultPolicies(ctx context.Context) ([]*retentionDomain.Policy, error) {
	created := make([]*retentionDomain.Policy, 0)
	for _, input := range retentionDomain.DefaultPolicies() {
		_, err := uc.policies.GetByName(ctx, input.Name)
		if err == nil {
			continue
		}
		if !apperrors.Is(err, retentionDomain.ErrPolicyNotFound) {
			return created, apperrors.Wrap(err, "failed to look up retention policy")
		}

		policy, err := uc.CreatePolicy(ctx, &input)
		if err != nil {
			return created, apperrors.Wrapf(err, "failed to seed policy %s", input.Name)
		}
		created = append(created, policy)
	}
	return created, nil
}

var _ UseCase = (*RetentionUseCase)(nil)
