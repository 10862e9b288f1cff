package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	"github.com/allisson/compliance/internal/database"
	apperrors "github.com/allisson/compliance/internal/errors"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
	appValidation "github.com/allisson/compliance/internal/validation"
)

const (
	defaultExpiry          = 7 * 24 * time.Hour
	defaultValidity        = 365 * 24 * time.Hour
	defaultExpiryBatchSize = 100
	maxReasonLength        = 500
)

// Config holds the consent windows.
type Config struct {
	// Expiry is how long the parent has to complete both confirmations.
	Expiry time.Duration
	// Validity is how long a verified consent allows processing.
	Validity time.Duration
	// ExpiryBatchSize bounds each page of the pending consent sweep.
	ExpiryBatchSize int
}

// ConsentUseCase implements UseCase.
type ConsentUseCase struct {
	config      Config
	txManager   database.TxManager
	consentRepo ConsentRepository
	parents     ParentRepository
	students    StudentRepository
	tokens      TokenIssuer
	audit       AuditLogger
	notifier    Notifier
	anonymizer  AnonymizationScheduler
	logger      *slog.Logger
	now         func() time.Time
	newID       func() uuid.UUID
}

// NewConsentUseCase creates a new ConsentUseCase.
func NewConsentUseCase(
	config Config,
	txManager database.TxManager,
	consentRepo ConsentRepository,
	parents ParentRepository,
	students StudentRepository,
	tokens TokenIssuer,
	audit AuditLogger,
	notifier Notifier,
	anonymizer AnonymizationScheduler,
	logger *slog.Logger,
) *ConsentUseCase {
	if config.Expiry <= 0 {
		config.Expiry = defaultExpiry
	}
	if config.Validity <= 0 {
		config.Validity = defaultValidity
	}
	if config.ExpiryBatchSize <= 0 {
		config.ExpiryBatchSize = defaultExpiryBatchSize
	}

	return &ConsentUseCase{
		config:      config,
		txManager:   txManager,
		consentRepo: consentRepo,
		parents:     parents,
		students:    students,
		tokens:      tokens,
		audit:       audit,
		notifier:    notifier,
		anonymizer:  anonymizer,
		logger:      logger,
		now:         time.Now,
		newID:       func() uuid.UUID { return uuid.Must(uuid.NewV7()) },
	}
}

func validateInitiateInput(input *consentDomain.InitiateInput) error {
	if input == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "consent input is required")
	}

	err := validation.ValidateStruct(input,
		validation.Field(&input.ParentEmail, validation.Required, appValidation.Email),
		validation.Field(&input.ParentName, validation.Required, appValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&input.ChildName, validation.Required, appValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&input.ChildAge,
			validation.Required,
			validation.Min(learnerDomain.MinChildAge),
			validation.Max(learnerDomain.MaxChildAge),
		),
		validation.Field(&input.ConsentTypes,
			validation.Required,
			validation.Each(validation.By(func(value any) error {
				if t, ok := value.(consentDomain.Type); !ok || !t.Valid() {
					return fmt.Errorf("unknown consent type %v", value)
				}
				return nil
			})),
		),
	)
	return appValidation.WrapValidationError(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func consentTypeNames(types []consentDomain.Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func (uc *ConsentUseCase) logConsent(
	ctx context.Context,
	consent *consentDomain.Consent,
	action auditDomain.Action,
	details map[string]any,
) {
	if details == nil {
		details = map[string]any{}
	}
	details["status"] = string(consent.Status)
	details["parent_email_hash"] = uc.tokens.SHA256(consent.ParentEmail)

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityParentalConsent,
		EntityID:   consent.ID.String(),
		Action:     action,
		Details:    details,
		IPAddress:  consent.IPAddress,
		UserAgent:  consent.UserAgent,
	})
}

// issueToken returns a fresh token and the hash stored in its place.
func (uc *ConsentUseCase) issueToken() (string, string, error) {
	token, err := uc.tokens.RandomToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate consent token: %w", err)
	}
	return token, uc.tokens.SHA256(token), nil
}

// Initiate creates a pending consent and emails the first confirmation token.
// A parent may only have one pending consent at a time.
func (uc *ConsentUseCase) Initiate(
	ctx context.Context,
	input *consentDomain.InitiateInput,
) (*consentDomain.Consent, error) {
	if input != nil {
		normalized := *input
		normalized.ParentEmail = normalizeEmail(input.ParentEmail)
		input = &normalized
	}
	if err := validateInitiateInput(input); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	email := input.ParentEmail

	existing, err := uc.consentRepo.FindPendingByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.ExpiredAt(now) {
			return nil, consentDomain.ErrPendingConsentExists
		}
		if err := uc.expire(ctx, existing, now); err != nil {
			return nil, err
		}
	case !apperrors.Is(err, consentDomain.ErrConsentNotFound):
		return nil, err
	}

	token, hash, err := uc.issueToken()
	if err != nil {
		return nil, err
	}

	consent := &consentDomain.Consent{
		ID:             uc.newID(),
		ParentEmail:    email,
		ParentName:     strings.TrimSpace(input.ParentName),
		ChildName:      strings.TrimSpace(input.ChildName),
		ChildAge:       input.ChildAge,
		ConsentTypes:   input.ConsentTypes,
		Status:         consentDomain.StatusPending,
		FirstTokenHash: hash,
		ExpiryDate:     now.Add(uc.config.Expiry),
		IPAddress:      input.IPAddress,
		UserAgent:      input.UserAgent,
		Metadata:       learnerDomain.Metadata{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.consentRepo.Create(ctx, consent); err != nil {
			return err
		}
		return uc.notifier.Notify(ctx, consent.ParentEmail, notificationDomain.TemplateConsentFirst, map[string]string{
			"parent_name": consent.ParentName,
			"child_name":  consent.ChildName,
			"token":       token,
			"expiry_date": consent.ExpiryDate.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logConsent(ctx, consent, auditDomain.ActionConsentInitiated, map[string]any{
		"child_age":     consent.ChildAge,
		"consent_types": consentTypeNames(consent.ConsentTypes),
		"expiry_date":   consent.ExpiryDate.Format(time.RFC3339),
	})

	uc.logger.Info("parental consent initiated",
		slog.String("consent_id", consent.ID.String()),
		slog.Time("expiry_date", consent.ExpiryDate),
	)
	return consent, nil
}

func validateToken(token string) error {
	return appValidation.WrapValidationError(
		validation.Validate(token, validation.Required.Error("token is required"), appValidation.HexToken),
	)
}

// checkPending rejects consents that can no longer be confirmed, expiring
// them when their window has closed.
func (uc *ConsentUseCase) checkPending(ctx context.Context, consent *consentDomain.Consent, now time.Time) error {
	if consent.Status != consentDomain.StatusPending {
		return consentDomain.ErrConsentAlreadyProcessed
	}
	if consent.ExpiredAt(now) {
		if err := uc.expire(ctx, consent, now); err != nil {
			return err
		}
		return consentDomain.ErrConsentExpired
	}
	return nil
}

// ProcessFirstConsent confirms the first step and emails the second token.
func (uc *ConsentUseCase) ProcessFirstConsent(ctx context.Context, token string) (*consentDomain.Consent, error) {
	if err := validateToken(token); err != nil {
		return nil, err
	}

	consent, err := uc.consentRepo.GetByFirstTokenHash(ctx, uc.tokens.SHA256(token))
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	if err := uc.checkPending(ctx, consent, now); err != nil {
		return nil, err
	}
	if consent.FirstConsentDate != nil {
		return nil, consentDomain.ErrConsentAlreadyProcessed
	}

	secondToken, secondHash, err := uc.issueToken()
	if err != nil {
		return nil, err
	}

	consent.FirstConsentDate = &now
	consent.SecondTokenHash = &secondHash
	consent.UpdatedAt = now

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.consentRepo.Update(ctx, consent); err != nil {
			return err
		}
		return uc.notifier.Notify(ctx, consent.ParentEmail, notificationDomain.TemplateConsentSecond, map[string]string{
			"parent_name": consent.ParentName,
			"child_name":  consent.ChildName,
			"token":       secondToken,
			"expiry_date": consent.ExpiryDate.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logConsent(ctx, consent, auditDomain.ActionConsentFirstConfirmed, map[string]any{
		"first_consent_date": now.Format(time.RFC3339),
	})
	return consent, nil
}

// ProcessSecondConsent verifies the consent. In one transaction it finds or
// creates the parent, creates the student and records the verification.
func (uc *ConsentUseCase) ProcessSecondConsent(ctx context.Context, token string) (*consentDomain.Consent, error) {
	if err := validateToken(token); err != nil {
		return nil, err
	}

	consent, err := uc.consentRepo.GetBySecondTokenHash(ctx, uc.tokens.SHA256(token))
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	if consent.Status == consentDomain.StatusPending && consent.FirstConsentDate == nil {
		return nil, consentDomain.ErrFirstConsentRequired
	}
	if err := uc.checkPending(ctx, consent, now); err != nil {
		return nil, err
	}

	grade, ok := learnerDomain.GradeForAge(consent.ChildAge)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "no grade level for child age %d", consent.ChildAge)
	}

	var student *learnerDomain.Student
	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		parent, err := uc.findOrCreateParent(ctx, consent, now)
		if err != nil {
			return err
		}

		firstName, lastName := splitName(consent.ChildName)
		student = &learnerDomain.Student{
			ID:             uc.newID(),
			ParentID:       parent.ID,
			ConsentID:      consent.ID,
			FirstName:      firstName,
			LastName:       lastName,
			Age:            consent.ChildAge,
			GradeLevel:     grade,
			Metadata:       learnerDomain.Metadata{},
			LastActivityAt: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := uc.students.Create(ctx, student); err != nil {
			return err
		}

		consent.Status = consentDomain.StatusVerified
		consent.SecondConsentDate = &now
		validUntil := now.Add(uc.config.Validity)
		consent.ValidUntil = &validUntil
		consent.ParentID = &parent.ID
		consent.StudentID = &student.ID
		consent.UpdatedAt = now
		if err := uc.consentRepo.Update(ctx, consent); err != nil {
			return err
		}

		return uc.notifier.Notify(ctx, consent.ParentEmail, notificationDomain.TemplateConsentConfirmed, map[string]string{
			"parent_name": consent.ParentName,
			"child_name":  consent.ChildName,
			"grade_level": grade,
			"valid_until": consent.ValidUntil.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logConsent(ctx, consent, auditDomain.ActionConsentVerified, map[string]any{
		"student_id":    student.ID.String(),
		"consent_types": consentTypeNames(consent.ConsentTypes),
		"valid_until":   consent.ValidUntil.Format(time.RFC3339),
	})
	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityStudent,
		EntityID:   student.ID.String(),
		Action:     auditDomain.ActionCreate,
		Details: map[string]any{
			"consent_id":  consent.ID.String(),
			"grade_level": student.GradeLevel,
			"age":         strconv.Itoa(student.Age),
		},
	})

	uc.logger.Info("parental consent verified",
		slog.String("consent_id", consent.ID.String()),
		slog.String("student_id", student.ID.String()),
	)
	return consent, nil
}

func (uc *ConsentUseCase) findOrCreateParent(
	ctx context.Context,
	consent *consentDomain.Consent,
	now time.Time,
) (*learnerDomain.Parent, error) {
	parent, err := uc.parents.GetByEmail(ctx, consent.ParentEmail)
	if err == nil {
		if err := uc.parents.Touch(ctx, parent.ID, now); err != nil {
			return nil, err
		}
		return parent, nil
	}
	if !apperrors.Is(err, learnerDomain.ErrParentNotFound) {
		return nil, err
	}

	firstName, lastName := splitName(consent.ParentName)
	parent = &learnerDomain.Parent{
		ID:             uc.newID(),
		Email:          consent.ParentEmail,
		FirstName:      firstName,
		LastName:       lastName,
		Metadata:       learnerDomain.Metadata{},
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.parents.Create(ctx, parent); err != nil {
		return nil, err
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityParent,
		EntityID:   parent.ID.String(),
		Action:     auditDomain.ActionCreate,
		Details:    map[string]any{"consent_id": consent.ID.String()},
	})
	return parent, nil
}

func validateRevokeInput(input *consentDomain.RevokeInput) error {
	if input == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "revoke input is required")
	}

	err := validation.ValidateStruct(input,
		validation.Field(&input.ConsentID, validation.By(func(any) error {
			if input.ConsentID == uuid.Nil {
				return fmt.Errorf("consent id is required")
			}
			return nil
		})),
		validation.Field(&input.ParentEmail, validation.Required, appValidation.Email),
		validation.Field(&input.Reason, validation.Required, appValidation.NotBlank, validation.Length(1, maxReasonLength)),
	)
	return appValidation.WrapValidationError(err)
}

// Revoke withdraws a pending or verified consent. Only the parent who gave the
// consent may revoke it. A verified consent schedules a full anonymization of
// the student, statistics included.
func (uc *ConsentUseCase) Revoke(
	ctx context.Context,
	input *consentDomain.RevokeInput,
) (*consentDomain.Consent, error) {
	if err := validateRevokeInput(input); err != nil {
		return nil, err
	}

	consent, err := uc.consentRepo.Get(ctx, input.ConsentID)
	if err != nil {
		return nil, err
	}

	if normalizeEmail(input.ParentEmail) != consent.ParentEmail {
		uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityParentalConsent,
			EntityID:   consent.ID.String(),
			Action:     auditDomain.ActionAccessDenied,
			Details:    map[string]any{"operation": "revoke"},
			IPAddress:  input.IPAddress,
			UserAgent:  input.UserAgent,
			Severity:   auditDomain.SeverityMedium,
			Category:   auditDomain.CategorySecurity,
		})
		return nil, consentDomain.ErrRevocationForbidden
	}

	if consent.Status != consentDomain.StatusPending && consent.Status != consentDomain.StatusVerified {
		return nil, consentDomain.ErrConsentAlreadyProcessed
	}

	now := uc.now().UTC()
	wasVerified := consent.Status == consentDomain.StatusVerified
	reason := strings.TrimSpace(input.Reason)

	consent.Status = consentDomain.StatusRevoked
	consent.RevokedAt = &now
	consent.RevocationReason = &reason
	consent.UpdatedAt = now

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.consentRepo.Update(ctx, consent); err != nil {
			return err
		}
		return uc.notifier.Notify(ctx, consent.ParentEmail, notificationDomain.TemplateConsentRevoked, map[string]string{
			"parent_name": consent.ParentName,
			"child_name":  consent.ChildName,
			"revoked_at":  now.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logConsent(ctx, consent, auditDomain.ActionConsentRevoked, map[string]any{
		"reason":       reason,
		"was_verified": wasVerified,
	})

	if wasVerified && consent.StudentID != nil {
		if err := uc.scheduleErasure(ctx, *consent.StudentID); err != nil {
			return consent, err
		}
	}
	return consent, nil
}

func (uc *ConsentUseCase) scheduleErasure(ctx context.Context, studentID uuid.UUID) error {
	_, err := uc.anonymizer.Schedule(ctx, &anonymizationDomain.ScheduleInput{
		EntityType:         auditDomain.EntityStudent,
		EntityID:           studentID,
		Reason:             anonymizationDomain.ReasonConsentWithdrawal,
		PreserveStatistics: false,
	})
	switch {
	case err == nil:
		return nil
	case apperrors.Is(err, anonymizationDomain.ErrJobAlreadyActive):
		uc.logger.Warn("anonymization already active for revoked consent",
			slog.String("student_id", studentID.String()),
		)
		return nil
	default:
		uc.logger.Error("failed to schedule anonymization after revocation",
			slog.String("student_id", studentID.String()),
			slog.Any("error", err),
		)
		return fmt.Errorf("consent revoked but anonymization could not be scheduled: %w", err)
	}
}

// IsValidForProcessing reports whether a student's data may be processed for
// the given consent type. A student without a consent is never valid.
func (uc *ConsentUseCase) IsValidForProcessing(
	ctx context.Context,
	studentID uuid.UUID,
	consentType consentDomain.Type,
) (bool, error) {
	if !consentType.Valid() {
		return false, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown consent type %q", consentType)
	}

	consent, err := uc.consentRepo.GetByStudent(ctx, studentID)
	if apperrors.Is(err, consentDomain.ErrConsentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return consent.ValidForProcessing(consentType, uc.now().UTC()), nil
}

// Get returns a consent, expiring it first when its window has closed.
func (uc *ConsentUseCase) Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error) {
	consent, err := uc.consentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	if consent.ExpiredAt(now) {
		if err := uc.expire(ctx, consent, now); err != nil {
			return nil, err
		}
	}
	return consent, nil
}

// ExpirePending expires every pending consent past its window.
func (uc *ConsentUseCase) ExpirePending(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	expired := 0

	for {
		consents, err := uc.consentRepo.ListExpiredPending(ctx, now, uc.config.ExpiryBatchSize)
		if err != nil {
			return expired, err
		}

		for _, consent := range consents {
			if err := uc.expire(ctx, consent, now); err != nil {
				return expired, err
			}
			expired++
		}

		if len(consents) < uc.config.ExpiryBatchSize {
			break
		}
	}

	if expired > 0 {
		uc.logger.Info("expired pending consents", slog.Int("count", expired))
	}
	return expired, nil
}

func (uc *ConsentUseCase) expire(ctx context.Context, consent *consentDomain.Consent, now time.Time) error {
	consent.Status = consentDomain.StatusExpired
	consent.UpdatedAt = now
	if err := uc.consentRepo.Update(ctx, consent); err != nil {
		return err
	}

	uc.logConsent(ctx, consent, auditDomain.ActionConsentExpired, map[string]any{
		"expiry_date": consent.ExpiryDate.Format(time.RFC3339),
	})
	return nil
}

var _ UseCase = (*ConsentUseCase)(nil)
