package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	auditService "github.com/allisson/compliance/internal/audit/service"
	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
	"github.com/allisson/compliance/internal/database"
	apperrors "github.com/allisson/compliance/internal/errors"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 1000
	batchPageSize     = 500
)

// correlationNamespace scopes the name-based UUIDs derived from user ids.
var correlationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("compliance:audit:correlation"))

// Config holds the anomaly detection thresholds.
type Config struct {
	ReadThreshold   int
	ReadWindow      time.Duration
	DeniedThreshold int
	DeniedWindow    time.Duration
}

// AuditUseCase implements UseCase.
type AuditUseCase struct {
	config      Config
	entryRepo   AuditEntryRepository
	alertRepo   SecurityAlertRepository
	checksummer auditService.Checksummer
	cipher      EnvelopeCipher
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuditUseCase creates a new AuditUseCase.
func NewAuditUseCase(
	config Config,
	entryRepo AuditEntryRepository,
	alertRepo SecurityAlertRepository,
	checksummer auditService.Checksummer,
	cipher EnvelopeCipher,
	logger *slog.Logger,
) *AuditUseCase {
	return &AuditUseCase{
		config:      config,
		entryRepo:   entryRepo,
		alertRepo:   alertRepo,
		checksummer: checksummer,
		cipher:      cipher,
		logger:      logger,
		now:         time.Now,
	}
}

// CorrelationID returns the stable correlation id for a user, or a random one
// for anonymous actions.
func CorrelationID(userID *string) string {
	if userID == nil || *userID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(correlationNamespace, []byte(*userID)).String()
}

func validateLogActionInput(input *auditDomain.LogActionInput) error {
	if input == nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "audit input is required")
	}
	if !input.Action.Valid() {
		return apperrors.Wrapf(auditDomain.ErrInvalidAction, "action %q", input.Action)
	}
	if !input.EntityType.Valid() {
		return apperrors.Wrapf(auditDomain.ErrInvalidEntityType, "entity type %q", input.EntityType)
	}
	if input.EntityID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "entity id is required")
	}
	if input.Severity != "" && !input.Severity.Valid() {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "severity %q", input.Severity)
	}
	if input.Category != "" && !input.Category.Valid() {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "category %q", input.Category)
	}
	return nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// LogAction records a sensitive action. The write runs outside any transaction
// carried by ctx so a failing audit insert never aborts the caller's work.
func (uc *AuditUseCase) LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID {
	ctx = database.WithoutTx(ctx)

	entry, err := uc.buildEntry(input)
	if err != nil {
		uc.logger.Error("failed to build audit entry", slog.Any("error", err))
		return uuid.Nil
	}

	if err := uc.entryRepo.Create(ctx, entry); err != nil {
		uc.logger.Error("failed to persist audit entry",
			slog.String("action", string(entry.Action)),
			slog.String("entity_type", string(entry.EntityType)),
			slog.String("entity_id", entry.EntityID),
			slog.Any("error", err),
		)
		return uuid.Nil
	}

	if err := uc.detectAnomalies(ctx, entry); err != nil {
		uc.logger.Error("anomaly detection failed",
			slog.String("audit_id", entry.ID.String()),
			slog.Any("error", err),
		)
	}

	uc.logger.Log(ctx, levelFor(entry.Severity), "audit entry recorded",
		slog.String("audit_id", entry.ID.String()),
		slog.String("action", string(entry.Action)),
		slog.String("entity_type", string(entry.EntityType)),
		slog.String("entity_id", entry.EntityID),
		slog.String("severity", string(entry.Severity)),
		slog.String("category", string(entry.Category)),
		slog.String("correlation_id", entry.CorrelationID),
	)

	return entry.ID
}

func levelFor(severity auditDomain.Severity) slog.Level {
	switch severity {
	case auditDomain.SeverityCritical:
		return slog.LevelError
	case auditDomain.SeverityHigh:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (uc *AuditUseCase) buildEntry(input *auditDomain.LogActionInput) (*auditDomain.AuditEntry, error) {
	if err := validateLogActionInput(input); err != nil {
		return nil, err
	}

	entry := &auditDomain.AuditEntry{
		ID:            uuid.Must(uuid.NewV7()),
		EntityType:    input.EntityType,
		EntityID:      input.EntityID,
		Action:        input.Action,
		UserID:        input.UserID,
		IPAddress:     optionalString(input.IPAddress),
		UserAgent:     optionalString(input.UserAgent),
		Timestamp:     uc.now().UTC().Truncate(time.Microsecond),
		Severity:      input.Severity,
		Category:      input.Category,
		CorrelationID: input.CorrelationID,
	}
	if entry.Severity == "" {
		entry.Severity = auditDomain.DefaultSeverity(input.Action)
	}
	if entry.Category == "" {
		entry.Category = auditDomain.DefaultCategory(input.Action)
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = CorrelationID(input.UserID)
	}

	if input.Details != nil {
		details, err := json.Marshal(input.Details)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal audit details")
		}

		if auditDomain.RequiresEncryption(input.Action, input.EntityType) {
			details, err = uc.seal(details)
			if err != nil {
				return nil, err
			}
			entry.Encrypted = true
		}
		entry.Details = details
	}

	entry.Checksum = uc.checksummer.Compute(entry)
	return entry, nil
}

func (uc *AuditUseCase) seal(plaintext []byte) ([]byte, error) {
	envelope, err := uc.cipher.EncryptEnvelope(plaintext)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt audit details")
	}
	return json.Marshal(envelope)
}

func (uc *AuditUseCase) open(stored []byte) ([]byte, error) {
	var envelope cryptoDomain.Envelope
	if err := json.Unmarshal(stored, &envelope); err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidEnvelope, err.Error())
	}
	return uc.cipher.DecryptEnvelope(&envelope)
}

// VerifyIntegrity recomputes the checksum of an entry. A mismatch is reported in
// the result, not returned as an error.
func (uc *AuditUseCase) VerifyIntegrity(ctx context.Context, id uuid.UUID) (*auditDomain.IntegrityResult, error) {
	entry, err := uc.entryRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	valid := uc.checksummer.Verify(entry)
	if !valid {
		uc.logger.Error("audit entry checksum mismatch", slog.String("audit_id", id.String()))
	}

	return &auditDomain.IntegrityResult{EntryID: id, Valid: valid, Tampering: !valid}, nil
}

// VerifyBatch walks every entry in the range page by page.
func (uc *AuditUseCase) VerifyBatch(
	ctx context.Context,
	from, to *time.Time,
) (*auditDomain.BatchVerification, error) {
	report := &auditDomain.BatchVerification{InvalidIDs: make([]uuid.UUID, 0)}
	filter := &auditDomain.QueryFilter{From: from, To: to, Limit: batchPageSize}

	for {
		entries, err := uc.entryRepo.List(ctx, filter)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to list audit entries")
		}

		for _, entry := range entries {
			report.Total++
			if uc.checksummer.Verify(entry) {
				report.Valid++
				continue
			}
			report.Invalid++
			report.InvalidIDs = append(report.InvalidIDs, entry.ID)
		}

		if len(entries) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	if report.Invalid > 0 {
		uc.logger.Error("audit integrity verification found tampered entries",
			slog.Int("total", report.Total),
			slog.Int("invalid", report.Invalid),
		)
	}
	return report, nil
}

// Query returns a page of entries with their details decoded into Payload.
// Encrypted details are only decoded when filter.Decrypt is set.
func (uc *AuditUseCase) Query(
	ctx context.Context,
	filter *auditDomain.QueryFilter,
) (*auditDomain.QueryResult, error) {
	if filter.Offset < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "offset must not be negative")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultQueryLimit
	}
	if filter.Limit > maxQueryLimit {
		filter.Limit = maxQueryLimit
	}

	total, err := uc.entryRepo.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count audit entries")
	}

	entries, err := uc.entryRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}

	result := &auditDomain.QueryResult{
		Entries: make([]*auditDomain.QueriedEntry, 0, len(entries)),
		Total:   total,
		HasMore: filter.Offset+len(entries) < total,
	}
	for _, entry := range entries {
		result.Entries = append(result.Entries, &auditDomain.QueriedEntry{
			AuditEntry: entry,
			Payload:    uc.payload(entry, filter.Decrypt),
		})
	}
	return result, nil
}

func (uc *AuditUseCase) payload(entry *auditDomain.AuditEntry, decrypt bool) map[string]any {
	if len(entry.Details) == 0 {
		return nil
	}

	raw := []byte(entry.Details)
	if entry.Encrypted {
		if !decrypt {
			return nil
		}
		plaintext, err := uc.open(raw)
		if err != nil {
			uc.logger.Warn("failed to decrypt audit details",
				slog.String("audit_id", entry.ID.String()),
				slog.Any("error", err),
			)
			return nil
		}
		raw = plaintext
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		uc.logger.Warn("failed to decode audit details",
			slog.String("audit_id", entry.ID.String()),
			slog.Any("error", err),
		)
		return nil
	}
	return payload
}

// AnonymizeStudentLogs redacts PII in the details of every entry about a
// student, strips network identifiers and recomputes the checksum.
func (uc *AuditUseCase) AnonymizeStudentLogs(ctx context.Context, studentID, reason string) (int, error) {
	if studentID == "" {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "student id is required")
	}

	filter := &auditDomain.QueryFilter{
		EntityType: auditDomain.EntityStudent,
		EntityID:   studentID,
		Limit:      batchPageSize,
	}

	anonymized := 0
	for {
		entries, err := uc.entryRepo.List(ctx, filter)
		if err != nil {
			return anonymized, apperrors.Wrap(err, "failed to list student audit entries")
		}

		for _, entry := range entries {
			changed, err := uc.anonymizeEntry(entry)
			if err != nil {
				return anonymized, apperrors.Wrapf(err, "failed to anonymize audit entry %s", entry.ID)
			}
			if !changed {
				continue
			}
			if err := uc.entryRepo.UpdateAnonymized(ctx, entry); err != nil {
				return anonymized, apperrors.Wrapf(err, "failed to update audit entry %s", entry.ID)
			}
			anonymized++
		}

		if len(entries) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	uc.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAuditLog,
		EntityID:   studentID,
		Action:     auditDomain.ActionAnonymizationCompleted,
		Details: map[string]any{
			"reason":             reason,
			"entries_anonymized": anonymized,
		},
	})

	return anonymized, nil
}

func (uc *AuditUseCase) anonymizeEntry(entry *auditDomain.AuditEntry) (bool, error) {
	changed := entry.IPAddress != nil || entry.UserAgent != nil
	entry.IPAddress = nil
	entry.UserAgent = nil

	if len(entry.Details) > 0 {
		raw := []byte(entry.Details)
		if entry.Encrypted {
			plaintext, err := uc.open(raw)
			if err != nil {
				return false, err
			}
			raw = plaintext
		}

		var details any
		if err := json.Unmarshal(raw, &details); err != nil {
			return false, fmt.Errorf("failed to decode audit details: %w", err)
		}

		if redactPII(details) > 0 {
			redacted, err := json.Marshal(details)
			if err != nil {
				return false, err
			}
			if entry.Encrypted {
				if redacted, err = uc.seal(redacted); err != nil {
					return false, err
				}
			}
			entry.Details = redacted
			changed = true
		}
	}

	if changed {
		entry.Checksum = uc.checksummer.Compute(entry)
	}
	return changed, nil
}

// DeleteOlderThan removes or counts entries written before the given time.
func (uc *AuditUseCase) DeleteOlderThan(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	if dryRun {
		return uc.entryRepo.CountOlderThan(ctx, before)
	}

	deleted, err := uc.entryRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, err
	}

	uc.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityAuditLog,
		EntityID:   "*",
		Action:     auditDomain.ActionRetentionDeleted,
		Details: map[string]any{
			"before":  before.UTC().Format(time.RFC3339),
			"deleted": deleted,
		},
	})
	return deleted, nil
}

// ListAlerts returns security alerts newest first.
func (uc *AuditUseCase) ListAlerts(
	ctx context.Context,
	resolved *bool,
	offset, limit int,
) ([]*auditDomain.SecurityAlert, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = defaultQueryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.alertRepo.List(ctx, resolved, offset, limit)
}

// ResolveAlert closes an alert so the next anomaly of the same kind raises a new one.
func (uc *AuditUseCase) ResolveAlert(
	ctx context.Context,
	id uuid.UUID,
	resolvedBy string,
) (*auditDomain.SecurityAlert, error) {
	alert, err := uc.alertRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Resolved {
		return nil, auditDomain.ErrAlertAlreadyResolved
	}

	now := uc.now().UTC()
	alert.Resolved = true
	alert.ResolvedAt = &now
	alert.ResolvedBy = optionalString(resolvedBy)

	if err := uc.alertRepo.Resolve(ctx, alert); err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve security alert")
	}

	uc.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntitySecurityAlert,
		EntityID:   alert.ID.String(),
		Action:     auditDomain.ActionUpdate,
		UserID:     alert.ResolvedBy,
		Details:    map[string]any{"resolved": true},
	})

	return alert, nil
}
