package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	apperrors "github.com/allisson/compliance/internal/errors"
)

// detectAnomalies runs after every successful write.
func (uc *AuditUseCase) detectAnomalies(ctx context.Context, entry *auditDomain.AuditEntry) error {
	switch {
	case entry.Action == auditDomain.ActionRead && entry.EntityType == auditDomain.EntityStudent:
		since := entry.Timestamp.Add(-uc.config.ReadWindow)
		ids, err := uc.entryRepo.ListRecentIDs(ctx, entry.EntityType, entry.EntityID, entry.Action, since)
		if err != nil {
			return apperrors.Wrap(err, "failed to count recent student reads")
		}
		if len(ids) <= uc.config.ReadThreshold {
			return nil
		}
		return uc.raiseAlert(ctx, &auditDomain.SecurityAlert{
			Type:       auditDomain.AlertSuspiciousAccess,
			Severity:   auditDomain.SeverityMedium,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Description: fmt.Sprintf(
				"%d reads of student %s within %s", len(ids), entry.EntityID, uc.config.ReadWindow,
			),
			AuditEntryIDs: ids,
		}, since)

	case entry.Action == auditDomain.ActionAccessDenied && entry.EntityType == auditDomain.EntityUserSession:
		if entry.IPAddress == nil {
			return nil
		}
		ip := *entry.IPAddress
		since := entry.Timestamp.Add(-uc.config.DeniedWindow)
		ids, err := uc.entryRepo.ListRecentIDsByIP(ctx, entry.EntityType, entry.Action, ip, since)
		if err != nil {
			return apperrors.Wrap(err, "failed to count recent denied sessions")
		}
		if len(ids) <= uc.config.DeniedThreshold {
			return nil
		}
		return uc.raiseAlert(ctx, &auditDomain.SecurityAlert{
			Type:       auditDomain.AlertMultipleFailedLogins,
			Severity:   auditDomain.SeverityHigh,
			EntityType: entry.EntityType,
			EntityID:   ip,
			Description: fmt.Sprintf(
				"%d denied sessions from %s within %s", len(ids), ip, uc.config.DeniedWindow,
			),
			AuditEntryIDs: ids,
		}, since)
	}
	return nil
}

// raiseAlert persists an alert unless an unresolved one of the same type for the
// same entity was already raised inside the window.
func (uc *AuditUseCase) raiseAlert(ctx context.Context, alert *auditDomain.SecurityAlert, since time.Time) error {
	active, err := uc.alertRepo.FindActive(ctx, alert.Type, alert.EntityType, alert.EntityID, since)
	if err == nil {
		uc.logger.Debug("anomaly folded into active security alert",
			slog.String("alert_id", active.ID.String()),
			slog.String("alert_type", string(alert.Type)),
		)
		return nil
	}
	if !apperrors.Is(err, auditDomain.ErrAlertNotFound) {
		return apperrors.Wrap(err, "failed to look up active security alert")
	}

	alert.ID = uuid.Must(uuid.NewV7())
	alert.DetectedAt = uc.now().UTC()
	if err := uc.alertRepo.Create(ctx, alert); err != nil {
		return apperrors.Wrap(err, "failed to persist security alert")
	}

	uc.logger.Warn("security alert raised",
		slog.String("alert_id", alert.ID.String()),
		slog.String("alert_type", string(alert.Type)),
		slog.String("severity", string(alert.Severity)),
		slog.String("entity_type", string(alert.EntityType)),
		slog.String("entity_id", alert.EntityID),
		slog.Int("audit_entries", len(alert.AuditEntryIDs)),
	)

	uc.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntitySecurityAlert,
		EntityID:   alert.ID.String(),
		Action:     auditDomain.ActionSecurityAlert,
		Severity:   auditDomain.SeverityHigh,
		Details: map[string]any{
			"alert_type":  string(alert.Type),
			"entity_type": string(alert.EntityType),
			"entity_id":   alert.EntityID,
			"occurrences": len(alert.AuditEntryIDs),
		},
	})
	return nil
}
