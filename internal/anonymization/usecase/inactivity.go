package usecase

import (
	"context"
	"log/slog"
	"time"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	apperrors "github.com/allisson/compliance/internal/errors"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
)

const day = 24 * time.Hour

// CheckInactiveAccounts looks at students inactive for longer than the warning
// threshold. Each parent is warned once; anonymization is scheduled only when
// the inactivity horizon has passed and the warning period has elapsed.
func (uc *AnonymizationUseCase) CheckInactiveAccounts(
	ctx context.Context,
) (*anonymizationDomain.InactivityReport, error) {
	now := uc.now().UTC()
	inactivity := time.Duration(uc.config.InactivityDays) * day
	warning := time.Duration(uc.config.WarningDaysBefore) * day
	warnCutoff := now.Add(-(inactivity - warning))

	report := &anonymizationDomain.InactivityReport{}
	var cursor *database.Cursor
	for {
		students, err := uc.students.FindInactive(ctx, warnCutoff, cursor, uc.config.InactivityBatchSize)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to find inactive students")
		}
		report.Checked += len(students)
		for _, student := range students {
			uc.checkInactive(ctx, student, now, inactivity, warning, report)
		}
		if len(students) < uc.config.InactivityBatchSize {
			break
		}
		last := students[len(students)-1]
		cursor = &database.Cursor{At: last.LastActivityAt, ID: last.ID}
	}

	uc.logger.Info("inactive accounts checked",
		slog.Int("checked", report.Checked),
		slog.Int("warned", report.Warned),
		slog.Int("scheduled", report.Scheduled),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (uc *AnonymizationUseCase) checkInactive(
	ctx context.Context,
	student *learnerDomain.Student,
	now time.Time,
	inactivity, warning time.Duration,
	report *anonymizationDomain.InactivityReport,
) {
	horizon := student.LastActivityAt.Add(inactivity)

	if student.InactivityWarnedAt == nil {
		if err := uc.warnInactive(ctx, student, maxTime(horizon, now.Add(warning))); err != nil {
			uc.logger.Error("failed to send inactivity warning",
				slog.String("student_id", student.ID.String()),
				slog.Any("error", err),
			)
			report.Skipped++
			return
		}
		report.Warned++
		return
	}

	due := maxTime(horizon, student.InactivityWarnedAt.Add(warning))
	if now.Before(due) {
		report.Skipped++
		return
	}

	_, err := uc.Schedule(ctx, &anonymizationDomain.ScheduleInput{
		EntityType:         auditDomain.EntityStudent,
		EntityID:           student.ID,
		Reason:             anonymizationDomain.ReasonInactivity,
		PreserveStatistics: uc.config.PreserveOnInactivity,
	})
	switch {
	case err == nil:
		report.Scheduled++
	case apperrors.Is(err, anonymizationDomain.ErrJobAlreadyActive):
		report.Skipped++
	default:
		uc.logger.Error("failed to schedule inactivity anonymization",
			slog.String("student_id", student.ID.String()),
			slog.Any("error", err),
		)
		report.Skipped++
	}
}

func (uc *AnonymizationUseCase) warnInactive(
	ctx context.Context,
	student *learnerDomain.Student,
	anonymizeAfter time.Time,
) error {
	parent, err := uc.parents.Get(ctx, student.ParentID)
	if err != nil {
		return apperrors.Wrap(err, "failed to load parent")
	}

	err = uc.notifier.Notify(ctx, parent.Email, notificationDomain.TemplateInactivityWarning, map[string]string{
		"parent_name":        parent.FirstName,
		"child_name":         student.FirstName,
		"last_activity":      student.LastActivityAt.Format(time.DateOnly),
		"anonymization_date": anonymizeAfter.Format(time.DateOnly),
	})
	if err != nil {
		return err
	}

	if err := uc.students.MarkInactivityWarned(ctx, student.ID, uc.now().UTC()); err != nil {
		return apperrors.Wrap(err, "failed to record inactivity warning")
	}

	uc.audit.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntityStudent,
		EntityID:   student.ID.String(),
		Action:     auditDomain.ActionRetentionNotificationSent,
		Details: map[string]any{
			"reason":             string(anonymizationDomain.ReasonInactivity),
			"anonymization_date": anonymizeAfter.Format(time.RFC3339),
		},
	})
	return nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
