package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	anonymizationUseCase "github.com/allisson/compliance/internal/anonymization/usecase"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// RunScheduleAnonymization schedules an anonymization job for one entity, for
// instance to honor an erasure request received outside the API. Jobs due now
// run before the command exits; delayed jobs are picked up by the worker.
func RunScheduleAnonymization(
	ctx context.Context,
	anonymizationUseCase anonymizationUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	entityType, entityID, reason string,
	preserveStatistics bool,
	scheduledFor, requestedBy string,
	format string,
) error {
	id, err := uuid.Parse(entityID)
	if err != nil {
		return fmt.Errorf("invalid entity id: %w", err)
	}

	when, err := parseOptionalDate(scheduledFor)
	if err != nil {
		return fmt.Errorf("invalid scheduled-for date: %w", err)
	}

	input := &anonymizationDomain.ScheduleInput{
		EntityType:         auditDomain.EntityType(entityType),
		EntityID:           id,
		Reason:             anonymizationDomain.Reason(reason),
		PreserveStatistics: preserveStatistics,
		ScheduledFor:       when,
	}
	if requestedBy != "" {
		input.RequestedBy = &requestedBy
	}

	job, err := anonymizationUseCase.Schedule(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to schedule anonymization: %w", err)
	}

	logger.Info("anonymization scheduled",
		slog.String("job_id", job.ID.String()),
		slog.String("entity_type", string(job.EntityType)),
		slog.Time("scheduled_for", job.ScheduledFor),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"id":            job.ID.String(),
			"entity_type":   job.EntityType,
			"entity_id":     job.EntityID.String(),
			"reason":        job.Reason,
			"status":        job.Status,
			"priority":      job.Priority,
			"scheduled_for": job.ScheduledFor.Format(time.RFC3339),
		})
	}

	_, _ = fmt.Fprintln(writer, "Anonymization job scheduled")
	_, _ = fmt.Fprintf(writer, "  ID:            %s\n", job.ID)
	_, _ = fmt.Fprintf(writer, "  Entity:        %s %s\n", job.EntityType, job.EntityID)
	_, _ = fmt.Fprintf(writer, "  Reason:        %s\n", job.Reason)
	_, _ = fmt.Fprintf(writer, "  Status:        %s\n", job.Status)
	_, _ = fmt.Fprintf(writer, "  Scheduled For: %s\n", job.ScheduledFor.Format(time.RFC3339))
	return nil
}
