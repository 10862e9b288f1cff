package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	auditUseCase "github.com/allisson/compliance/internal/audit/usecase"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

// RunCleanAuditLogs deletes audit entries older than the given number of days.
// The age may not be shorter than the legal minimum for security audit logs.
// Dry-run only counts the entries.
func RunCleanAuditLogs(
	ctx context.Context,
	auditUseCase auditUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if req, ok := retentionDomain.RequirementFor(auditDomain.EntityAuditLog); ok && days < req.MinimumRetentionDays {
		return fmt.Errorf(
			"days must be at least %d, the legal minimum for audit logs, got: %d",
			req.MinimumRetentionDays,
			days,
		)
	}

	logger.Info("cleaning audit logs",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	before := time.Now().UTC().AddDate(0, 0, -days)
	count, err := auditUseCase.DeleteOlderThan(ctx, before, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit logs: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"count":   count,
			"days":    days,
			"dry_run": dryRun,
		}); err != nil {
			return err
		}
	} else if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry-run mode: Would delete %d audit log(s) older than %d day(s)\n", count, days)
	} else {
		_, _ = fmt.Fprintf(writer, "Successfully deleted %d audit log(s) older than %d day(s)\n", count, days)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}
