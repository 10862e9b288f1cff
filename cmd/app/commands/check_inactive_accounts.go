package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	anonymizationUseCase "github.com/allisson/compliance/internal/anonymization/usecase"
)

// RunCheckInactiveAccounts runs one inactive account sweep: parents of students
// approaching the inactivity horizon are warned and students past it are
// scheduled for anonymization.
func RunCheckInactiveAccounts(
	ctx context.Context,
	anonymizationUseCase anonymizationUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	report, err := anonymizationUseCase.CheckInactiveAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to check inactive accounts: %w", err)
	}

	logger.Info("inactive account check completed",
		slog.Int("checked", report.Checked),
		slog.Int("warned", report.Warned),
		slog.Int("scheduled", report.Scheduled),
		slog.Int("skipped", report.Skipped),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"checked":   report.Checked,
			"warned":    report.Warned,
			"scheduled": report.Scheduled,
			"skipped":   report.Skipped,
		})
	}

	_, _ = fmt.Fprintf(writer, "Checked:   %d\n", report.Checked)
	_, _ = fmt.Fprintf(writer, "Warned:    %d\n", report.Warned)
	_, _ = fmt.Fprintf(writer, "Scheduled: %d\n", report.Scheduled)
	_, _ = fmt.Fprintf(writer, "Skipped:   %d\n", report.Skipped)
	return nil
}
