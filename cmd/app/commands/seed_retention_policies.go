package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
)

// RunSeedRetentionPolicies creates the default retention policies that are not
// in the database yet. Running it twice creates nothing the second time.
func RunSeedRetentionPolicies(
	ctx context.Context,
	retentionUseCase retentionUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	created, err := retentionUseCase.SeedDefaultPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed retention policies: %w", err)
	}

	logger.Info("retention policies seeded", slog.Int("created", len(created)))

	if format == "json" {
		views := make([]map[string]any, 0, len(created))
		for _, p := range created {
			views = append(views, policyView(p))
		}
		return writeJSON(writer, map[string]any{"created": views})
	}

	if len(created) == 0 {
		_, _ = fmt.Fprintln(writer, "Default retention policies already exist")
		return nil
	}
	_, _ = fmt.Fprintf(writer, "Created %d default retention policy(ies)\n", len(created))
	for _, p := range created {
		_, _ = fmt.Fprintln(writer)
		writePolicyText(writer, p)
	}
	return nil
}
