package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
)

// RunExecuteRetentionPolicies runs every active retention policy, or only the
// policy with policyID when it is set, and prints the per-policy outcome counts.
// It returns an error when a whole policy failed; failures on single entities
// are only reported.
func RunExecuteRetentionPolicies(
	ctx context.Context,
	retentionUseCase retentionUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	policyID string,
	format string,
) error {
	var reports []*retentionDomain.PolicyReport
	failed := 0

	if policyID != "" {
		id, err := uuid.Parse(policyID)
		if err != nil {
			return fmt.Errorf("invalid policy id: %w", err)
		}

		logger.Info("executing retention policy", slog.String("policy_id", policyID))
		report, err := retentionUseCase.ExecuteSinglePolicy(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to execute retention policy: %w", err)
		}
		reports = append(reports, report)
	} else {
		logger.Info("executing retention policies")
		run, err := retentionUseCase.ExecutePolicies(ctx)
		if err != nil {
			return fmt.Errorf("failed to execute retention policies: %w", err)
		}
		reports = run.Policies
		failed = run.Failed
	}

	if format == "json" {
		views := make([]map[string]any, 0, len(reports))
		for _, r := range reports {
			views = append(views, map[string]any{
				"policy_id":   r.PolicyID.String(),
				"policy_name": r.PolicyName,
				"entity_type": r.EntityType,
				"action":      r.Action,
				"eligible":    r.Eligible,
				"exempted":    r.Exempted,
				"notified":    r.Notified,
				"deferred":    r.Deferred,
				"processed":   r.Processed,
				"skipped":     r.Skipped,
				"failed":      r.Failed,
				"errors":      r.Errors,
			})
		}
		if err := writeJSON(writer, map[string]any{"policies": views, "failed": failed}); err != nil {
			return err
		}
	} else {
		outputRetentionText(writer, reports)
	}

	if failed > 0 {
		return fmt.Errorf("retention run finished with %d failed policy(ies)", failed)
	}
	return nil
}

func outputRetentionText(writer io.Writer, reports []*retentionDomain.PolicyReport) {
	_, _ = fmt.Fprintf(writer, "Retention Policy Execution\n")
	_, _ = fmt.Fprintf(writer, "==========================\n")

	if len(reports) == 0 {
		_, _ = fmt.Fprintf(writer, "\nNo active policies\n")
		return
	}

	for _, r := range reports {
		_, _ = fmt.Fprintf(writer, "\n%s (%s, %s)\n", r.PolicyName, r.EntityType, r.Action)
		_, _ = fmt.Fprintf(writer, "  Eligible:  %d\n", r.Eligible)
		_, _ = fmt.Fprintf(writer, "  Exempted:  %d\n", r.Exempted)
		_, _ = fmt.Fprintf(writer, "  Notified:  %d\n", r.Notified)
		_, _ = fmt.Fprintf(writer, "  Deferred:  %d\n", r.Deferred)
		_, _ = fmt.Fprintf(writer, "  Processed: %d\n", r.Processed)
		_, _ = fmt.Fprintf(writer, "  Skipped:   %d\n", r.Skipped)
		_, _ = fmt.Fprintf(writer, "  Failed:    %d\n", r.Failed)
		if len(r.Errors) > 0 {
			_, _ = fmt.Fprintf(writer, "  Errors:\n    - %s\n", strings.Join(r.Errors, "\n    - "))
		}
	}
}
