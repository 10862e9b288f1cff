package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
)

// PolicyFlags carries the raw create-retention-policy flag values.
type PolicyFlags struct {
	Name                string
	EntityType          string
	RetentionPeriodDays int
	TriggerCondition    string
	Action              string
	Priority            int
	LegalBasis          string
	Exceptions          string
	NotificationDays    int
	Inactive            bool
}

// Input converts the flags into a CreatePolicyInput. Exceptions are a
// comma-separated list; validation is left to the use case.
func (f PolicyFlags) Input() *retentionDomain.CreatePolicyInput {
	var exceptions []retentionDomain.Exception
	for _, e := range strings.Split(f.Exceptions, ",") {
		if e = strings.TrimSpace(e); e != "" {
			exceptions = append(exceptions, retentionDomain.Exception(e))
		}
	}

	active := !f.Inactive
	return &retentionDomain.CreatePolicyInput{
		Name:                f.Name,
		EntityType:          auditDomain.EntityType(f.EntityType),
		RetentionPeriodDays: f.RetentionPeriodDays,
		TriggerCondition:    f.TriggerCondition,
		Action:              retentionDomain.Action(f.Action),
		Priority:            f.Priority,
		LegalBasis:          f.LegalBasis,
		Exceptions:          exceptions,
		NotificationDays:    f.NotificationDays,
		Active:              &active,
	}
}

// RunCreateRetentionPolicy creates a retention policy. Periods outside the legal
// bounds of the entity type are rejected by the use case.
func RunCreateRetentionPolicy(
	ctx context.Context,
	retentionUseCase retentionUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	flags PolicyFlags,
	format string,
) error {
	logger.Info("creating retention policy",
		slog.String("name", flags.Name),
		slog.String("entity_type", flags.EntityType),
	)

	policy, err := retentionUseCase.CreatePolicy(ctx, flags.Input())
	if err != nil {
		return fmt.Errorf("failed to create retention policy: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, policyView(policy))
	}

	_, _ = fmt.Fprintln(writer, "Retention policy created successfully")
	writePolicyText(writer, policy)
	return nil
}

func policyView(p *retentionDomain.Policy) map[string]any {
	return map[string]any{
		"id":                    p.ID.String(),
		"name":                  p.Name,
		"entity_type":           p.EntityType,
		"retention_period_days": p.RetentionPeriodDays,
		"trigger_condition":     p.TriggerCondition,
		"action":                p.Action,
		"priority":              p.Priority,
		"active":                p.Active,
		"legal_basis":           p.LegalBasis,
		"exceptions":            p.Exceptions,
		"notification_days":     p.NotificationDays,
	}
}

func writePolicyText(writer io.Writer, p *retentionDomain.Policy) {
	_, _ = fmt.Fprintf(writer, "  ID:          %s\n", p.ID)
	_, _ = fmt.Fprintf(writer, "  Name:        %s\n", p.Name)
	_, _ = fmt.Fprintf(writer, "  Entity Type: %s\n", p.EntityType)
	_, _ = fmt.Fprintf(writer, "  Retention:   %d day(s), %s\n", p.RetentionPeriodDays, p.Action)
	_, _ = fmt.Fprintf(writer, "  Priority:    %d\n", p.Priority)
	_, _ = fmt.Fprintf(writer, "  Active:      %t\n", p.Active)
}
