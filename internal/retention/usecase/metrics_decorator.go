package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/compliance/internal/metrics"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

const metricsDomain = "retention"

// retentionUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type retentionUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewRetentionUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewRetentionUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &retentionUseCaseWithMetrics{next: useCase, metrics: m}
}

func (r *retentionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	r.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (r *retentionUseCaseWithMetrics) CreatePolicy(
	ctx context.Context,
	input *retentionDomain.CreatePolicyInput,
) (*retentionDomain.Policy, error) {
	start := time.Now()
	policy, err := r.next.CreatePolicy(ctx, input)
	r.record(ctx, "create_policy", start, err)
	return policy, err
}

func (r *retentionUseCaseWithMetrics) SetPolicyActive(
	ctx context.Context,
	id uuid.UUID,
	active bool,
) (*retentionDomain.Policy, error) {
	start := time.Now()
	policy, err := r.next.SetPolicyActive(ctx, id, active)
	r.record(ctx, "set_policy_active", start, err)
	return policy, err
}

func (r *retentionUseCaseWithMetrics) ListPolicies(ctx context.Context) ([]*retentionDomain.Policy, error) {
	start := time.Now()
	policies, err := r.next.ListPolicies(ctx)
	r.record(ctx, "list_policies", start, err)
	return policies, err
}

func (r *retentionUseCaseWithMetrics) ExecutePolicies(ctx context.Context) (*retentionDomain.RunReport, error) {
	start := time.Now()
	report, err := r.next.ExecutePolicies(ctx)
	r.record(ctx, "execute_policies", start, err)
	return report, err
}

func (r *retentionUseCaseWithMetrics) ExecuteSinglePolicy(
	ctx context.Context,
	id uuid.UUID,
) (*retentionDomain.PolicyReport, error) {
	start := time.Now()
	report, err := r.next.ExecuteSinglePolicy(ctx, id)
	r.record(ctx, "execute_policy", start, err)
	return report, err
}

func (r *retentionUseCaseWithMetrics) GetStatus(ctx context.Context) (*retentionDomain.Status, error) {
	start := time.Now()
	status, err := r.next.GetStatus(ctx)
	r.record(ctx, "get_status", start, err)
	return status, err
}

func (r *retentionUseCaseWithMetrics) SeedDefaultPolicies(ctx context.Context) ([]*retentionDomain.Policy, error) {
	start := time.Now()
	policies, err := r.next.SeedDefaultPolicies(ctx)
	r.record(ctx, "seed_policies", start, err)
	return policies, err
}
