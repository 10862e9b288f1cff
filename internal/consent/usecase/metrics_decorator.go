package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	"github.com/allisson/compliance/internal/metrics"
)

const metricsDomain = "consent"

// consentUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type consentUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewConsentUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewConsentUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &consentUseCaseWithMetrics{next: useCase, metrics: m}
}

func (c *consentUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	c.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (c *consentUseCaseWithMetrics) Initiate(
	ctx context.Context,
	input *consentDomain.InitiateInput,
) (*consentDomain.Consent, error) {
	start := time.Now()
	consent, err := c.next.Initiate(ctx, input)
	c.record(ctx, "initiate", start, err)
	return consent, err
}

func (c *consentUseCaseWithMetrics) ProcessFirstConsent(
	ctx context.Context,
	token string,
) (*consentDomain.Consent, error) {
	start := time.Now()
	consent, err := c.next.ProcessFirstConsent(ctx, token)
	c.record(ctx, "first_confirmation", start, err)
	return consent, err
}

func (c *consentUseCaseWithMetrics) ProcessSecondConsent(
	ctx context.Context,
	token string,
) (*consentDomain.Consent, error) {
	start := time.Now()
	consent, err := c.next.ProcessSecondConsent(ctx, token)
	c.record(ctx, "second_confirmation", start, err)
	return consent, err
}

func (c *consentUseCaseWithMetrics) Revoke(
	ctx context.Context,
	input *consentDomain.RevokeInput,
) (*consentDomain.Consent, error) {
	start := time.Now()
	consent, err := c.next.Revoke(ctx, input)
	c.record(ctx, "revoke", start, err)
	return consent, err
}

func (c *consentUseCaseWithMetrics) IsValidForProcessing(
	ctx context.Context,
	studentID uuid.UUID,
	consentType consentDomain.Type,
) (bool, error) {
	start := time.Now()
	valid, err := c.next.IsValidForProcessing(ctx, studentID, consentType)
	c.record(ctx, "validity_check", start, err)
	return valid, err
}

func (c *consentUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error) {
	start := time.Now()
	consent, err := c.next.Get(ctx, id)
	c.record(ctx, "get", start, err)
	return consent, err
}

func (c *consentUseCaseWithMetrics) ExpirePending(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := c.next.ExpirePending(ctx)
	c.record(ctx, "expire_pending", start, err)
	return count, err
}
