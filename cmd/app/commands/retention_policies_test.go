package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	apperrors "github.com/allisson/compliance/internal/errors"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

func samplePolicy() *retentionDomain.Policy {
	return &retentionDomain.Policy{
		ID:                  uuid.Must(uuid.NewV7()),
		Name:                "session_cleanup",
		EntityType:          auditDomain.EntitySession,
		RetentionPeriodDays: 90,
		TriggerCondition:    "created_at",
		Action:              retentionDomain.ActionDelete,
		Priority:            4,
		Active:              true,
		CreatedAt:           time.Now().UTC(),
	}
}

func TestPolicyFlagsInput(t *testing.T) {
	flags := PolicyFlags{
		Name:                "student_data",
		EntityType:          "student",
		RetentionPeriodDays: 1095,
		TriggerCondition:    "last_activity",
		Action:              "anonymize",
		Priority:            1,
		Exceptions:          "active_legal_case, ongoing_audit,",
		NotificationDays:    30,
		Inactive:            true,
	}

	input := flags.Input()

	assert.Equal(t, auditDomain.EntityStudent, input.EntityType)
	assert.Equal(t, retentionDomain.Action("anonymize"), input.Action)
	assert.Equal(t, []retentionDomain.Exception{"active_legal_case", "ongoing_audit"}, input.Exceptions)
	require.NotNil(t, input.Active)
	assert.False(t, *input.Active)

	assert.Empty(t, PolicyFlags{}.Input().Exceptions)
}

func TestRunCreateRetentionPolicy(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	flags := PolicyFlags{Name: "session_cleanup", EntityType: "session", RetentionPeriodDays: 90, Action: "delete"}

	t.Run("text-output", func(t *testing.T) {
		policy := samplePolicy()
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("CreatePolicy", ctx, mock.MatchedBy(func(in *retentionDomain.CreatePolicyInput) bool {
			return in.Name == "session_cleanup" && in.RetentionPeriodDays == 90 && *in.Active
		})).Return(policy, nil)

		var out bytes.Buffer
		require.NoError(t, RunCreateRetentionPolicy(ctx, mockUseCase, logger, &out, flags, "text"))
		assert.Contains(t, out.String(), "Retention policy created successfully")
		assert.Contains(t, out.String(), policy.ID.String())
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("CreatePolicy", ctx, mock.Anything).Return(samplePolicy(), nil)

		var out bytes.Buffer
		require.NoError(t, RunCreateRetentionPolicy(ctx, mockUseCase, logger, &out, flags, "json"))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, "session_cleanup", result["name"])
		assert.Equal(t, float64(90), result["retention_period_days"])
	})

	t.Run("policy-violation", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("CreatePolicy", ctx, mock.Anything).Return(nil, retentionDomain.ErrRetentionOutOfBounds)

		err := RunCreateRetentionPolicy(ctx, mockUseCase, logger, &bytes.Buffer{}, flags, "text")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrPolicyViolation)
	})
}

func TestRunSeedRetentionPolicies(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("created", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("SeedDefaultPolicies", ctx).Return([]*retentionDomain.Policy{samplePolicy()}, nil)

		var out bytes.Buffer
		require.NoError(t, RunSeedRetentionPolicies(ctx, mockUseCase, logger, &out, "text"))
		assert.Contains(t, out.String(), "Created 1 default retention policy(ies)")
		assert.Contains(t, out.String(), "session_cleanup")
	})

	t.Run("already-seeded", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("SeedDefaultPolicies", ctx).Return([]*retentionDomain.Policy{}, nil)

		var out bytes.Buffer
		require.NoError(t, RunSeedRetentionPolicies(ctx, mockUseCase, logger, &out, "text"))
		assert.Contains(t, out.String(), "already exist")
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("SeedDefaultPolicies", ctx).Return([]*retentionDomain.Policy{samplePolicy()}, nil)

		var out bytes.Buffer
		require.NoError(t, RunSeedRetentionPolicies(ctx, mockUseCase, logger, &out, "json"))

		var result struct {
			Created []map[string]any `json:"created"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Len(t, result.Created, 1)
	})

	t.Run("error", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("SeedDefaultPolicies", ctx).Return(nil, errors.New("db down"))

		err := RunSeedRetentionPolicies(ctx, mockUseCase, logger, &bytes.Buffer{}, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to seed retention policies")
	})
}

func TestRunExecuteRetentionPolicies(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	policyReport := &retentionDomain.PolicyReport{
		PolicyID:   uuid.Must(uuid.NewV7()),
		PolicyName: "session_cleanup",
		EntityType: auditDomain.EntitySession,
		Action:     retentionDomain.ActionDelete,
		Eligible:   3,
		Processed:  2,
		Failed:     1,
		Errors:     []string{"session 42: locked"},
	}

	t.Run("all-policies-text", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("ExecutePolicies", ctx).
			Return(&retentionDomain.RunReport{Policies: []*retentionDomain.PolicyReport{policyReport}}, nil)

		var out bytes.Buffer
		require.NoError(t, RunExecuteRetentionPolicies(ctx, mockUseCase, logger, &out, "", "text"))
		assert.Contains(t, out.String(), "session_cleanup (session, delete)")
		assert.Contains(t, out.String(), "Processed: 2")
		assert.Contains(t, out.String(), "session 42: locked")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("failed-policy", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("ExecutePolicies", ctx).
			Return(&retentionDomain.RunReport{Policies: []*retentionDomain.PolicyReport{}, Failed: 1}, nil)

		var out bytes.Buffer
		err := RunExecuteRetentionPolicies(ctx, mockUseCase, logger, &out, "", "json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 failed policy(ies)")
		assert.Contains(t, out.String(), `"failed": 1`)
	})

	t.Run("run-in-progress", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("ExecutePolicies", ctx).Return(nil, retentionDomain.ErrRunInProgress)

		err := RunExecuteRetentionPolicies(ctx, mockUseCase, logger, &bytes.Buffer{}, "", "text")
		require.ErrorIs(t, err, retentionDomain.ErrRunInProgress)
	})

	t.Run("single-policy", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("ExecuteSinglePolicy", ctx, policyReport.PolicyID).Return(policyReport, nil)

		var out bytes.Buffer
		err := RunExecuteRetentionPolicies(ctx, mockUseCase, logger, &out, policyReport.PolicyID.String(), "json")
		require.NoError(t, err)

		var result struct {
			Policies []map[string]any `json:"policies"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Len(t, result.Policies, 1)
		assert.Equal(t, float64(1), result.Policies[0]["failed"])
		mockUseCase.AssertExpectations(t)
	})

	t.Run("invalid-policy-id", func(t *testing.T) {
		err := RunExecuteRetentionPolicies(ctx, &MockRetentionUseCase{}, logger, &bytes.Buffer{}, "nope", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid policy id")
	})

	t.Run("no-active-policies", func(t *testing.T) {
		mockUseCase := &MockRetentionUseCase{}
		mockUseCase.On("ExecutePolicies", ctx).
			Return(&retentionDomain.RunReport{Policies: []*retentionDomain.PolicyReport{}}, nil)

		var out bytes.Buffer
		require.NoError(t, RunExecuteRetentionPolicies(ctx, mockUseCase, logger, &out, "", "text"))
		assert.Contains(t, out.String(), "No active policies")
	})
}
