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

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

func TestRunCheckInactiveAccounts(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	report := &anonymizationDomain.InactivityReport{Checked: 12, Warned: 3, Scheduled: 2, Skipped: 1}

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &MockAnonymizationUseCase{}
		mockUseCase.On("CheckInactiveAccounts", ctx).Return(report, nil)

		var out bytes.Buffer
		require.NoError(t, RunCheckInactiveAccounts(ctx, mockUseCase, logger, &out, "text"))
		assert.Contains(t, out.String(), "Warned:    3")
		assert.Contains(t, out.String(), "Scheduled: 2")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &MockAnonymizationUseCase{}
		mockUseCase.On("CheckInactiveAccounts", ctx).Return(report, nil)

		var out bytes.Buffer
		require.NoError(t, RunCheckInactiveAccounts(ctx, mockUseCase, logger, &out, "json"))

		var result map[string]int
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, map[string]int{"checked": 12, "warned": 3, "scheduled": 2, "skipped": 1}, result)
	})

	t.Run("error", func(t *testing.T) {
		mockUseCase := &MockAnonymizationUseCase{}
		mockUseCase.On("CheckInactiveAccounts", ctx).Return(nil, errors.New("db down"))

		err := RunCheckInactiveAccounts(ctx, mockUseCase, logger, &bytes.Buffer{}, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check inactive accounts")
	})
}

func TestRunScheduleAnonymization(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	studentID := uuid.Must(uuid.NewV7())

	job := &anonymizationDomain.Job{
		ID:           uuid.Must(uuid.NewV7()),
		EntityType:   auditDomain.EntityStudent,
		EntityID:     studentID,
		Reason:       anonymizationDomain.ReasonGDPRRequest,
		Status:       anonymizationDomain.StatusPending,
		Priority:     anonymizationDomain.PriorityHigh,
		ScheduledFor: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	t.Run("immediate", func(t *testing.T) {
		mockUseCase := &MockAnonymizationUseCase{}
		mockUseCase.On("Schedule", ctx, mock.MatchedBy(func(in *anonymizationDomain.ScheduleInput) bool {
			return in.EntityType == auditDomain.EntityStudent &&
				in.EntityID == studentID &&
				in.Reason == anonymizationDomain.ReasonGDPRRequest &&
				in.PreserveStatistics &&
				in.ScheduledFor == nil &&
				in.RequestedBy != nil && *in.RequestedBy == "dpo@example.com"
		})).Return(job, nil)

		var out bytes.Buffer
		err := RunScheduleAnonymization(
			ctx, mockUseCase, logger, &out,
			"student", studentID.String(), "gdpr_request", true, "", "dpo@example.com", "text",
		)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Anonymization job scheduled")
		assert.Contains(t, out.String(), job.ID.String())
		mockUseCase.AssertExpectations(t)
	})

	t.Run("delayed-json", func(t *testing.T) {
		mockUseCase := &MockAnonymizationUseCase{}
		mockUseCase.On("Schedule", ctx, mock.MatchedBy(func(in *anonymizationDomain.ScheduleInput) bool {
			return in.ScheduledFor != nil && in.ScheduledFor.Equal(job.ScheduledFor) && in.RequestedBy == nil
		})).Return(job, nil)

		var out bytes.Buffer
		err := RunScheduleAnonymization(
			ctx, mockUseCase, logger, &out,
			"student", studentID.String(), "gdpr_request", false, "2026-01-02", "", "json",
		)
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, "pending", result["status"])
		assert.Equal(t, "high", result["priority"])
		assert.Equal(t, "2026-01-02T00:00:00Z", result["scheduled_for"])
	})

	t.Run("invalid-entity-id", func(t *testing.T) {
		err := RunScheduleAnonymization(
			ctx, &MockAnonymizationUseCase{}, logger, &bytes.Buffer{},
			"student", "not-a-uuid", "gdpr_request", false, "", "", "text",
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid entity id")
	})

	t.Run("invalid-date", func(t *testing.T) {
		err := RunScheduleAnonymization(
			ctx, &MockAnonymizationUseCase{}, logger, &bytes.Buffer{},
			"student", studentID.String(), "gdpr_request", false, "tomorrow", "", "text",
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid scheduled-for date")
	})

	t.Run("job-already-active", func(t *testing.T) {
		mockUseCase := &MockAnonymizationUseCase{}
		mockUseCase.On("Schedule", ctx, mock.Anything).Return(nil, anonymizationDomain.ErrJobAlreadyActive)

		err := RunScheduleAnonymization(
			ctx, mockUseCase, logger, &bytes.Buffer{},
			"student", studentID.String(), "gdpr_request", false, "", "", "text",
		)
		require.ErrorIs(t, err, anonymizationDomain.ErrJobAlreadyActive)
	})
}
