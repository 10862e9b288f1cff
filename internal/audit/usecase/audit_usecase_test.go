package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	auditService "github.com/allisson/compliance/internal/audit/service"
	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
	cryptoService "github.com/allisson/compliance/internal/crypto/service"
	apperrors "github.com/allisson/compliance/internal/errors"
)

var testConfig = Config{
	ReadThreshold:   10,
	ReadWindow:      24 * time.Hour,
	DeniedThreshold: 5,
	DeniedWindow:    time.Hour,
}

type fixture struct {
	uc      *AuditUseCase
	entries *memoryEntryRepository
	alerts  *memoryAlertRepository
	clock   time.Time
}

// tick advances the fixture clock so every entry gets a distinct timestamp.
func (f *fixture) tick(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func newGateway(t *testing.T) cryptoService.Gateway {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, cryptoDomain.KeySize)
	gateway, err := cryptoService.NewGateway(cryptoService.NewAEADManager(), key, cryptoDomain.AESGCM)
	require.NoError(t, err)
	return gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gateway := newGateway(t)
	checksummer, err := auditService.NewChecksummer(gateway)
	require.NoError(t, err)

	f := &fixture{
		entries: newMemoryEntryRepository(),
		alerts:  &memoryAlertRepository{},
		clock:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.uc = NewAuditUseCase(testConfig, f.entries, f.alerts, checksummer, gateway, logger)
	f.uc.now = func() time.Time { return f.clock }
	return f
}

func ptr(s string) *string {
	return &s
}

func TestAuditUseCase_LogAction(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PlainDetails", func(t *testing.T) {
		f := newFixture(t)

		id := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityRetentionPolicy,
			EntityID:   "policy-1",
			Action:     auditDomain.ActionRetentionPolicyCreated,
			UserID:     ptr("dpo"),
			Details:    map[string]any{"retention_days": 90},
			IPAddress:  "10.0.0.1",
		})
		require.NotEqual(t, uuid.Nil, id)

		entry, err := f.entries.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, entry.Encrypted)
		assert.JSONEq(t, `{"retention_days":90}`, string(entry.Details))
		assert.Equal(t, auditDomain.CategoryCompliance, entry.Category)
		assert.Equal(t, auditDomain.SeverityLow, entry.Severity)
		assert.Equal(t, "10.0.0.1", *entry.IPAddress)
		assert.Nil(t, entry.UserAgent)
		assert.Equal(t, CorrelationID(ptr("dpo")), entry.CorrelationID)
		assert.Len(t, entry.Checksum, 64)
	})

	t.Run("Success_EncryptsSensitiveDetails", func(t *testing.T) {
		f := newFixture(t)

		id := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "student-1",
			Action:     auditDomain.ActionUpdate,
			Details:    map[string]any{"first_name": "Lucie"},
		})
		require.NotEqual(t, uuid.Nil, id)

		entry, err := f.entries.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, entry.Encrypted)
		assert.NotContains(t, string(entry.Details), "Lucie")
		assert.Contains(t, string(entry.Details), `"iv"`)
	})

	t.Run("Success_ExplicitSeverityAndCategory", func(t *testing.T) {
		f := newFixture(t)

		id := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType:    auditDomain.EntitySystem,
			EntityID:      "worker",
			Action:        auditDomain.ActionLogin,
			Severity:      auditDomain.SeverityCritical,
			Category:      auditDomain.CategorySecurity,
			CorrelationID: "session-7",
		})

		entry, err := f.entries.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, auditDomain.SeverityCritical, entry.Severity)
		assert.Equal(t, auditDomain.CategorySecurity, entry.Category)
		assert.Equal(t, "session-7", entry.CorrelationID)
		assert.Nil(t, entry.Details)
	})

	t.Run("Error_InvalidInputReturnsNilID", func(t *testing.T) {
		repo := &mockEntryRepository{}
		uc := NewAuditUseCase(testConfig, repo, &memoryAlertRepository{}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

		inputs := []*auditDomain.LogActionInput{
			nil,
			{EntityType: auditDomain.EntityStudent, EntityID: "s", Action: "hack"},
			{EntityType: "invoice", EntityID: "s", Action: auditDomain.ActionRead},
			{EntityType: auditDomain.EntityStudent, Action: auditDomain.ActionRead},
			{EntityType: auditDomain.EntityStudent, EntityID: "s", Action: auditDomain.ActionRead, Severity: "urgent"},
		}
		for _, input := range inputs {
			assert.Equal(t, uuid.Nil, uc.LogAction(ctx, input))
		}
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Error_RepositoryFailureIsSwallowed", func(t *testing.T) {
		gateway := newGateway(t)
		checksummer, err := auditService.NewChecksummer(gateway)
		require.NoError(t, err)

		repo := &mockEntryRepository{}
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.AuditEntry")).
			Return(errors.New("connection refused")).
			Once()

		uc := NewAuditUseCase(testConfig, repo, &memoryAlertRepository{}, checksummer, gateway,
			slog.New(slog.NewTextHandler(io.Discard, nil)))

		id := uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "student-1",
			Action:     auditDomain.ActionRead,
		})

		assert.Equal(t, uuid.Nil, id)
		repo.AssertExpectations(t)
	})
}

func TestCorrelationID(t *testing.T) {
	assert.Equal(t, CorrelationID(ptr("staff-1")), CorrelationID(ptr("staff-1")))
	assert.NotEqual(t, CorrelationID(ptr("staff-1")), CorrelationID(ptr("staff-2")))
	assert.NotEqual(t, CorrelationID(nil), CorrelationID(nil))
	assert.NotEqual(t, CorrelationID(ptr("")), CorrelationID(ptr("")))
}

func TestAuditUseCase_VerifyIntegrity(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ValidAfterLogAction", func(t *testing.T) {
		f := newFixture(t)
		id := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityParent,
			EntityID:   "parent-1",
			Action:     auditDomain.ActionExport,
			UserID:     ptr("parent-1"),
			Details:    map[string]any{"format": "json"},
		})

		result, err := f.uc.VerifyIntegrity(ctx, id)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.False(t, result.Tampering)
		assert.Equal(t, id, result.EntryID)
	})

	t.Run("Success_DetectsTampering", func(t *testing.T) {
		mutations := map[string]func(e *auditDomain.AuditEntry){
			"entity_id": func(e *auditDomain.AuditEntry) { e.EntityID = "student-2" },
			"action":    func(e *auditDomain.AuditEntry) { e.Action = auditDomain.ActionDelete },
			"user_id":   func(e *auditDomain.AuditEntry) { e.UserID = ptr("intruder") },
			"timestamp": func(e *auditDomain.AuditEntry) { e.Timestamp = e.Timestamp.Add(time.Second) },
			"details":   func(e *auditDomain.AuditEntry) { e.Details = []byte(`{"reason":"edited"}`) },
		}

		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				f := newFixture(t)
				id := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
					EntityType: auditDomain.EntityStudent,
					EntityID:   "student-1",
					Action:     auditDomain.ActionDelete,
					UserID:     ptr("admin"),
					Details:    map[string]any{"reason": "duplicate"},
				})
				f.entries.tamper(id, mutate)

				result, err := f.uc.VerifyIntegrity(ctx, id)
				require.NoError(t, err)
				assert.False(t, result.Valid)
				assert.True(t, result.Tampering)
			})
		}
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.VerifyIntegrity(ctx, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

func TestAuditUseCase_VerifyBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		f.tick(time.Minute)
		ids = append(ids, f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntitySession,
			EntityID:   "session-1",
			Action:     auditDomain.ActionLogout,
		}))
	}
	f.entries.tamper(ids[2], func(e *auditDomain.AuditEntry) { e.Checksum = "00" })

	report, err := f.uc.VerifyBatch(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Valid)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, []uuid.UUID{ids[2]}, report.InvalidIDs)

	from := f.clock.Add(-90 * time.Second)
	report, err = f.uc.VerifyBatch(ctx, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
}

func TestAuditUseCase_DetectAnomalies(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_EleventhReadRaisesOneAlert", func(t *testing.T) {
		f := newFixture(t)
		read := &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "S1",
			Action:     auditDomain.ActionRead,
			UserID:     ptr("staff-1"),
		}

		for i := 0; i < 10; i++ {
			f.tick(time.Minute)
			require.NotEqual(t, uuid.Nil, f.uc.LogAction(ctx, read))
		}
		assert.Equal(t, 0, f.alerts.count())

		f.tick(time.Minute)
		require.NotEqual(t, uuid.Nil, f.uc.LogAction(ctx, read))
		require.Equal(t, 1, f.alerts.count())

		alert := f.alerts.alerts[0]
		assert.Equal(t, auditDomain.AlertSuspiciousAccess, alert.Type)
		assert.Equal(t, auditDomain.SeverityMedium, alert.Severity)
		assert.Equal(t, "S1", alert.EntityID)
		assert.GreaterOrEqual(t, len(alert.AuditEntryIDs), 10)

		// The alert itself is audited.
		audited := f.entries.byAction(auditDomain.ActionSecurityAlert)
		require.Len(t, audited, 1)
		assert.Equal(t, alert.ID.String(), audited[0].EntityID)

		f.tick(time.Minute)
		f.uc.LogAction(ctx, read)
		assert.Equal(t, 1, f.alerts.count())
	})

	t.Run("Success_ReadsOutsideWindowDoNotCount", func(t *testing.T) {
		f := newFixture(t)
		read := &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "S1",
			Action:     auditDomain.ActionRead,
		}

		for i := 0; i < 11; i++ {
			f.tick(3 * time.Hour)
			f.uc.LogAction(ctx, read)
		}
		assert.Equal(t, 0, f.alerts.count())
	})

	t.Run("Success_ResolvedAlertAllowsNewOne", func(t *testing.T) {
		f := newFixture(t)
		read := &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "S1",
			Action:     auditDomain.ActionRead,
		}
		for i := 0; i < 11; i++ {
			f.tick(time.Minute)
			f.uc.LogAction(ctx, read)
		}
		require.Equal(t, 1, f.alerts.count())

		_, err := f.uc.ResolveAlert(ctx, f.alerts.alerts[0].ID, "dpo")
		require.NoError(t, err)

		f.tick(time.Minute)
		f.uc.LogAction(ctx, read)
		assert.Equal(t, 2, f.alerts.count())
	})

	t.Run("Success_DeniedSessionsFromSameIP", func(t *testing.T) {
		f := newFixture(t)
		denied := func(ip string) *auditDomain.LogActionInput {
			return &auditDomain.LogActionInput{
				EntityType: auditDomain.EntityUserSession,
				EntityID:   "login",
				Action:     auditDomain.ActionAccessDenied,
				IPAddress:  ip,
			}
		}

		for i := 0; i < 5; i++ {
			f.tick(time.Minute)
			f.uc.LogAction(ctx, denied("203.0.113.7"))
			f.uc.LogAction(ctx, denied("198.51.100.1"))
		}
		assert.Equal(t, 0, f.alerts.count())

		f.tick(time.Minute)
		f.uc.LogAction(ctx, denied("203.0.113.7"))
		require.Equal(t, 1, f.alerts.count())

		alert := f.alerts.alerts[0]
		assert.Equal(t, auditDomain.AlertMultipleFailedLogins, alert.Type)
		assert.Equal(t, auditDomain.SeverityHigh, alert.Severity)
		assert.Equal(t, "203.0.113.7", alert.EntityID)
		assert.Len(t, alert.AuditEntryIDs, 6)
	})
}

func TestAuditUseCase_Query(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		f.tick(time.Minute)
		f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "student-1",
			Action:     auditDomain.ActionRead,
			Details:    map[string]any{"field": "grades"},
		})
	}

	t.Run("Success_EncryptedDetailsHiddenWithoutDecrypt", func(t *testing.T) {
		result, err := f.uc.Query(ctx, &auditDomain.QueryFilter{EntityID: "student-1", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.True(t, result.HasMore)
		require.Len(t, result.Entries, 2)
		assert.True(t, result.Entries[0].Encrypted)
		assert.Nil(t, result.Entries[0].Payload)
	})

	t.Run("Success_DecryptsOnRequest", func(t *testing.T) {
		result, err := f.uc.Query(ctx, &auditDomain.QueryFilter{EntityID: "student-1", Offset: 2, Limit: 2, Decrypt: true})
		require.NoError(t, err)
		assert.False(t, result.HasMore)
		require.Len(t, result.Entries, 1)
		assert.Equal(t, map[string]any{"field": "grades"}, result.Entries[0].Payload)
	})

	t.Run("Success_DefaultLimit", func(t *testing.T) {
		filter := &auditDomain.QueryFilter{}
		_, err := f.uc.Query(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, defaultQueryLimit, filter.Limit)
	})

	t.Run("Error_NegativeOffset", func(t *testing.T) {
		_, err := f.uc.Query(ctx, &auditDomain.QueryFilter{Offset: -1})
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &mockEntryRepository{}
		repo.On("Count", ctx, mock.Anything).Return(0, errors.New("db down")).Once()
		uc := NewAuditUseCase(testConfig, repo, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := uc.Query(ctx, &auditDomain.QueryFilter{Limit: 10})
		assert.ErrorContains(t, err, "db down")
		repo.AssertExpectations(t)
	})
}

func TestAuditUseCase_AnonymizeStudentLogs(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RedactsAndKeepsChecksumsValid", func(t *testing.T) {
		f := newFixture(t)

		encryptedID := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "student-1",
			Action:     auditDomain.ActionCreate,
			Details:    map[string]any{"first_name": "Lucie", "grade_level": "CE2"},
			IPAddress:  "10.0.0.9",
			UserAgent:  "Mozilla/5.0",
		})
		f.tick(time.Minute)
		plainID := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "student-1",
			Action:     auditDomain.ActionDelete,
			Details:    map[string]any{"guardian": map[string]any{"parent_email": "p@example.com"}},
		})
		f.tick(time.Minute)
		otherID := f.uc.LogAction(ctx, &auditDomain.LogActionInput{
			EntityType: auditDomain.EntityStudent,
			EntityID:   "student-2",
			Action:     auditDomain.ActionDelete,
			Details:    map[string]any{"name": "Tom"},
		})

		count, err := f.uc.AnonymizeStudentLogs(ctx, "student-1", "consent_withdrawal")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		encrypted, err := f.uc.Query(ctx, &auditDomain.QueryFilter{EntityID: "student-1", Action: auditDomain.ActionCreate, Decrypt: true})
		require.NoError(t, err)
		require.Len(t, encrypted.Entries, 1)
		assert.Equal(t, RedactedValue, encrypted.Entries[0].Payload["first_name"])
		assert.Equal(t, "CE2", encrypted.Entries[0].Payload["grade_level"])
		assert.Nil(t, encrypted.Entries[0].IPAddress)
		assert.Nil(t, encrypted.Entries[0].UserAgent)

		plain, err := f.entries.Get(ctx, plainID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"guardian":{"parent_email":"[REDACTED]"}}`, string(plain.Details))

		other, err := f.entries.Get(ctx, otherID)
		require.NoError(t, err)
		assert.Contains(t, string(other.Details), "Tom")

		for _, id := range []uuid.UUID{encryptedID, plainID} {
			result, err := f.uc.VerifyIntegrity(ctx, id)
			require.NoError(t, err)
			assert.True(t, result.Valid)
		}

		// A second pass has nothing left to rewrite.
		count, err = f.uc.AnonymizeStudentLogs(ctx, "student-1", "consent_withdrawal")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Error_EmptyStudentID", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.AnonymizeStudentLogs(ctx, "", "gdpr_request")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})
}

func TestAuditUseCase_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.uc.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntitySession, EntityID: "old", Action: auditDomain.ActionLogin,
	})
	f.tick(48 * time.Hour)
	f.uc.LogAction(ctx, &auditDomain.LogActionInput{
		EntityType: auditDomain.EntitySession, EntityID: "new", Action: auditDomain.ActionLogin,
	})
	before := f.clock.Add(-time.Hour)

	count, err := f.uc.DeleteOlderThan(ctx, before, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = f.uc.DeleteOlderThan(ctx, before, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err := f.entries.Count(ctx, &auditDomain.QueryFilter{EntityID: "old"})
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestAuditUseCase_Alerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alert := &auditDomain.SecurityAlert{
		ID:         uuid.New(),
		Type:       auditDomain.AlertSuspiciousAccess,
		Severity:   auditDomain.SeverityMedium,
		EntityType: auditDomain.EntityStudent,
		EntityID:   "S1",
		DetectedAt: f.clock,
	}
	require.NoError(t, f.alerts.Create(ctx, alert))

	t.Run("Success_ListUnresolved", func(t *testing.T) {
		unresolved := false
		alerts, err := f.uc.ListAlerts(ctx, &unresolved, 0, 0)
		require.NoError(t, err)
		assert.Len(t, alerts, 1)
	})

	t.Run("Success_Resolve", func(t *testing.T) {
		resolved, err := f.uc.ResolveAlert(ctx, alert.ID, "dpo@school.example")
		require.NoError(t, err)
		assert.True(t, resolved.Resolved)
		assert.Equal(t, "dpo@school.example", *resolved.ResolvedBy)
		assert.Equal(t, f.clock, *resolved.ResolvedAt)
	})

	t.Run("Error_AlreadyResolved", func(t *testing.T) {
		_, err := f.uc.ResolveAlert(ctx, alert.ID, "dpo@school.example")
		assert.ErrorIs(t, err, auditDomain.ErrAlertAlreadyResolved)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		_, err := f.uc.ResolveAlert(ctx, uuid.New(), "dpo")
		assert.ErrorIs(t, err, auditDomain.ErrAlertNotFound)
	})
}
