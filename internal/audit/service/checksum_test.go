package service

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
	cryptoService "github.com/allisson/compliance/internal/crypto/service"
)

type failingDeriver struct{}

func (failingDeriver) DeriveKey(string) ([]byte, error) {
	return nil, errors.New("no key")
}

func newTestChecksummer(t *testing.T) Checksummer {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	gateway, err := cryptoService.NewGateway(cryptoService.NewAEADManager(), key, cryptoDomain.AESGCM)
	require.NoError(t, err)

	checksummer, err := NewChecksummer(gateway)
	require.NoError(t, err)
	return checksummer
}

func newTestEntry() *auditDomain.AuditEntry {
	userID := "user-1"
	return &auditDomain.AuditEntry{
		ID:         uuid.Must(uuid.NewV7()),
		EntityType: auditDomain.EntityStudent,
		EntityID:   "S1",
		Action:     auditDomain.ActionRead,
		UserID:     &userID,
		Details:    json.RawMessage(`{"field":"grade_level"}`),
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 123456000, time.UTC),
	}
}

func TestNewChecksummer(t *testing.T) {
	_, err := NewChecksummer(failingDeriver{})
	assert.ErrorContains(t, err, "failed to derive checksum key")
}

func TestChecksummer(t *testing.T) {
	checksummer := newTestChecksummer(t)

	t.Run("Success_Deterministic", func(t *testing.T) {
		entry := newTestEntry()
		a := checksummer.Compute(entry)
		b := checksummer.Compute(entry)
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("Success_VerifyFresh", func(t *testing.T) {
		entry := newTestEntry()
		entry.Checksum = checksummer.Compute(entry)
		assert.True(t, checksummer.Verify(entry))
	})

	mutations := map[string]func(e *auditDomain.AuditEntry){
		"entity_id":   func(e *auditDomain.AuditEntry) { e.EntityID = "S2" },
		"entity_type": func(e *auditDomain.AuditEntry) { e.EntityType = auditDomain.EntityParent },
		"action":      func(e *auditDomain.AuditEntry) { e.Action = auditDomain.ActionUpdate },
		"user_id":     func(e *auditDomain.AuditEntry) { e.UserID = nil },
		"timestamp":   func(e *auditDomain.AuditEntry) { e.Timestamp = e.Timestamp.Add(time.Microsecond) },
		"details":     func(e *auditDomain.AuditEntry) { e.Details = json.RawMessage(`{"field":"email"}`) },
		"id":          func(e *auditDomain.AuditEntry) { e.ID = uuid.Must(uuid.NewV7()) },
	}
	for name, mutate := range mutations {
		t.Run("Error_Tampered_"+name, func(t *testing.T) {
			entry := newTestEntry()
			entry.Checksum = checksummer.Compute(entry)
			mutate(entry)
			assert.False(t, checksummer.Verify(entry))
		})
	}

	t.Run("Success_FieldsNotInChecksum", func(t *testing.T) {
		entry := newTestEntry()
		entry.Checksum = checksummer.Compute(entry)
		ip := "10.0.0.1"
		entry.IPAddress = &ip
		entry.Severity = auditDomain.SeverityHigh
		assert.True(t, checksummer.Verify(entry))
	})

	t.Run("Error_GarbageChecksum", func(t *testing.T) {
		entry := newTestEntry()
		entry.Checksum = "not-hex"
		assert.False(t, checksummer.Verify(entry))
	})

	t.Run("Error_DifferentKey", func(t *testing.T) {
		entry := newTestEntry()
		entry.Checksum = checksummer.Compute(entry)
		assert.False(t, newTestChecksummer(t).Verify(entry))
	})

	t.Run("Success_LengthPrefixPreventsAmbiguity", func(t *testing.T) {
		a := newTestEntry()
		b := newTestEntry()
		b.ID = a.ID
		a.EntityID, a.UserID = "S1x", ptr("y")
		b.EntityID, b.UserID = "S1", ptr("xy")
		assert.NotEqual(t, checksummer.Compute(a), checksummer.Compute(b))
	})
}

func ptr(s string) *string {
	return &s
}
