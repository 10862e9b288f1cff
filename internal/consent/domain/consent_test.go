package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestType_Valid(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.Valid(), string(typ))
	}
	assert.False(t, Type("marketing").Valid())
}

func TestConsent_ExpiredAt(t *testing.T) {
	expiry := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)
	c := &Consent{Status: StatusPending, ExpiryDate: expiry}

	assert.False(t, c.ExpiredAt(expiry))
	assert.True(t, c.ExpiredAt(expiry.Add(time.Second)))

	c.Status = StatusVerified
	assert.False(t, c.ExpiredAt(expiry.Add(time.Hour)))
}

func TestConsent_ValidForProcessing(t *testing.T) {
	expiry := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := &Consent{
		Status:       StatusVerified,
		ConsentTypes: []Type{TypeDataCollection, TypeProgressTracking},
		// The confirmation deadline passed long ago and does not bound processing.
		ExpiryDate: expiry.AddDate(-1, 0, 0),
		ValidUntil: &expiry,
	}

	t.Run("Success_CoveredType", func(t *testing.T) {
		assert.True(t, c.ValidForProcessing(TypeProgressTracking, expiry))
	})

	t.Run("Error_UncoveredType", func(t *testing.T) {
		assert.False(t, c.ValidForProcessing(TypeAnalytics, expiry.Add(-time.Hour)))
	})

	t.Run("Error_PastExpiry", func(t *testing.T) {
		assert.False(t, c.ValidForProcessing(TypeDataCollection, expiry.Add(time.Nanosecond)))
	})

	t.Run("Error_NotVerified", func(t *testing.T) {
		pending := *c
		pending.Status = StatusPending
		assert.False(t, pending.ValidForProcessing(TypeDataCollection, expiry.Add(-time.Hour)))
	})

	t.Run("Error_NoValidity", func(t *testing.T) {
		unbounded := *c
		unbounded.ValidUntil = nil
		assert.False(t, unbounded.ValidForProcessing(TypeDataCollection, expiry.Add(-time.Hour)))
	})
}
