package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	"github.com/allisson/compliance/internal/database"
	"github.com/allisson/compliance/internal/testutil"
)

var consentRowColumns = []string{
	"id", "parent_email", "parent_name", "child_name", "child_age", "consent_types", "status",
	"first_token_hash", "second_token_hash", "first_consent_date", "second_consent_date", "expiry_date",
	"valid_until", "parent_id", "student_id", "revoked_at", "revocation_reason", "ip_address", "user_agent", "metadata",
	"archived_at", "created_at", "updated_at",
}

func consentRow(id uuid.UUID, status consentDomain.Status, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(consentRowColumns).AddRow(
		id.String(), "parent@example.com", "Marie Curie", "Eve Curie", 8,
		[]byte(`["data_collection","progress_tracking"]`), string(status),
		"hash-1", nil, nil, nil, now.Add(7*24*time.Hour),
		nil, nil, nil, nil, nil, "203.0.113.7", "Mozilla/5.0", []byte(`{"legal_hold":true}`),
		nil, now, now,
	)
}

func TestConsentRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	consent := &consentDomain.Consent{
		ID:             uuid.Must(uuid.NewV7()),
		ParentEmail:    "parent@example.com",
		ParentName:     "Marie Curie",
		ChildName:      "Eve Curie",
		ChildAge:       8,
		ConsentTypes:   []consentDomain.Type{consentDomain.TypeDataCollection},
		Status:         consentDomain.StatusPending,
		FirstTokenHash: "hash-1",
		ExpiryDate:     now.Add(7 * 24 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.Postgres)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO parental_consents")).
			WithArgs(
				consent.ID, consent.ParentEmail, consent.ParentName, consent.ChildName, 8,
				`["data_collection"]`, consentDomain.StatusPending,
				"hash-1", nil, nil, nil, consent.ExpiryDate,
				nil, nil, nil, nil, nil, "", "", "{}",
				nil, now, now,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Create(ctx, consent))
	})

	t.Run("Error_DuplicatePending", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.MySQL)

		mock.ExpectExec("INSERT INTO parental_consents").WillReturnError(&mysql.MySQLError{Number: 1062})

		assert.ErrorIs(t, repo.Create(ctx, consent), consentDomain.ErrPendingConsentExists)
	})
}

func TestConsentRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success_Get", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.Postgres)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM parental_consents WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(consentRow(id, consentDomain.StatusPending, now))

		c, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID)
		assert.Equal(t, []consentDomain.Type{consentDomain.TypeDataCollection, consentDomain.TypeProgressTracking},
			c.ConsentTypes)
		assert.True(t, c.Metadata.Flag("legal_hold"))
	})

	t.Run("Error_UnknownFirstToken", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.MySQL)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE first_token_hash = ?")).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(consentRowColumns))

		_, err := repo.GetByFirstTokenHash(ctx, "nope")
		assert.ErrorIs(t, err, consentDomain.ErrInvalidToken)
	})

	t.Run("Success_FindPendingByEmail", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.Postgres)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE parent_email = $1 AND status = $2")).
			WithArgs("parent@example.com", consentDomain.StatusPending).
			WillReturnRows(consentRow(id, consentDomain.StatusPending, now))

		c, err := repo.FindPendingByEmail(ctx, "parent@example.com")
		require.NoError(t, err)
		assert.Equal(t, consentDomain.StatusPending, c.Status)
	})
}

func TestConsentRepository_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	studentID := uuid.New()
	validUntil := now.AddDate(1, 0, 0)
	consent := &consentDomain.Consent{
		ID:                uuid.New(),
		Status:            consentDomain.StatusVerified,
		SecondConsentDate: &now,
		ExpiryDate:        now.Add(-time.Hour),
		ValidUntil:        &validUntil,
		StudentID:         &studentID,
		UpdatedAt:         now,
	}

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.Postgres)

		// The confirmation deadline is not part of the update.
		mock.ExpectExec(regexp.QuoteMeta("valid_until = $5")).
			WithArgs(
				consentDomain.StatusVerified, nil, nil, &now,
				&validUntil, nil, &studentID, nil,
				nil, now, consent.ID,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(ctx, consent))
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewConsentRepository(db, database.Postgres)

		mock.ExpectExec("UPDATE parental_consents").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(ctx, consent), consentDomain.ErrConsentNotFound)
	})
}

func TestConsentRepository_ListExpiredPending(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	db, mock := testutil.NewMockDB(t)
	repo := NewConsentRepository(db, database.Postgres)

	rows := consentRow(uuid.New(), consentDomain.StatusPending, now.Add(-8*24*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND expiry_date < $2")).
		WithArgs(consentDomain.StatusPending, now, 100).
		WillReturnRows(rows)

	consents, err := repo.ListExpiredPending(ctx, now, 100)
	require.NoError(t, err)
	assert.Len(t, consents, 1)
}
