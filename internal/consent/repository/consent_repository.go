// Package repository persists parental consents in PostgreSQL or MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	"github.com/allisson/compliance/internal/database"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
)

const consentColumns = `id, parent_email, parent_name, child_name, child_age, consent_types, status,
	first_token_hash, second_token_hash, first_consent_date, second_consent_date, expiry_date,
	valid_until, parent_id, student_id, revoked_at, revocation_reason, ip_address, user_agent, metadata,
	archived_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ConsentRepository stores parental consents.
type ConsentRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewConsentRepository creates a new ConsentRepository.
func NewConsentRepository(db *sql.DB, dialect database.Dialect) *ConsentRepository {
	return &ConsentRepository{db: db, dialect: dialect}
}

func scanConsent(row rowScanner) (*consentDomain.Consent, error) {
	var c consentDomain.Consent
	var types, metadata []byte

	err := row.Scan(
		&c.ID, &c.ParentEmail, &c.ParentName, &c.ChildName, &c.ChildAge, &types, &c.Status,
		&c.FirstTokenHash, &c.SecondTokenHash, &c.FirstConsentDate, &c.SecondConsentDate, &c.ExpiryDate,
		&c.ValidUntil, &c.ParentID, &c.StudentID, &c.RevokedAt, &c.RevocationReason, &c.IPAddress, &c.UserAgent, &metadata,
		&c.ArchivedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(types, &c.ConsentTypes); err != nil {
		return nil, err
	}
	c.Metadata = learnerDomain.Metadata{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	return string(data), err
}

// Create inserts a new consent. A second pending consent for the same email
// is rejected by a partial unique index on PostgreSQL.
func (r *ConsentRepository) Create(ctx context.Context, c *consentDomain.Consent) error {
	querier := database.GetTx(ctx, r.db)

	types, err := encodeJSON(c.ConsentTypes)
	if err != nil {
		return err
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = learnerDomain.Metadata{}
	}
	encodedMetadata, err := encodeJSON(metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO parental_consents (` + consentColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			          $19, $20, $21, $22, $23)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		c.ID, c.ParentEmail, c.ParentName, c.ChildName, c.ChildAge, types, c.Status,
		c.FirstTokenHash, c.SecondTokenHash, c.FirstConsentDate, c.SecondConsentDate, c.ExpiryDate,
		c.ValidUntil, c.ParentID, c.StudentID, c.RevokedAt, c.RevocationReason, c.IPAddress, c.UserAgent, encodedMetadata,
		c.ArchivedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil && database.IsUniqueViolation(err) {
		return consentDomain.ErrPendingConsentExists
	}
	return err
}

func (r *ConsentRepository) getBy(
	ctx context.Context,
	where string,
	notFound error,
	args ...any,
) (*consentDomain.Consent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + consentColumns + ` FROM parental_consents WHERE ` + where

	c, err := scanConsent(querier.QueryRowContext(ctx, r.dialect.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	return c, err
}

// Get returns the consent or ErrConsentNotFound.
func (r *ConsentRepository) Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error) {
	return r.getBy(ctx, "id = $1", consentDomain.ErrConsentNotFound, id)
}

// GetByFirstTokenHash returns the consent issued with the given first token.
func (r *ConsentRepository) GetByFirstTokenHash(ctx context.Context, hash string) (*consentDomain.Consent, error) {
	return r.getBy(ctx, "first_token_hash = $1", consentDomain.ErrInvalidToken, hash)
}

// GetBySecondTokenHash returns the consent issued with the given second token.
func (r *ConsentRepository) GetBySecondTokenHash(ctx context.Context, hash string) (*consentDomain.Consent, error) {
	return r.getBy(ctx, "second_token_hash = $1", consentDomain.ErrInvalidToken, hash)
}

// FindPendingByEmail returns the pending consent of a parent, if any.
func (r *ConsentRepository) FindPendingByEmail(ctx context.Context, email string) (*consentDomain.Consent, error) {
	return r.getBy(ctx, "parent_email = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1",
		consentDomain.ErrConsentNotFound, email, consentDomain.StatusPending)
}

// GetByStudent returns the most recent consent that created a student.
func (r *ConsentRepository) GetByStudent(ctx context.Context, studentID uuid.UUID) (*consentDomain.Consent, error) {
	return r.getBy(ctx, "student_id = $1 ORDER BY created_at DESC LIMIT 1",
		consentDomain.ErrConsentNotFound, studentID)
}

// Update persists the mutable state of a consent. The confirmation deadline is
// fixed at creation and never rewritten.
func (r *ConsentRepository) Update(ctx context.Context, c *consentDomain.Consent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE parental_consents
			  SET status = $1, second_token_hash = $2, first_consent_date = $3, second_consent_date = $4,
			      valid_until = $5, parent_id = $6, student_id = $7, revoked_at = $8,
			      revocation_reason = $9, updated_at = $10
			  WHERE id = $11`

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		c.Status, c.SecondTokenHash, c.FirstConsentDate, c.SecondConsentDate,
		c.ValidUntil, c.ParentID, c.StudentID, c.RevokedAt,
		c.RevocationReason, c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return consentDomain.ErrConsentNotFound
	}
	return nil
}

func (r *ConsentRepository) list(ctx context.Context, query string, args ...any) ([]*consentDomain.Consent, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	consents := make([]*consentDomain.Consent, 0)
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		consents = append(consents, c)
	}
	return consents, rows.Err()
}

// ListExpiredPending returns pending consents whose confirmation window closed before now.
func (r *ConsentRepository) ListExpiredPending(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*consentDomain.Consent, error) {
	query := `SELECT ` + consentColumns + ` FROM parental_consents
			  WHERE status = $1 AND expiry_date < $2
			  ORDER BY expiry_date ASC LIMIT $3`
	return r.list(ctx, query, consentDomain.StatusPending, now, limit)
}

// FindOlderThan returns consents not archived whose last change is before the
// given time, starting after the cursor.
func (r *ConsentRepository) FindOlderThan(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*consentDomain.Consent, error) {
	var p database.Placeholders
	query := `SELECT ` + consentColumns + ` FROM parental_consents
			  WHERE updated_at < ` + p.Add(before) + ` AND archived_at IS NULL` +
		after.After(&p, "updated_at", "id") + `
			  ORDER BY updated_at ASC, id ASC LIMIT ` + p.Add(limit)
	return r.list(ctx, query, p.Args()...)
}

// MarkArchived stamps archived_at.
func (r *ConsentRepository) MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE parental_consents SET archived_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), at, id)
	return err
}

// Delete removes a consent row.
func (r *ConsentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM parental_consents WHERE id = $1`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), id)
	return err
}
