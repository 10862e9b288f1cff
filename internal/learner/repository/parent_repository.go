package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/compliance/internal/database"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
)

const parentColumns = `id, email, first_name, last_name, phone, address, metadata, last_activity_at,
	anonymized_at, archived_at, created_at, updated_at`

// ParentRepository stores parents.
type ParentRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewParentRepository creates a new ParentRepository.
func NewParentRepository(db *sql.DB, dialect database.Dialect) *ParentRepository {
	return &ParentRepository{db: db, dialect: dialect}
}

func scanParent(row rowScanner) (*learnerDomain.Parent, error) {
	var p learnerDomain.Parent
	var metadata []byte

	err := row.Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Address, &metadata, &p.LastActivityAt,
		&p.AnonymizedAt, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new parent.
func (r *ParentRepository) Create(ctx context.Context, p *learnerDomain.Parent) error {
	querier := database.GetTx(ctx, r.db)

	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO parents (` + parentColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone, p.Address, metadata, p.LastActivityAt,
		p.AnonymizedAt, p.ArchivedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil && database.IsUniqueViolation(err) {
		return learnerDomain.ErrParentAlreadyExists
	}
	return err
}

func (r *ParentRepository) getBy(ctx context.Context, column string, value any) (*learnerDomain.Parent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + parentColumns + ` FROM parents WHERE ` + column + ` = $1`

	p, err := scanParent(querier.QueryRowContext(ctx, r.dialect.Rebind(query), value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, learnerDomain.ErrParentNotFound
	}
	return p, err
}

// Get returns the parent or ErrParentNotFound.
func (r *ParentRepository) Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Parent, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail returns the parent with the given email or ErrParentNotFound.
func (r *ParentRepository) GetByEmail(ctx context.Context, email string) (*learnerDomain.Parent, error) {
	return r.getBy(ctx, "email", email)
}

// FindInactive returns parents holding personal data whose last activity is
// before the given time, starting after the cursor.
func (r *ParentRepository) FindInactive(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*learnerDomain.Parent, error) {
	querier := database.GetTx(ctx, r.db)

	var p database.Placeholders
	query := `SELECT ` + parentColumns + ` FROM parents
			  WHERE last_activity_at < ` + p.Add(before) + ` AND anonymized_at IS NULL AND archived_at IS NULL` +
		after.After(&p, "last_activity_at", "id") + `
			  ORDER BY last_activity_at ASC, id ASC LIMIT ` + p.Add(limit)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), p.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	parents := make([]*learnerDomain.Parent, 0)
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, err
		}
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

// UpdateAnonymized writes back the anonymized personal fields.
func (r *ParentRepository) UpdateAnonymized(ctx context.Context, p *learnerDomain.Parent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE parents
			  SET email = $1, first_name = $2, last_name = $3, phone = $4, address = $5,
			      anonymized_at = $6, updated_at = $7
			  WHERE id = $8`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		p.Email, p.FirstName, p.LastName, p.Phone, p.Address, p.AnonymizedAt, p.UpdatedAt, p.ID,
	)
	return err
}

// Touch records parent activity.
func (r *ParentRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE parents SET last_activity_at = $1, updated_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), at, id)
	return err
}

// MarkArchived stamps archived_at.
func (r *ParentRepository) MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE parents SET archived_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), at, id)
	return err
}

// Delete removes a parent row. Students must be removed first.
func (r *ParentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM parents WHERE id = $1`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), id)
	return err
}
