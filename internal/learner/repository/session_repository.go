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

const sessionColumns = `id, student_id, ip_address, user_agent, device_id, metadata, started_at,
	last_activity_at, anonymized_at, archived_at`

// SessionRepository stores learning sessions.
type SessionRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB, dialect database.Dialect) *SessionRepository {
	return &SessionRepository{db: db, dialect: dialect}
}

func scanSession(row rowScanner) (*learnerDomain.Session, error) {
	var s learnerDomain.Session
	var metadata []byte

	err := row.Scan(
		&s.ID, &s.StudentID, &s.IPAddress, &s.UserAgent, &s.DeviceID, &metadata, &s.StartedAt,
		&s.LastActivityAt, &s.AnonymizedAt, &s.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	if s.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]*learnerDomain.Session, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	sessions := make([]*learnerDomain.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *learnerDomain.Session) error {
	querier := database.GetTx(ctx, r.db)

	metadata, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		s.ID, s.StudentID, s.IPAddress, s.UserAgent, s.DeviceID, metadata, s.StartedAt,
		s.LastActivityAt, s.AnonymizedAt, s.ArchivedAt,
	)
	return err
}

// Get returns the session or ErrSessionNotFound.
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Session, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(querier.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, learnerDomain.ErrSessionNotFound
	}
	return s, err
}

// ListByStudent returns every session of a student.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*learnerDomain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE student_id = $1 ORDER BY started_at ASC`
	return r.list(ctx, query, studentID)
}

// FindInactive returns sessions not yet anonymized or archived whose last
// activity is before the given time, starting after the cursor.
func (r *SessionRepository) FindInactive(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*learnerDomain.Session, error) {
	var p database.Placeholders
	query := `SELECT ` + sessionColumns + ` FROM sessions
			  WHERE last_activity_at < ` + p.Add(before) + ` AND anonymized_at IS NULL AND archived_at IS NULL` +
		after.After(&p, "last_activity_at", "id") + `
			  ORDER BY last_activity_at ASC, id ASC LIMIT ` + p.Add(limit)
	return r.list(ctx, query, p.Args()...)
}

// UpdateAnonymized writes back the anonymized network identifiers.
func (r *SessionRepository) UpdateAnonymized(ctx context.Context, s *learnerDomain.Session) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE sessions SET ip_address = $1, user_agent = $2, device_id = $3, anonymized_at = $4
			  WHERE id = $5`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		s.IPAddress, s.UserAgent, s.DeviceID, s.AnonymizedAt, s.ID,
	)
	return err
}

// MarkArchived stamps archived_at.
func (r *SessionRepository) MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE sessions SET archived_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), at, id)
	return err
}

// Delete removes one session.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM sessions WHERE id = $1`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), id)
	return err
}

// DeleteByStudent removes every session of a student and returns the count.
func (r *SessionRepository) DeleteByStudent(ctx context.Context, studentID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM sessions WHERE student_id = $1`
	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query), studentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
