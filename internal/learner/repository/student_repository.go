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

const studentColumns = `id, parent_id, consent_id, first_name, last_name, birth_date, age, grade_level,
	completion_rate, postal_code, metadata, last_activity_at, inactivity_warned_at, anonymized_at,
	archived_at, created_at, updated_at`

// StudentRepository stores students.
type StudentRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db *sql.DB, dialect database.Dialect) *StudentRepository {
	return &StudentRepository{db: db, dialect: dialect}
}

func scanStudent(row rowScanner) (*learnerDomain.Student, error) {
	var s learnerDomain.Student
	var metadata []byte

	err := row.Scan(
		&s.ID, &s.ParentID, &s.ConsentID, &s.FirstName, &s.LastName, &s.BirthDate, &s.Age, &s.GradeLevel,
		&s.CompletionRate, &s.PostalCode, &metadata, &s.LastActivityAt, &s.InactivityWarnedAt,
		&s.AnonymizedAt, &s.ArchivedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if s.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) list(ctx context.Context, query string, args ...any) ([]*learnerDomain.Student, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	students := make([]*learnerDomain.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *learnerDomain.Student) error {
	querier := database.GetTx(ctx, r.db)

	metadata, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO students (` + studentColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		s.ID, s.ParentID, s.ConsentID, s.FirstName, s.LastName, s.BirthDate, s.Age, s.GradeLevel,
		s.CompletionRate, s.PostalCode, metadata, s.LastActivityAt, s.InactivityWarnedAt,
		s.AnonymizedAt, s.ArchivedAt, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// Get returns the student or ErrStudentNotFound.
func (r *StudentRepository) Get(ctx context.Context, id uuid.UUID) (*learnerDomain.Student, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	s, err := scanStudent(querier.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, learnerDomain.ErrStudentNotFound
	}
	return s, err
}

// ListByParent returns every student of a parent.
func (r *StudentRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*learnerDomain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE parent_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, parentID)
}

// FindInactive returns students holding personal data whose last activity is
// before the given time, least recently active first, starting after the cursor.
func (r *StudentRepository) FindInactive(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*learnerDomain.Student, error) {
	var p database.Placeholders
	query := `SELECT ` + studentColumns + ` FROM students
			  WHERE last_activity_at < ` + p.Add(before) + ` AND anonymized_at IS NULL AND archived_at IS NULL` +
		after.After(&p, "last_activity_at", "id") + `
			  ORDER BY last_activity_at ASC, id ASC LIMIT ` + p.Add(limit)
	return r.list(ctx, query, p.Args()...)
}

// UpdateAnonymized writes back the anonymized personal fields.
func (r *StudentRepository) UpdateAnonymized(ctx context.Context, s *learnerDomain.Student) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students
			  SET first_name = $1, last_name = $2, birth_date = $3, age = $4, grade_level = $5,
			      completion_rate = $6, postal_code = $7, anonymized_at = $8, updated_at = $9
			  WHERE id = $10`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		s.FirstName, s.LastName, s.BirthDate, s.Age, s.GradeLevel,
		s.CompletionRate, s.PostalCode, s.AnonymizedAt, s.UpdatedAt, s.ID,
	)
	return err
}

// MarkInactivityWarned records that the inactivity warning was sent.
func (r *StudentRepository) MarkInactivityWarned(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students SET inactivity_warned_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), at, id)
	return err
}

// MarkArchived stamps archived_at.
func (r *StudentRepository) MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students SET archived_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), at, id)
	return err
}

// Delete removes a student row. Sessions must be removed first.
func (r *StudentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM students WHERE id = $1`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), id)
	return err
}
