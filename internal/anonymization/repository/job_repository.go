// Package repository persists anonymization jobs in PostgreSQL or MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
)

const jobColumns = `id, entity_type, entity_id, reason, status, priority, preserve_statistics, progress,
	affected_records, anonymized_fields, preserved_fields, errors, requested_by, scheduled_for,
	started_at, completed_at, created_at, updated_at`

const priorityOrder = `CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END`

// JobRepository stores anonymization jobs.
type JobRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *sql.DB, dialect database.Dialect) *JobRepository {
	return &JobRepository{db: db, dialect: dialect}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}

func decodeList(data []byte) ([]string, error) {
	values := []string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func scanJob(row rowScanner) (*anonymizationDomain.Job, error) {
	var job anonymizationDomain.Job
	var entityType, reason, status, priority string
	var anonymized, preserved, jobErrors []byte

	err := row.Scan(
		&job.ID, &entityType, &job.EntityID, &reason, &status, &priority, &job.PreserveStatistics,
		&job.Progress, &job.AffectedRecords, &anonymized, &preserved, &jobErrors, &job.RequestedBy,
		&job.ScheduledFor, &job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.EntityType = auditDomain.EntityType(entityType)
	job.Reason = anonymizationDomain.Reason(reason)
	job.Status = anonymizationDomain.Status(status)
	job.Priority = anonymizationDomain.Priority(priority)

	if job.AnonymizedFields, err = decodeList(anonymized); err != nil {
		return nil, err
	}
	if job.PreservedFields, err = decodeList(preserved); err != nil {
		return nil, err
	}
	if job.Errors, err = decodeList(jobErrors); err != nil {
		return nil, err
	}
	return &job, nil
}

func encodeJobLists(job *anonymizationDomain.Job) (anonymized, preserved, jobErrors string, err error) {
	if anonymized, err = encodeList(job.AnonymizedFields); err != nil {
		return "", "", "", err
	}
	if preserved, err = encodeList(job.PreservedFields); err != nil {
		return "", "", "", err
	}
	if jobErrors, err = encodeList(job.Errors); err != nil {
		return "", "", "", err
	}
	return anonymized, preserved, jobErrors, nil
}

// Create inserts a new job. A second active job for the same entity is rejected
// with ErrJobAlreadyActive where the database enforces it.
func (r *JobRepository) Create(ctx context.Context, job *anonymizationDomain.Job) error {
	querier := database.GetTx(ctx, r.db)

	anonymized, preserved, jobErrors, err := encodeJobLists(job)
	if err != nil {
		return err
	}

	query := `INSERT INTO anonymization_jobs (` + jobColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		job.ID, job.EntityType, job.EntityID, job.Reason, job.Status, job.Priority, job.PreserveStatistics,
		job.Progress, job.AffectedRecords, anonymized, preserved, jobErrors, job.RequestedBy,
		job.ScheduledFor, job.StartedAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil && database.IsUniqueViolation(err) {
		return anonymizationDomain.ErrJobAlreadyActive
	}
	return err
}

// Get returns the job or ErrJobNotFound.
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + ` FROM anonymization_jobs WHERE id = $1`

	job, err := scanJob(querier.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, anonymizationDomain.ErrJobNotFound
	}
	return job, err
}

// FindActive returns the pending or running job for an entity, or ErrJobNotFound.
func (r *JobRepository) FindActive(
	ctx context.Context,
	entityType auditDomain.EntityType,
	entityID uuid.UUID,
) (*anonymizationDomain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + ` FROM anonymization_jobs
			  WHERE entity_type = $1 AND entity_id = $2 AND status IN ($3, $4)
			  ORDER BY created_at DESC LIMIT 1`

	job, err := scanJob(querier.QueryRowContext(ctx, r.dialect.Rebind(query),
		entityType, entityID, anonymizationDomain.StatusPending, anonymizationDomain.StatusRunning,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, anonymizationDomain.ErrJobNotFound
	}
	return job, err
}

// Transition writes back the mutable job fields only while the stored job is
// still in status from. It returns ErrJobNotPending or ErrJobNotRunning when
// another process moved the job first.
func (r *JobRepository) Transition(
	ctx context.Context,
	job *anonymizationDomain.Job,
	from anonymizationDomain.Status,
) error {
	querier := database.GetTx(ctx, r.db)

	anonymized, preserved, jobErrors, err := encodeJobLists(job)
	if err != nil {
		return err
	}

	query := `UPDATE anonymization_jobs
			  SET status = $1, progress = $2, affected_records = $3, anonymized_fields = $4,
			      preserved_fields = $5, errors = $6, started_at = $7, completed_at = $8, updated_at = $9
			  WHERE id = $10 AND status = $11`

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		job.Status, job.Progress, job.AffectedRecords, anonymized,
		preserved, jobErrors, job.StartedAt, job.CompletedAt, job.UpdatedAt, job.ID, from,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return anonymizationDomain.ErrLeftStatus(from)
	}
	return nil
}

// List returns jobs by priority then creation time, optionally filtered by status.
func (r *JobRepository) List(
	ctx context.Context,
	status *anonymizationDomain.Status,
	offset, limit int,
) ([]*anonymizationDomain.Job, error) {
	var p database.Placeholders
	query := `SELECT ` + jobColumns + ` FROM anonymization_jobs`
	if status != nil {
		query += ` WHERE status = ` + p.Add(*status)
	}
	query += ` ORDER BY ` + priorityOrder + `, created_at DESC LIMIT ` + p.Add(limit) + ` OFFSET ` + p.Add(offset)

	return r.query(ctx, query, p.Args()...)
}

// ListDue returns pending jobs whose scheduled time is not after now, most
// urgent first.
func (r *JobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*anonymizationDomain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM anonymization_jobs
			  WHERE status = $1 AND scheduled_for <= $2
			  ORDER BY ` + priorityOrder + `, scheduled_for ASC, id ASC LIMIT $3`

	return r.query(ctx, query, anonymizationDomain.StatusPending, now, limit)
}

// ListStale returns running jobs that have not been touched since before.
func (r *JobRepository) ListStale(
	ctx context.Context,
	before time.Time,
	limit int,
) ([]*anonymizationDomain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM anonymization_jobs
			  WHERE status = $1 AND updated_at < $2
			  ORDER BY updated_at ASC, id ASC LIMIT $3`

	return r.query(ctx, query, anonymizationDomain.StatusRunning, before, limit)
}

func (r *JobRepository) query(ctx context.Context, query string, args ...any) ([]*anonymizationDomain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	jobs := make([]*anonymizationDomain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
