package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

const recordColumns = `id, policy_id, entity_type, entity_id, notified_at, processed_at, outcome, error,
	created_at, updated_at`

// RecordRepository stores one retention record per policy and entity.
type RecordRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db *sql.DB, dialect database.Dialect) *RecordRepository {
	return &RecordRepository{db: db, dialect: dialect}
}

func scanRecord(row rowScanner) (*retentionDomain.Record, error) {
	var rec retentionDomain.Record
	var entityType, outcome string

	err := row.Scan(
		&rec.ID, &rec.PolicyID, &entityType, &rec.EntityID, &rec.NotifiedAt, &rec.ProcessedAt, &outcome,
		&rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.EntityType = auditDomain.EntityType(entityType)
	rec.Outcome = retentionDomain.Outcome(outcome)
	return &rec, nil
}

// Get returns the record of an entity under a policy, or ErrRecordNotFound.
func (r *RecordRepository) Get(
	ctx context.Context,
	policyID, entityID uuid.UUID,
) (*retentionDomain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + ` FROM retention_records WHERE policy_id = $1 AND entity_id = $2`

	rec, err := scanRecord(querier.QueryRowContext(ctx, r.dialect.Rebind(query), policyID, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, retentionDomain.ErrRecordNotFound
	}
	return rec, err
}

// Create inserts a record.
func (r *RecordRepository) Create(ctx context.Context, rec *retentionDomain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO retention_records (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		rec.ID, rec.PolicyID, rec.EntityType, rec.EntityID, rec.NotifiedAt, rec.ProcessedAt, rec.Outcome,
		rec.Error, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// Update writes back the mutable record fields.
func (r *RecordRepository) Update(ctx context.Context, rec *retentionDomain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE retention_records
			  SET notified_at = $1, processed_at = $2, outcome = $3, error = $4, updated_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		rec.NotifiedAt, rec.ProcessedAt, rec.Outcome, rec.Error, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return retentionDomain.ErrRecordNotFound
	}
	return nil
}

// CountByOutcome returns how many records of a policy ended in each outcome.
func (r *RecordRepository) CountByOutcome(
	ctx context.Context,
	policyID uuid.UUID,
) (map[retentionDomain.Outcome]int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT outcome, COUNT(*) FROM retention_records WHERE policy_id = $1 GROUP BY outcome`

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[retentionDomain.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[retentionDomain.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
