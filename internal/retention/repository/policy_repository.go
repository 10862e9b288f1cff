// Package repository persists retention policies and their per-entity records
// in PostgreSQL or MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

const policyColumns = `id, policy_name, entity_type, retention_period_days, trigger_condition, action, priority,
	active, legal_basis, exceptions, notification_days, last_executed, records_processed, created_at, updated_at`

// PolicyRepository stores retention policies.
type PolicyRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(db *sql.DB, dialect database.Dialect) *PolicyRepository {
	return &PolicyRepository{db: db, dialect: dialect}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeExceptions(values []retentionDomain.Exception) (string, error) {
	if values == nil {
		values = []retentionDomain.Exception{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}

func scanPolicy(row rowScanner) (*retentionDomain.Policy, error) {
	var p retentionDomain.Policy
	var entityType, action string
	var exceptions []byte

	err := row.Scan(
		&p.ID, &p.Name, &entityType, &p.RetentionPeriodDays, &p.TriggerCondition, &action, &p.Priority,
		&p.Active, &p.LegalBasis, &exceptions, &p.NotificationDays, &p.LastExecuted, &p.RecordsProcessed,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.EntityType = auditDomain.EntityType(entityType)
	p.Action = retentionDomain.Action(action)
	p.Exceptions = []retentionDomain.Exception{}
	if len(exceptions) > 0 {
		if err := json.Unmarshal(exceptions, &p.Exceptions); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Create inserts a policy. Policy names are unique.
func (r *PolicyRepository) Create(ctx context.Context, p *retentionDomain.Policy) error {
	querier := database.GetTx(ctx, r.db)

	exceptions, err := encodeExceptions(p.Exceptions)
	if err != nil {
		return err
	}

	query := `INSERT INTO retention_policies (` + policyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		p.ID, p.Name, p.EntityType, p.RetentionPeriodDays, p.TriggerCondition, p.Action, p.Priority,
		p.Active, p.LegalBasis, exceptions, p.NotificationDays, p.LastExecuted, p.RecordsProcessed,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil && database.IsUniqueViolation(err) {
		return retentionDomain.ErrPolicyAlreadyExists
	}
	return err
}

// Get returns the policy or ErrPolicyNotFound.
func (r *PolicyRepository) Get(ctx context.Context, id uuid.UUID) (*retentionDomain.Policy, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + policyColumns + ` FROM retention_policies WHERE id = $1`

	p, err := scanPolicy(querier.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, retentionDomain.ErrPolicyNotFound
	}
	return p, err
}

// GetByName returns the policy or ErrPolicyNotFound.
func (r *PolicyRepository) GetByName(ctx context.Context, name string) (*retentionDomain.Policy, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + policyColumns + ` FROM retention_policies WHERE policy_name = $1`

	p, err := scanPolicy(querier.QueryRowContext(ctx, r.dialect.Rebind(query), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, retentionDomain.ErrPolicyNotFound
	}
	return p, err
}

// List returns policies in execution order.
func (r *PolicyRepository) List(ctx context.Context, activeOnly bool) ([]*retentionDomain.Policy, error) {
	querier := database.GetTx(ctx, r.db)

	var p database.Placeholders
	query := `SELECT ` + policyColumns + ` FROM retention_policies`
	if activeOnly {
		query += ` WHERE active = ` + p.Add(true)
	}
	query += ` ORDER BY priority ASC, created_at ASC`

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), p.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	policies := make([]*retentionDomain.Policy, 0)
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

func (r *PolicyRepository) exec(ctx context.Context, query string, args ...any) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return retentionDomain.ErrPolicyNotFound
	}
	return nil
}

// SetActive enables or disables a policy.
func (r *PolicyRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	return r.exec(ctx, `UPDATE retention_policies SET active = $1, updated_at = $2 WHERE id = $3`, active, at, id)
}

// RecordExecution stamps the run time and adds processed to the running total.
func (r *PolicyRepository) RecordExecution(ctx context.Context, id uuid.UUID, at time.Time, processed int) error {
	return r.exec(ctx,
		`UPDATE retention_policies
		 SET last_executed = $1, records_processed = records_processed + $2, updated_at = $3
		 WHERE id = $4`,
		at, processed, at, id,
	)
}
