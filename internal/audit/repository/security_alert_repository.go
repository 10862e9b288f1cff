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
)

const alertColumns = `id, alert_type, severity, entity_type, entity_id, description, detected_at,
	audit_entry_ids, resolved, resolved_at, resolved_by`

// SecurityAlertRepository stores security alerts.
type SecurityAlertRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSecurityAlertRepository creates a new SecurityAlertRepository.
func NewSecurityAlertRepository(db *sql.DB, dialect database.Dialect) *SecurityAlertRepository {
	return &SecurityAlertRepository{db: db, dialect: dialect}
}

func scanAlert(row rowScanner) (*auditDomain.SecurityAlert, error) {
	var alert auditDomain.SecurityAlert
	var entryIDs []byte

	err := row.Scan(
		&alert.ID, &alert.Type, &alert.Severity, &alert.EntityType, &alert.EntityID, &alert.Description,
		&alert.DetectedAt, &entryIDs, &alert.Resolved, &alert.ResolvedAt, &alert.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(entryIDs) > 0 {
		if err := json.Unmarshal(entryIDs, &alert.AuditEntryIDs); err != nil {
			return nil, err
		}
	}
	return &alert, nil
}

// Create inserts a new alert.
func (r *SecurityAlertRepository) Create(ctx context.Context, alert *auditDomain.SecurityAlert) error {
	querier := database.GetTx(ctx, r.db)

	entryIDs, err := json.Marshal(alert.AuditEntryIDs)
	if err != nil {
		return err
	}

	query := `INSERT INTO security_alerts (` + alertColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = querier.ExecContext(ctx, r.dialect.Rebind(query),
		alert.ID, alert.Type, alert.Severity, alert.EntityType, alert.EntityID, alert.Description,
		alert.DetectedAt, string(entryIDs), alert.Resolved, alert.ResolvedAt, alert.ResolvedBy,
	)
	return err
}

// Get returns the alert or ErrAlertNotFound.
func (r *SecurityAlertRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityAlert, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + alertColumns + ` FROM security_alerts WHERE id = $1`

	alert, err := scanAlert(querier.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auditDomain.ErrAlertNotFound
	}
	return alert, err
}

// FindActive returns the most recent unresolved alert of the given type for an
// entity detected since the given time, or ErrAlertNotFound.
func (r *SecurityAlertRepository) FindActive(
	ctx context.Context,
	alertType auditDomain.AlertType,
	entityType auditDomain.EntityType,
	entityID string,
	since time.Time,
) (*auditDomain.SecurityAlert, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + alertColumns + ` FROM security_alerts
			  WHERE alert_type = $1 AND entity_type = $2 AND entity_id = $3
			    AND resolved = $4 AND detected_at >= $5
			  ORDER BY detected_at DESC LIMIT 1`

	row := querier.QueryRowContext(ctx, r.dialect.Rebind(query), alertType, entityType, entityID, false, since)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auditDomain.ErrAlertNotFound
	}
	return alert, err
}

// List returns alerts newest first, optionally filtered by resolution state.
func (r *SecurityAlertRepository) List(
	ctx context.Context,
	resolved *bool,
	offset, limit int,
) ([]*auditDomain.SecurityAlert, error) {
	querier := database.GetTx(ctx, r.db)

	ph := &database.Placeholders{}
	query := `SELECT ` + alertColumns + ` FROM security_alerts`
	if resolved != nil {
		query += ` WHERE resolved = ` + ph.Add(*resolved)
	}
	query += ` ORDER BY detected_at DESC LIMIT ` + ph.Add(limit) + ` OFFSET ` + ph.Add(offset)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), ph.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	alerts := make([]*auditDomain.SecurityAlert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// Resolve marks an alert resolved.
func (r *SecurityAlertRepository) Resolve(ctx context.Context, alert *auditDomain.SecurityAlert) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE security_alerts SET resolved = $1, resolved_at = $2, resolved_by = $3 WHERE id = $4`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), alert.Resolved, alert.ResolvedAt, alert.ResolvedBy, alert.ID)
	return err
}
