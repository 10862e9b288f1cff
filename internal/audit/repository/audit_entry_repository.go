// Package repository persists audit entries and security alerts in PostgreSQL or MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
)

const entryColumns = `id, entity_type, entity_id, action, user_id, details, ip_address, user_agent,
	occurred_at, severity, category, correlation_id, checksum, encrypted, archived_at`

// AuditEntryRepository stores audit entries.
type AuditEntryRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewAuditEntryRepository creates a new AuditEntryRepository.
func NewAuditEntryRepository(db *sql.DB, dialect database.Dialect) *AuditEntryRepository {
	return &AuditEntryRepository{db: db, dialect: dialect}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*auditDomain.AuditEntry, error) {
	var entry auditDomain.AuditEntry
	var details []byte

	err := row.Scan(
		&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action, &entry.UserID, &details,
		&entry.IPAddress, &entry.UserAgent, &entry.Timestamp, &entry.Severity, &entry.Category,
		&entry.CorrelationID, &entry.Checksum, &entry.Encrypted, &entry.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		entry.Details = details
	}
	entry.Timestamp = entry.Timestamp.UTC()
	return &entry, nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

// Create inserts a new entry.
func (r *AuditEntryRepository) Create(ctx context.Context, entry *auditDomain.AuditEntry) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO audit_entries (` + entryColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID, nullableJSON(entry.Details),
		entry.IPAddress, entry.UserAgent, entry.Timestamp, entry.Severity, entry.Category,
		entry.CorrelationID, entry.Checksum, entry.Encrypted, entry.ArchivedAt,
	)
	return err
}

// Get returns the entry or ErrEntryNotFound.
func (r *AuditEntryRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM audit_entries WHERE id = $1`

	entry, err := scanEntry(querier.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auditDomain.ErrEntryNotFound
	}
	return entry, err
}

// UpdateAnonymized persists the output of the anonymization pass: redacted details,
// no ip address or user agent, and the recomputed checksum.
func (r *AuditEntryRepository) UpdateAnonymized(ctx context.Context, entry *auditDomain.AuditEntry) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE audit_entries
			  SET details = $1, ip_address = NULL, user_agent = NULL, checksum = $2
			  WHERE id = $3`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), nullableJSON(entry.Details), entry.Checksum, entry.ID)
	return err
}

func buildWhere(filter *auditDomain.QueryFilter, ph *database.Placeholders) string {
	var conditions []string

	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = "+ph.Add(filter.EntityType))
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = "+ph.Add(filter.EntityID))
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = "+ph.Add(filter.Action))
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = "+ph.Add(filter.UserID))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = "+ph.Add(filter.Severity))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+ph.Add(filter.Category))
	}
	if filter.CorrelationID != "" {
		conditions = append(conditions, "correlation_id = "+ph.Add(filter.CorrelationID))
	}
	if filter.From != nil {
		conditions = append(conditions, "occurred_at >= "+ph.Add(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "occurred_at <= "+ph.Add(*filter.To))
	}

	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

// List returns entries matching filter, newest first.
func (r *AuditEntryRepository) List(
	ctx context.Context,
	filter *auditDomain.QueryFilter,
) ([]*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, r.db)

	ph := &database.Placeholders{}
	query := `SELECT ` + entryColumns + ` FROM audit_entries` + buildWhere(filter, ph) +
		` ORDER BY occurred_at DESC, id DESC LIMIT ` + ph.Add(filter.Limit) + ` OFFSET ` + ph.Add(filter.Offset)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), ph.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	entries := make([]*auditDomain.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of entries matching filter, ignoring pagination.
func (r *AuditEntryRepository) Count(ctx context.Context, filter *auditDomain.QueryFilter) (int, error) {
	querier := database.GetTx(ctx, r.db)

	ph := &database.Placeholders{}
	query := `SELECT COUNT(*) FROM audit_entries` + buildWhere(filter, ph)

	var count int
	err := querier.QueryRowContext(ctx, r.dialect.Rebind(query), ph.Args()...).Scan(&count)
	return count, err
}

func (r *AuditEntryRepository) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRecentIDs returns ids of entries for one entity and action since the given time.
func (r *AuditEntryRepository) ListRecentIDs(
	ctx context.Context,
	entityType auditDomain.EntityType,
	entityID string,
	action auditDomain.Action,
	since time.Time,
) ([]uuid.UUID, error) {
	query := `SELECT id FROM audit_entries
			  WHERE entity_type = $1 AND entity_id = $2 AND action = $3 AND occurred_at >= $4
			  ORDER BY occurred_at ASC`
	return r.listIDs(ctx, query, entityType, entityID, action, since)
}

// ListRecentIDsByIP returns ids of entries for an entity type and action from one
// client address since the given time.
func (r *AuditEntryRepository) ListRecentIDsByIP(
	ctx context.Context,
	entityType auditDomain.EntityType,
	action auditDomain.Action,
	ipAddress string,
	since time.Time,
) ([]uuid.UUID, error) {
	query := `SELECT id FROM audit_entries
			  WHERE entity_type = $1 AND action = $2 AND ip_address = $3 AND occurred_at >= $4
			  ORDER BY occurred_at ASC`
	return r.listIDs(ctx, query, entityType, action, ipAddress, since)
}

// FindOlderThan returns up to limit entries written before the given time that
// have not been archived yet, oldest first, starting after the cursor.
func (r *AuditEntryRepository) FindOlderThan(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, r.db)

	var p database.Placeholders
	query := `SELECT ` + entryColumns + ` FROM audit_entries
			  WHERE occurred_at < ` + p.Add(before) + ` AND archived_at IS NULL` +
		after.After(&p, "occurred_at", "id") + `
			  ORDER BY occurred_at ASC, id ASC LIMIT ` + p.Add(limit)

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), p.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	entries := make([]*auditDomain.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkArchived stamps archived_at on an entry.
func (r *AuditEntryRepository) MarkArchived(ctx context.Context, id uuid.UUID, archivedAt time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE audit_entries SET archived_at = $1 WHERE id = $2`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), archivedAt, id)
	return err
}

// Delete physically removes one entry.
func (r *AuditEntryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM audit_entries WHERE id = $1`
	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), id)
	return err
}

// CountOlderThan counts entries written before the given time.
func (r *AuditEntryRepository) CountOlderThan(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM audit_entries WHERE occurred_at < $1`

	var count int64
	err := querier.QueryRowContext(ctx, r.dialect.Rebind(query), before).Scan(&count)
	return count, err
}

// DeleteOlderThan removes entries written before the given time.
func (r *AuditEntryRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM audit_entries WHERE occurred_at < $1`

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query), before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
