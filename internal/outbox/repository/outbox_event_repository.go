// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/compliance/internal/database"
	"github.com/allisson/compliance/internal/outbox/domain"
)

// OutboxEventRepository handles outbox event persistence for PostgreSQL and MySQL.
type OutboxEventRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewOutboxEventRepository creates a new OutboxEventRepository
func NewOutboxEventRepository(db *sql.DB, dialect database.Dialect) *OutboxEventRepository {
	return &OutboxEventRepository{db: db, dialect: dialect}
}

// Create inserts a new outbox event
func (r *OutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, event_type, payload, status, retries, last_error, processed_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), event.ID, event.EventType, event.Payload,
		event.Status, event.Retries, event.LastError, event.ProcessedAt)

	return err
}

// GetPendingEvents locks and returns up to limit pending events. Rows locked by
// another worker are skipped, so several workers may poll concurrently.
func (r *OutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, event_type, payload, status, retries, last_error, processed_at, created_at, updated_at
			  FROM outbox_events
			  WHERE status = $1
			  ORDER BY created_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), domain.OutboxEventStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent

		err := rows.Scan(&event.ID, &event.EventType, &event.Payload, &event.Status,
			&event.Retries, &event.LastError, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Update updates an outbox event
func (r *OutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, retries = $2, last_error = $3, processed_at = $4, updated_at = NOW()
			  WHERE id = $5`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query), event.Status, event.Retries,
		event.LastError, event.ProcessedAt, event.ID)

	return err
}
