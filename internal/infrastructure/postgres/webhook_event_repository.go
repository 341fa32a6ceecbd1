package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"finsync/internal/domain/webhook"
)

// WebhookEventRepository implements webhook.Repository for PostgreSQL. The
// UNIQUE constraint on provider_event_id is the dedup mechanism under
// concurrent deliveries of the same event.
type WebhookEventRepository struct {
	db *DB
}

func NewWebhookEventRepository(db *DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) GetByProviderEventID(ctx context.Context, providerEventID string) (*webhook.Record, error) {
	query := `
		SELECT id, provider_event_id, event_type, processed, processed_at, error_message, created_at
		FROM webhook_events
		WHERE provider_event_id = $1
	`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, providerEventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return record, nil
}

func (r *WebhookEventRepository) Insert(ctx context.Context, record *webhook.Record) error {
	query := `
		INSERT INTO webhook_events (id, provider_event_id, event_type, processed, created_at)
		VALUES ($1, $2, $3, false, $4)
	`

	_, err := r.db.ExecContext(ctx, query, record.ID, record.ProviderEventID, record.EventType, record.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if asPQError(err, &pqErr) && pqErr.Code == uniqueViolation {
			return webhook.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE webhook_events SET processed = true, processed_at = $2, error_message = NULL WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `UPDATE webhook_events SET error_message = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, errorMessage); err != nil {
		return fmt.Errorf("failed to mark webhook event failed: %w", err)
	}
	return nil
}

// ListDeadLetters returns unprocessed events that recorded an error, newest
// first.
func (r *WebhookEventRepository) ListDeadLetters(ctx context.Context, limit int) ([]*webhook.Record, error) {
	query := `
		SELECT id, provider_event_id, event_type, processed, processed_at, error_message, created_at
		FROM webhook_events
		WHERE processed = false AND error_message IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var records []*webhook.Record
	for rows.Next() {
		var rec webhook.Record
		var processedAt sql.NullTime
		var errorMessage sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ProviderEventID, &rec.EventType, &rec.Processed,
			&processedAt, &errorMessage, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		if processedAt.Valid {
			rec.ProcessedAt = &processedAt.Time
		}
		if errorMessage.Valid {
			rec.ErrorMessage = &errorMessage.String
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook events: %w", err)
	}
	return records, nil
}

func scanRecord(row *tracedRow) (*webhook.Record, error) {
	var rec webhook.Record
	var processedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(&rec.ID, &rec.ProviderEventID, &rec.EventType, &rec.Processed,
		&processedAt, &errorMessage, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		rec.ProcessedAt = &processedAt.Time
	}
	if errorMessage.Valid {
		rec.ErrorMessage = &errorMessage.String
	}
	return &rec, nil
}
