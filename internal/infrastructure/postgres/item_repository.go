package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finsync/internal/domain/item"
)

// ItemRepository implements item.Repository for PostgreSQL.
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, user_id, institution_name, status, encrypted_credential,
	transactions_cursor, error_code, error_message, last_synced_at, created_at, updated_at`

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM external_items WHERE id = $1`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM external_items
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID, string(item.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := scanItemRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// ListUserIDsWithActiveItems feeds the scheduler's batch sync.
func (r *ItemRepository) ListUserIDsWithActiveItems(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM external_items WHERE status = $1 ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query, string(item.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list users with active items: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}
	return userIDs, nil
}

func (r *ItemRepository) UpdateCursor(ctx context.Context, id string, cursor string) error {
	query := `UPDATE external_items SET transactions_cursor = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, cursor); err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}
	return nil
}

// StampSynced records a successful sync and clears any error left over
// from an earlier transient failure.
func (r *ItemRepository) StampSynced(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE external_items
		SET last_synced_at = $2, error_code = NULL, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to stamp last sync: %w", err)
	}
	return nil
}

func (r *ItemRepository) MarkError(ctx context.Context, id string, code, message string) error {
	query := `
		UPDATE external_items
		SET status = $2, error_code = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, string(item.StatusError), code, message); err != nil {
		return fmt.Errorf("failed to mark item error: %w", err)
	}
	return nil
}

// RecordError keeps the item syncable: only error_code and error_message
// change, the status stays whatever it was.
func (r *ItemRepository) RecordError(ctx context.Context, id string, code, message string) error {
	query := `
		UPDATE external_items
		SET error_code = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, code, message); err != nil {
		return fmt.Errorf("failed to record item error: %w", err)
	}
	return nil
}

func (r *ItemRepository) SetStatus(ctx context.Context, id string, status item.Status) error {
	query := `UPDATE external_items SET status = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, string(status)); err != nil {
		return fmt.Errorf("failed to set item status: %w", err)
	}
	return nil
}

type itemScanner interface {
	Scan(dest ...any) error
}

func scanItem(row *tracedRow) (*item.Item, error) {
	return scanItemFrom(row)
}

func scanItemRows(rows *sql.Rows) (*item.Item, error) {
	return scanItemFrom(rows)
}

func scanItemFrom(s itemScanner) (*item.Item, error) {
	var it item.Item
	var status string
	var cursor, errorCode, errorMessage sql.NullString
	var lastSyncedAt sql.NullTime

	err := s.Scan(&it.ID, &it.UserID, &it.InstitutionName, &status, &it.EncryptedCredential,
		&cursor, &errorCode, &errorMessage, &lastSyncedAt, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	it.Status = item.Status(status)
	if cursor.Valid {
		it.TransactionsCursor = &cursor.String
	}
	if errorCode.Valid {
		it.ErrorCode = &errorCode.String
	}
	if errorMessage.Valid {
		it.ErrorMessage = &errorMessage.String
	}
	if lastSyncedAt.Valid {
		it.LastSyncedAt = &lastSyncedAt.Time
	}
	return &it, nil
}
