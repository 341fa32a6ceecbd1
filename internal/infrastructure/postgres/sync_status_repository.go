package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	syncengine "finsync/internal/domain/sync"
)

// SyncStatusRepository implements sync.StatusStore for PostgreSQL. One row
// per item, overwritten on every update: clients only poll the latest state.
type SyncStatusRepository struct {
	db *DB
}

func NewSyncStatusRepository(db *DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

func (r *SyncStatusRepository) Upsert(ctx context.Context, status *syncengine.ItemStatus) error {
	query := `
		INSERT INTO sync_statuses (id, item_id, user_id, phase, progress, transaction_count, message, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			progress = EXCLUDED.progress,
			transaction_count = EXCLUDED.transaction_count,
			message = EXCLUDED.message,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), status.ItemID, status.UserID, string(status.Phase),
		status.Progress, status.TransactionCount, status.Message,
		status.StartedAt, status.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sync status: %w", err)
	}
	return nil
}

func (r *SyncStatusRepository) Get(ctx context.Context, itemID string) (*syncengine.ItemStatus, error) {
	query := `
		SELECT item_id, user_id, phase, progress, transaction_count, message, started_at, updated_at
		FROM sync_statuses
		WHERE item_id = $1
	`

	var st syncengine.ItemStatus
	var phase string
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&st.ItemID, &st.UserID, &phase, &st.Progress, &st.TransactionCount,
		&st.Message, &st.StartedAt, &st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}
	st.Phase = syncengine.Phase(phase)
	return &st, nil
}
