package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"finsync/internal/domain/synclock"
)

// SyncLockRepository implements synclock.Repository for PostgreSQL. The
// UNIQUE(user_id, lock_type) constraint makes Insert the atomic
// acquisition point: concurrent acquirers race on the index, not in Go.
type SyncLockRepository struct {
	db *DB
}

func NewSyncLockRepository(db *DB) *SyncLockRepository {
	return &SyncLockRepository{db: db}
}

// DeleteExpired sweeps leases that lapsed before now.
func (r *SyncLockRepository) DeleteExpired(ctx context.Context, userID int64, kind synclock.Kind, now time.Time) error {
	query := `DELETE FROM sync_locks WHERE user_id = $1 AND lock_type = $2 AND expires_at <= $3`

	if _, err := r.db.ExecContext(ctx, query, userID, string(kind), now); err != nil {
		return fmt.Errorf("failed to delete expired locks: %w", err)
	}
	return nil
}

// Insert stores the lock. A unique-violation on (user_id, lock_type) means
// someone else holds it and maps to synclock.ErrLockHeld.
func (r *SyncLockRepository) Insert(ctx context.Context, lock *synclock.Lock) error {
	query := `
		INSERT INTO sync_locks (id, user_id, lock_type, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, lock.ID, lock.UserID, string(lock.Kind), lock.AcquiredAt, lock.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if asPQError(err, &pqErr) && pqErr.Code == uniqueViolation {
			return synclock.ErrLockHeld
		}
		return fmt.Errorf("failed to insert lock: %w", err)
	}
	return nil
}

// Delete removes a lock by id.
func (r *SyncLockRepository) Delete(ctx context.Context, lockID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE id = $1`, lockID)
	if err != nil {
		return false, fmt.Errorf("failed to delete lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// FindActive returns the unexpired lock for (user, kind), or nil.
func (r *SyncLockRepository) FindActive(ctx context.Context, userID int64, kind synclock.Kind, now time.Time) (*synclock.Lock, error) {
	query := `
		SELECT id, user_id, lock_type, acquired_at, expires_at
		FROM sync_locks
		WHERE user_id = $1 AND lock_type = $2 AND expires_at > $3
	`

	var lock synclock.Lock
	var kindStr string
	err := r.db.QueryRowContext(ctx, query, userID, string(kind), now).Scan(
		&lock.ID, &lock.UserID, &kindStr, &lock.AcquiredAt, &lock.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lock: %w", err)
	}
	lock.Kind = synclock.Kind(kindStr)
	return &lock, nil
}
