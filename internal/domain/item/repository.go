package item

import (
	"context"
	"time"
)

// Repository defines store operations on institution connections.
type Repository interface {
	// GetByID returns the item, or nil when absent.
	GetByID(ctx context.Context, id string) (*Item, error)
	ListActiveByUserID(ctx context.Context, userID int64) ([]*Item, error)
	// ListUserIDsWithActiveItems feeds the scheduler's batch sync.
	ListUserIDsWithActiveItems(ctx context.Context) ([]int64, error)
	// UpdateCursor persists the incremental sync position. Called eagerly
	// after each applied page while more pages remain.
	UpdateCursor(ctx context.Context, id string, cursor string) error
	StampSynced(ctx context.Context, id string, at time.Time) error
	// MarkError sets the error status with the provider code and the
	// user-facing message. Only permanent failures go through here; an
	// item in error status is excluded from future syncs until the user
	// reconnects.
	MarkError(ctx context.Context, id string, code, message string) error
	// RecordError stores the code and message without touching the
	// status, so the item stays eligible for the next sync. Used for
	// transient failures.
	RecordError(ctx context.Context, id string, code, message string) error
	SetStatus(ctx context.Context, id string, status Status) error
}
