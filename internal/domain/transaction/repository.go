package transaction

import "context"

// Repository defines store operations on local transactions. The sync
// engine only touches provider-sourced rows (RemoteID set); manual rows are
// managed elsewhere and never mutated by reconciliation.
type Repository interface {
	// GetByRemoteID returns the user's row for a remote transaction id, or
	// nil when absent. This lookup is the duplicate-prevention mechanism:
	// reconciliation calls it before every insert, even for "added" entries.
	GetByRemoteID(ctx context.Context, userID int64, remoteID string) (*Transaction, error)
	Create(ctx context.Context, params CreateParams) (*Transaction, error)
	UpdateByRemoteID(ctx context.Context, userID int64, remoteID string, params UpdateParams) error
	// DeleteByRemoteID removes the row for a removed entry; zero rows
	// affected is not an error (the user may have deleted it already).
	DeleteByRemoteID(ctx context.Context, userID int64, remoteID string) error
	CountByUserID(ctx context.Context, userID int64) (int64, error)
}
