package account

import "context"

// Repository defines store operations on local account balances.
type Repository interface {
	// UpsertBalance inserts or updates the balance row for a remote account.
	UpsertBalance(ctx context.Context, params UpsertParams) (*Account, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)
}
