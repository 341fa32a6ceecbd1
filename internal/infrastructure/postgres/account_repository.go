package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/account"
)

// AccountRepository implements account.Repository for PostgreSQL.
type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// UpsertBalance inserts or updates the row keyed by (user_id,
// remote_account_id). Balance sync runs repeatedly, so the upsert makes it
// naturally idempotent.
func (r *AccountRepository) UpsertBalance(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
	query := `
		INSERT INTO accounts (id, item_id, user_id, remote_account_id, current_balance, available_balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, remote_account_id) DO UPDATE SET
			current_balance = EXCLUDED.current_balance,
			available_balance = EXCLUDED.available_balance,
			currency = EXCLUDED.currency,
			updated_at = NOW()
		RETURNING id, item_id, user_id, remote_account_id, current_balance, available_balance, currency, created_at, updated_at
	`

	var acc account.Account
	err := r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), params.ItemID, params.UserID, params.RemoteAccountID,
		params.CurrentBalance, params.AvailableBalance, params.Currency,
	).Scan(
		&acc.ID, &acc.ItemID, &acc.UserID, &acc.RemoteAccountID,
		&acc.CurrentBalance, &acc.AvailableBalance, &acc.Currency,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account balance: %w", err)
	}
	return &acc, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `
		SELECT id, item_id, user_id, remote_account_id, current_balance, available_balance, currency, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		var acc account.Account
		if err := rows.Scan(&acc.ID, &acc.ItemID, &acc.UserID, &acc.RemoteAccountID,
			&acc.CurrentBalance, &acc.AvailableBalance, &acc.Currency,
			&acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}
