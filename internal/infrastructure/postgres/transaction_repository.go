package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/transaction"
)

// TransactionRepository implements transaction.Repository for PostgreSQL.
type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txColumns = `id, user_id, account_id, remote_transaction_id, amount, description,
	category, transaction_date, pending, created_at, updated_at`

// GetByRemoteID returns the user's row for a remote transaction id, or nil
// when absent.
func (r *TransactionRepository) GetByRemoteID(ctx context.Context, userID int64, remoteID string) (*transaction.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM local_transactions
		WHERE user_id = $1 AND remote_transaction_id = $2`

	var tx transaction.Transaction
	var rid sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID, remoteID).Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &rid, &tx.Amount, &tx.Description,
		&tx.Category, &tx.Date, &tx.Pending, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if rid.Valid {
		tx.RemoteID = &rid.String
	}
	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO local_transactions (id, user_id, account_id, remote_transaction_id, amount, description, category, transaction_date, pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + txColumns

	var tx transaction.Transaction
	var rid sql.NullString
	err := r.db.QueryRowContext(
		ctx, query,
		uuid.NewString(), params.UserID, params.AccountID, params.RemoteID,
		params.Amount, params.Description, params.Category, params.Date, params.Pending,
	).Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &rid, &tx.Amount, &tx.Description,
		&tx.Category, &tx.Date, &tx.Pending, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if rid.Valid {
		tx.RemoteID = &rid.String
	}
	return &tx, nil
}

func (r *TransactionRepository) UpdateByRemoteID(ctx context.Context, userID int64, remoteID string, params transaction.UpdateParams) error {
	query := `
		UPDATE local_transactions
		SET amount = $3, description = $4, category = $5, transaction_date = $6, pending = $7, updated_at = NOW()
		WHERE user_id = $1 AND remote_transaction_id = $2
	`

	_, err := r.db.ExecContext(ctx, query, userID, remoteID,
		params.Amount, params.Description, params.Category, params.Date, params.Pending)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// DeleteByRemoteID removes the row. Zero rows affected is not an error.
func (r *TransactionRepository) DeleteByRemoteID(ctx context.Context, userID int64, remoteID string) error {
	query := `DELETE FROM local_transactions WHERE user_id = $1 AND remote_transaction_id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, remoteID); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM local_transactions WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
