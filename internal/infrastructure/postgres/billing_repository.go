package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/billing"
)

// BillingRepository implements billing.Repository for PostgreSQL.
type BillingRepository struct {
	db *DB
}

func NewBillingRepository(db *DB) *BillingRepository {
	return &BillingRepository{db: db}
}

const subscriptionColumns = `id, user_id, provider_subscription_id, status, plan_id, current_period_end, created_at, updated_at`

func (r *BillingRepository) Upsert(ctx context.Context, params billing.UpsertParams) (*billing.Subscription, error) {
	query := `
		INSERT INTO subscriptions (id, user_id, provider_subscription_id, status, plan_id, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_subscription_id) DO UPDATE SET
			status = EXCLUDED.status,
			plan_id = EXCLUDED.plan_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()
		RETURNING ` + subscriptionColumns

	row := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), params.UserID, params.ProviderSubID,
		string(params.Status), params.PlanID, params.CurrentPeriodEnd)

	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return sub, nil
}

func (r *BillingRepository) SetStatus(ctx context.Context, providerSubID string, status billing.SubscriptionStatus) error {
	query := `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE provider_subscription_id = $1`

	if _, err := r.db.ExecContext(ctx, query, providerSubID, string(status)); err != nil {
		return fmt.Errorf("failed to set subscription status: %w", err)
	}
	return nil
}

// Delete removes the record. Zero rows affected is tolerated.
func (r *BillingRepository) Delete(ctx context.Context, providerSubID string) error {
	query := `DELETE FROM subscriptions WHERE provider_subscription_id = $1`

	if _, err := r.db.ExecContext(ctx, query, providerSubID); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (r *BillingRepository) GetByProviderSubID(ctx context.Context, providerSubID string) (*billing.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, providerSubID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row *tracedRow) (*billing.Subscription, error) {
	var sub billing.Subscription
	var status string
	var periodEnd sql.NullTime

	err := row.Scan(&sub.ID, &sub.UserID, &sub.ProviderSubID, &status,
		&sub.PlanID, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Status = billing.SubscriptionStatus(status)
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}
