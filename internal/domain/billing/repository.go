package billing

import "context"

// Repository defines store operations on local subscription records.
// All mutations come from billing webhook handlers.
type Repository interface {
	// Upsert creates or updates the record keyed by the provider's
	// subscription id.
	Upsert(ctx context.Context, params UpsertParams) (*Subscription, error)
	// SetStatus transitions the record for one provider subscription.
	SetStatus(ctx context.Context, providerSubID string, status SubscriptionStatus) error
	// Delete removes the record when the provider reports deletion.
	// Zero rows affected is tolerated.
	Delete(ctx context.Context, providerSubID string) error
	GetByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error)
}
