package billing

import "time"

// SubscriptionStatus mirrors the billing provider's subscription lifecycle.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the local record the billing webhook handlers mutate.
type Subscription struct {
	ID               string
	UserID           int64
	ProviderSubID    string
	Status           SubscriptionStatus
	PlanID           string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertParams carries a subscription state change from a webhook event.
type UpsertParams struct {
	UserID           int64
	ProviderSubID    string
	Status           SubscriptionStatus
	PlanID           string
	CurrentPeriodEnd *time.Time
}
