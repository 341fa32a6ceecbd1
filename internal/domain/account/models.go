package account

import "time"

// Account is a local mirror of one remote account's balances. Rows are
// upserted by the balance sync; the remote account id is the natural key.
type Account struct {
	ID               string
	ItemID           string
	UserID           int64
	RemoteAccountID  string
	CurrentBalance   float64
	AvailableBalance float64
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertParams carries one balance update from the provider.
type UpsertParams struct {
	ItemID           string
	UserID           int64
	RemoteAccountID  string
	CurrentBalance   float64
	AvailableBalance float64
	Currency         string
}
