package transaction

import "time"

// Transaction is one local transaction row. RemoteID is nil for rows the
// user entered by hand; for provider-sourced rows it is unique per user and
// reconciliation always looks it up before inserting.
type Transaction struct {
	ID          string
	UserID      int64
	AccountID   string
	RemoteID    *string
	Amount      float64
	Description string
	Category    string
	Date        time.Time
	Pending     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateParams carries one provider-sourced insert.
type CreateParams struct {
	UserID      int64
	AccountID   string
	RemoteID    string
	Amount      float64
	Description string
	Category    string
	Date        time.Time
	Pending     bool
}

// UpdateParams carries the mutable fields updated on a modified entry.
type UpdateParams struct {
	Amount      float64
	Description string
	Category    string
	Date        time.Time
	Pending     bool
}
