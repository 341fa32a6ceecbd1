// Package item models a user's connection to one institution: the encrypted
// access credential, the connection status, and the incremental sync cursor.
package item

import "time"

// Status is the connection lifecycle state.
type Status string

const (
	StatusActive            Status = "active"
	StatusError             Status = "error"
	StatusPendingExpiration Status = "pending_expiration"
	StatusRevoked           Status = "revoked"
)

// Item is one institution connection. TransactionsCursor is nil before the
// first transaction sync; afterwards it always points at the position after
// the last applied page.
type Item struct {
	ID                  string
	UserID              int64
	InstitutionName     string
	Status              Status
	EncryptedCredential string
	TransactionsCursor  *string
	ErrorCode           *string
	ErrorMessage        *string
	LastSyncedAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
