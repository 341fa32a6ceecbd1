// Package provider defines the outbound surface towards the Open Finance
// aggregation API: the client interface the sync engine calls and the typed
// error the classifier inspects.
package provider

import (
	"context"
	"fmt"
)

// Error is a structured failure returned by the aggregation API. Code is
// the provider's machine-readable error code and drives classification.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// Balance is one account's balance snapshot from the provider.
type Balance struct {
	RemoteAccountID string
	Current         float64
	Available       float64
	Currency        string
}

// RemoteTransaction is one transaction entry from the incremental feed.
// Date is the provider's calendar date string (YYYY-MM-DD).
type RemoteTransaction struct {
	RemoteID        string
	RemoteAccountID string
	Amount          float64
	Description     string
	Category        *string
	Date            string
	Pending         bool
}

// TransactionsPage is one page of the incremental diff feed. The three
// lists are disjoint; NextCursor is valid even on the final page and must
// be persisted as the starting point for the next sync.
type TransactionsPage struct {
	Added      []RemoteTransaction
	Modified   []RemoteTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}

// Client is the aggregation API surface the sync engine depends on.
type Client interface {
	FetchBalances(ctx context.Context, credential string) ([]Balance, error)
	// FetchTransactionsIncremental returns the diff page after cursor. An
	// empty cursor requests the feed from the beginning.
	FetchTransactionsIncremental(ctx context.Context, credential, cursor string) (*TransactionsPage, error)
}
