// Package webhook guarantees at-most-once effectful processing of inbound
// provider events. Deduplication rides on the store's uniqueness constraint
// over the provider event id; the handler itself is retried with backoff and
// exhausted retries land in a dead-letter state in the ledger.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event is the provider-agnostic inbound payload, post signature
// verification (which is the transport layer's job, not this package's).
type Event struct {
	ProviderEventID string          `json:"providerEventId"`
	Type            string          `json:"eventType"`
	SubjectID       string          `json:"itemOrSubjectId"`
	Payload         json.RawMessage `json:"payload"`
}

// ErrDuplicateEvent is returned by Repository.Insert when the provider
// event id already exists in the ledger.
var ErrDuplicateEvent = errors.New("webhook event already recorded")

// Record is one idempotency-ledger entry. It is inserted unprocessed before
// the handler runs, so a crash mid-processing still leaves auditable
// evidence the event was seen.
type Record struct {
	ID              string
	ProviderEventID string
	EventType       string
	Processed       bool
	ProcessedAt     *time.Time
	ErrorMessage    *string
	CreatedAt       time.Time
}

// Repository is the ledger's store surface.
type Repository interface {
	// GetByProviderEventID returns the ledger entry, or nil when unseen.
	GetByProviderEventID(ctx context.Context, providerEventID string) (*Record, error)
	// Insert adds an unprocessed entry; ErrDuplicateEvent on the
	// uniqueness constraint, which is the dedup mechanism under
	// concurrent deliveries.
	Insert(ctx context.Context, record *Record) error
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	// ListDeadLetters returns entries that exhausted their retries.
	ListDeadLetters(ctx context.Context, limit int) ([]*Record, error)
}
