// Package sync orchestrates balance and transaction reconciliation for a
// user's connected institutions. Both operations are lock-protected end to
// end, wrap provider calls in the retry engine, and isolate per-item
// failures so a single institution can never abort the batch.
package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"finsync/internal/domain/account"
	"finsync/internal/domain/item"
	"finsync/internal/domain/provider"
	"finsync/internal/domain/retry"
	"finsync/internal/domain/synclock"
	"finsync/internal/domain/transaction"
)

// maxPages bounds the cursor walk for one item so a misbehaving provider
// response cannot loop forever.
const maxPages = 50

// CredentialDecryptor decrypts an item's stored access credential.
type CredentialDecryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// Notifier receives user-facing sync outcomes. May be nil.
type Notifier interface {
	ReconnectRequired(ctx context.Context, userID int64, institution, userMessage string)
	SyncCompleted(ctx context.Context, userID int64, added int)
}

// Result is the aggregate outcome of one sync pass across a user's items.
// Produced fresh on every invocation, never persisted.
type Result struct {
	UserID          int64
	Kind            synclock.Kind
	ItemsProcessed  int
	ItemsSucceeded  int
	ItemsFailed     int
	AccountsUpdated int
	Added           int
	Modified        int
	Removed         int
	// Skipped is true when another sync already held the lock. Not an
	// error: the caller gets a zeroed result and moves on.
	Skipped    bool
	SkipReason string
	Items      []ItemResult
	Failures   []ItemError
}

// ItemResult is the per-item detail record.
type ItemResult struct {
	ItemID          string
	Institution     string
	Succeeded       bool
	AccountsUpdated int
	Added           int
	Modified        int
	Removed         int
	Pages           int
	Error           string
}

// ItemError pairs a failed item with its recorded error.
type ItemError struct {
	ItemID string
	Error  string
}

// Service is the cursor-based sync engine.
type Service struct {
	locks       *synclock.Manager
	client      provider.Client
	itemRepo    item.Repository
	accountRepo account.Repository
	txRepo      transaction.Repository
	categorizer transaction.Categorizer
	decryptor   CredentialDecryptor
	statuses    StatusStore
	notifier    Notifier
	retryCfg    retry.Config
	now         func() time.Time
}

// NewService creates a sync engine. statuses and notifier may be nil.
func NewService(
	locks *synclock.Manager,
	client provider.Client,
	itemRepo item.Repository,
	accountRepo account.Repository,
	txRepo transaction.Repository,
	categorizer transaction.Categorizer,
	decryptor CredentialDecryptor,
	statuses StatusStore,
	notifier Notifier,
) *Service {
	return &Service{
		locks:       locks,
		client:      client,
		itemRepo:    itemRepo,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		categorizer: categorizer,
		decryptor:   decryptor,
		statuses:    statuses,
		notifier:    notifier,
		retryCfg:    retry.DefaultConfig(),
		now:         time.Now,
	}
}

// SetRetryConfig overrides the provider-call retry policy (tests).
func (s *Service) SetRetryConfig(cfg retry.Config) {
	s.retryCfg = cfg
}

// acquireOrSkip takes the (user, kind) lock. A contended lock yields a
// skipped Result and a nil release func.
func (s *Service) acquireOrSkip(ctx context.Context, userID int64, kind synclock.Kind) (*Result, func(), error) {
	acq, err := s.locks.Acquire(ctx, userID, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire %s lock: %w", kind, err)
	}
	if !acq.Acquired {
		return &Result{UserID: userID, Kind: kind, Skipped: true, SkipReason: acq.Message}, nil, nil
	}

	release := func() {
		// Release must run even when the protected operation fails, so it
		// uses a fresh context: the sync's context may already be dead.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.locks.Release(releaseCtx, acq.LockID); err != nil {
			log.Printf("User %d: failed to release %s lock: %v", userID, kind, err)
		}
	}
	return &Result{UserID: userID, Kind: kind}, release, nil
}
