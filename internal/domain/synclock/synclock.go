// Package synclock provides leased per-user sync locks. Atomicity rides on
// the store's uniqueness constraint over (user, kind): whoever inserts the
// row first holds the lock, and the lease expiry guarantees liveness when a
// holder dies without releasing.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Kind names one lockable sync operation. Locks of different kinds never
// contend with each other.
type Kind string

const (
	KindBalanceSync     Kind = "balance_sync"
	KindTransactionSync Kind = "transaction_sync"
	KindFullSync        Kind = "full_sync"
)

// DefaultLease is how long a lock protects its holder before it is
// considered abandoned and swept.
const DefaultLease = 5 * time.Minute

// ErrLockHeld is returned by Repository.Insert when an unexpired lock for
// the same (user, kind) already exists.
var ErrLockHeld = errors.New("sync lock already held")

// Lock is one held lease.
type Lock struct {
	ID         string
	UserID     int64
	Kind       Kind
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Repository is the lock store. Insert must be atomic with respect to
// concurrent inserts for the same (user, kind).
type Repository interface {
	// DeleteExpired sweeps locks whose lease passed before now.
	DeleteExpired(ctx context.Context, userID int64, kind Kind, now time.Time) error
	// Insert stores the lock, returning ErrLockHeld when an active lock
	// for the same (user, kind) exists.
	Insert(ctx context.Context, lock *Lock) error
	// Delete removes a lock by id, reporting whether a row was deleted.
	Delete(ctx context.Context, lockID string) (bool, error)
	// FindActive returns the unexpired lock for (user, kind), or nil.
	FindActive(ctx context.Context, userID int64, kind Kind, now time.Time) (*Lock, error)
}

// Acquisition is the outcome of one Acquire call. Contention is not an
// error: Acquired is false and Message explains who holds the lock.
type Acquisition struct {
	Acquired bool
	LockID   string
	Message  string
}

// Manager acquires and releases leased locks.
type Manager struct {
	repo  Repository
	lease time.Duration
	now   func() time.Time
}

func NewManager(repo Repository) *Manager {
	return NewManagerWithLease(repo, DefaultLease)
}

func NewManagerWithLease(repo Repository, lease time.Duration) *Manager {
	return &Manager{repo: repo, lease: lease, now: time.Now}
}

// Acquire sweeps expired leases for (user, kind) and then attempts the
// insert. Losing the insert race yields a non-acquired result, not an error.
func (m *Manager) Acquire(ctx context.Context, userID int64, kind Kind) (*Acquisition, error) {
	now := m.now()

	if err := m.repo.DeleteExpired(ctx, userID, kind, now); err != nil {
		return nil, fmt.Errorf("failed to sweep expired locks: %w", err)
	}

	lock := &Lock{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       kind,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.lease),
	}

	if err := m.repo.Insert(ctx, lock); err != nil {
		if errors.Is(err, ErrLockHeld) {
			return &Acquisition{Acquired: false, Message: m.contentionMessage(ctx, userID, kind)}, nil
		}
		return nil, fmt.Errorf("failed to insert lock: %w", err)
	}

	return &Acquisition{Acquired: true, LockID: lock.ID}, nil
}

// Release deletes the lock by id. Releasing an already-swept lock reports
// false without error.
func (m *Manager) Release(ctx context.Context, lockID string) (bool, error) {
	deleted, err := m.repo.Delete(ctx, lockID)
	if err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	return deleted, nil
}

// IsLocked reports whether an active lock exists for (user, kind). Expired
// leases are swept first so a stale row never reads as held.
func (m *Manager) IsLocked(ctx context.Context, userID int64, kind Kind) (bool, error) {
	now := m.now()
	if err := m.repo.DeleteExpired(ctx, userID, kind, now); err != nil {
		return false, fmt.Errorf("failed to sweep expired locks: %w", err)
	}
	lock, err := m.repo.FindActive(ctx, userID, kind, now)
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return lock != nil, nil
}

func (m *Manager) contentionMessage(ctx context.Context, userID int64, kind Kind) string {
	holder, err := m.repo.FindActive(ctx, userID, kind, m.now())
	if err != nil || holder == nil {
		if err != nil {
			log.Printf("User %d: failed to look up lock holder: %v", userID, err)
		}
		return fmt.Sprintf("another %s is already running", kind)
	}
	return fmt.Sprintf("another %s is already running (held since %s, expires %s)",
		kind, holder.AcquiredAt.Format(time.RFC3339), holder.ExpiresAt.Format(time.RFC3339))
}
