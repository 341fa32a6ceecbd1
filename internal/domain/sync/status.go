package sync

import (
	"context"
	"log"
	"time"
)

// Phase is the client-visible state of one item's sync.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseSyncing   Phase = "syncing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseTimeout   Phase = "timeout"
)

// ItemStatus is the pollable progress record for one item. "Background"
// sync returns to the caller immediately; clients poll this instead of
// holding a connection open.
type ItemStatus struct {
	ItemID           string
	UserID           int64
	Phase            Phase
	Progress         int // 0-100
	TransactionCount int
	Message          string
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// StatusStore persists pollable sync statuses.
type StatusStore interface {
	Upsert(ctx context.Context, status *ItemStatus) error
	Get(ctx context.Context, itemID string) (*ItemStatus, error)
}

// recordStatus writes a status update. Status writes are observability
// only: failures are logged, never propagated into the sync outcome.
func (s *Service) recordStatus(ctx context.Context, st *ItemStatus) {
	if s.statuses == nil {
		return
	}
	st.UpdatedAt = s.now()
	if st.StartedAt.IsZero() {
		st.StartedAt = st.UpdatedAt
	}
	if err := s.statuses.Upsert(ctx, st); err != nil {
		log.Printf("Item %s: failed to record sync status: %v", st.ItemID, err)
	}
}
