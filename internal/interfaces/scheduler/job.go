// Package scheduler runs periodic sync batches through a bounded worker
// pool. Concurrency happens across users; within one job the sync engine
// processes items sequentially, and the per-user sync locks make overlap
// between a scheduled run and a webhook-triggered run harmless.
package scheduler

import "context"

// Job is one unit of scheduled work.
type Job interface {
	Execute(ctx context.Context) error
	UserID() string
	Description() string
}
