package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"finsync/internal/domain/item"
	syncengine "finsync/internal/domain/sync"
)

// BalanceSyncJob refreshes account balances for one user.
type BalanceSyncJob struct {
	userID      int64
	syncService *syncengine.Service
}

func NewBalanceSyncJob(userID int64, syncService *syncengine.Service) *BalanceSyncJob {
	return &BalanceSyncJob{userID: userID, syncService: syncService}
}

func (j *BalanceSyncJob) Execute(ctx context.Context) error {
	result, err := j.syncService.SyncAccountBalances(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("balance sync failed: %w", err)
	}
	if result.Skipped {
		// Another sync holds the lock; nothing to do this round.
		return nil
	}
	if result.ItemsFailed > 0 {
		return fmt.Errorf("balance sync completed with %d failed items", result.ItemsFailed)
	}
	return nil
}

func (j *BalanceSyncJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *BalanceSyncJob) Description() string {
	return fmt.Sprintf("Balance sync for user %d", j.userID)
}

// TransactionSyncJob walks the incremental transaction feed for one user.
type TransactionSyncJob struct {
	userID      int64
	syncService *syncengine.Service
}

func NewTransactionSyncJob(userID int64, syncService *syncengine.Service) *TransactionSyncJob {
	return &TransactionSyncJob{userID: userID, syncService: syncService}
}

func (j *TransactionSyncJob) Execute(ctx context.Context) error {
	result, err := j.syncService.SyncUserTransactions(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("transaction sync failed: %w", err)
	}
	if result.Skipped {
		return nil
	}
	if result.ItemsFailed > 0 {
		return fmt.Errorf("transaction sync completed with %d failed items", result.ItemsFailed)
	}
	log.Printf("Transaction sync for user %d: added=%d modified=%d removed=%d",
		j.userID, result.Added, result.Modified, result.Removed)
	return nil
}

func (j *TransactionSyncJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *TransactionSyncJob) Description() string {
	return fmt.Sprintf("Transaction sync for user %d", j.userID)
}

// UserSyncJob runs balance sync before transaction sync so newly-seen
// accounts exist by the time their transactions arrive.
type UserSyncJob struct {
	userID      int64
	syncService *syncengine.Service
}

func NewUserSyncJob(userID int64, syncService *syncengine.Service) *UserSyncJob {
	return &UserSyncJob{userID: userID, syncService: syncService}
}

func (j *UserSyncJob) Execute(ctx context.Context) error {
	balanceJob := NewBalanceSyncJob(j.userID, j.syncService)
	if err := balanceJob.Execute(ctx); err != nil {
		return fmt.Errorf("balance sync failed, skipping transaction sync: %w", err)
	}

	txJob := NewTransactionSyncJob(j.userID, j.syncService)
	if err := txJob.Execute(ctx); err != nil {
		return fmt.Errorf("transaction sync failed: %w", err)
	}

	return nil
}

func (j *UserSyncJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *UserSyncJob) Description() string {
	return fmt.Sprintf("Full sync (balances + transactions) for user %d", j.userID)
}

// NewSyncJobProvider builds the scheduler's job provider: one composite
// sync job per user with at least one active item.
func NewSyncJobProvider(itemRepo item.Repository, syncService *syncengine.Service) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		userIDs, err := itemRepo.ListUserIDsWithActiveItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users with active items: %w", err)
		}

		jobs := make([]Job, 0, len(userIDs))
		for _, userID := range userIDs {
			jobs = append(jobs, NewUserSyncJob(userID, syncService))
		}
		return jobs, nil
	}
}
