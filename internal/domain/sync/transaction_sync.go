package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"finsync/internal/domain/item"
	"finsync/internal/domain/provider"
	"finsync/internal/domain/retry"
	"finsync/internal/domain/synclock"
	"finsync/internal/domain/transaction"
)

// SyncUserTransactions walks the incremental transaction feed for every
// active item of the user, applying added/modified/removed diffs to the
// local store. The cursor is persisted eagerly after each page while more
// pages remain, so a crash mid-pagination resumes from the last applied
// page instead of re-walking the feed.
func (s *Service) SyncUserTransactions(ctx context.Context, userID int64) (*Result, error) {
	result, release, err := s.acquireOrSkip(ctx, userID, synclock.KindTransactionSync)
	if err != nil {
		return nil, err
	}
	if result.Skipped {
		log.Printf("User %d: transaction sync skipped: %s", userID, result.SkipReason)
		return result, nil
	}
	defer release()

	items, err := s.itemRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}

	log.Printf("User %d: syncing transactions for %d items", userID, len(items))

	for _, it := range items {
		result.ItemsProcessed++
		itemResult := s.syncItemTransactions(ctx, it)
		result.Items = append(result.Items, itemResult)
		if itemResult.Succeeded {
			result.ItemsSucceeded++
			result.Added += itemResult.Added
			result.Modified += itemResult.Modified
			result.Removed += itemResult.Removed
		} else {
			result.ItemsFailed++
			result.Failures = append(result.Failures, ItemError{ItemID: it.ID, Error: itemResult.Error})
		}
	}

	log.Printf("User %d: transaction sync complete - items=%d succeeded=%d failed=%d added=%d modified=%d removed=%d",
		userID, result.ItemsProcessed, result.ItemsSucceeded, result.ItemsFailed,
		result.Added, result.Modified, result.Removed)

	if s.notifier != nil && result.Added > 0 {
		s.notifier.SyncCompleted(ctx, userID, result.Added)
	}

	return result, nil
}

func (s *Service) syncItemTransactions(ctx context.Context, it *item.Item) ItemResult {
	res := ItemResult{ItemID: it.ID, Institution: it.InstitutionName}
	status := &ItemStatus{ItemID: it.ID, UserID: it.UserID, Phase: PhaseSyncing, StartedAt: s.now()}
	s.recordStatus(ctx, status)

	credential, err := s.decryptor.Decrypt(it.EncryptedCredential)
	if err != nil {
		res.Error = fmt.Sprintf("failed to decrypt credential: %v", err)
		s.failItemTransactions(ctx, it, status, err, res.Error)
		return res
	}

	cursor := ""
	if it.TransactionsCursor != nil {
		cursor = *it.TransactionsCursor
	}

	for page := 1; ; page++ {
		if page > maxPages {
			// Cursor up to the last applied page is already persisted, so
			// the next sync resumes instead of starting over.
			res.Error = fmt.Sprintf("pagination cap of %d pages reached, sync will resume on next run", maxPages)
			s.failItemTransactions(ctx, it, status, &provider.Error{Code: "PAGINATION_LIMIT", Message: res.Error}, res.Error)
			return res
		}

		resp, err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) (*provider.TransactionsPage, error) {
			return s.client.FetchTransactionsIncremental(ctx, credential, cursor)
		}, s.retryObserver(it.ID))
		if err != nil {
			res.Error = err.Error()
			s.failItemTransactions(ctx, it, status, err, res.Error)
			return res
		}

		if err := s.applyPage(ctx, it, resp, &res); err != nil {
			res.Error = err.Error()
			s.failItemTransactions(ctx, it, status, err, res.Error)
			return res
		}
		res.Pages = page
		cursor = resp.NextCursor

		if !resp.HasMore {
			break
		}

		// More pages remain: persist the cursor now so this page is never
		// re-applied after a crash.
		if err := s.itemRepo.UpdateCursor(ctx, it.ID, cursor); err != nil {
			res.Error = fmt.Sprintf("failed to persist cursor: %v", err)
			s.failItemTransactions(ctx, it, status, err, res.Error)
			return res
		}

		status.Progress = pageProgress(page)
		status.TransactionCount = res.Added + res.Modified + res.Removed
		status.Message = fmt.Sprintf("synced %d pages", page)
		s.recordStatus(ctx, status)
	}

	if err := s.itemRepo.UpdateCursor(ctx, it.ID, cursor); err != nil {
		res.Error = fmt.Sprintf("failed to persist final cursor: %v", err)
		s.failItemTransactions(ctx, it, status, err, res.Error)
		return res
	}
	if err := s.itemRepo.StampSynced(ctx, it.ID, s.now()); err != nil {
		log.Printf("Item %s: failed to stamp last sync: %v", it.ID, err)
	}

	res.Succeeded = true
	status.Phase = PhaseCompleted
	status.Progress = 100
	status.TransactionCount = res.Added + res.Modified + res.Removed
	status.Message = fmt.Sprintf("added %d, modified %d, removed %d", res.Added, res.Modified, res.Removed)
	s.recordStatus(ctx, status)

	log.Printf("Item %s (%s): transactions synced - pages=%d added=%d modified=%d removed=%d cursor=%q",
		it.ID, it.InstitutionName, res.Pages, res.Added, res.Modified, res.Removed, cursor)
	return res
}

// applyPage reconciles one page of diffs. Entries within a page are applied
// strictly in feed order; the three lists are disjoint by contract.
func (s *Service) applyPage(ctx context.Context, it *item.Item, page *provider.TransactionsPage, res *ItemResult) error {
	for _, remote := range page.Added {
		// Lookup-before-insert is the sole duplicate-prevention mechanism:
		// retried pages can replay an "added" entry that already landed.
		existing, err := s.txRepo.GetByRemoteID(ctx, it.UserID, remote.RemoteID)
		if err != nil {
			return fmt.Errorf("failed to look up transaction %s: %w", remote.RemoteID, err)
		}
		if existing != nil {
			if err := s.updateFromRemote(ctx, it.UserID, remote); err != nil {
				return err
			}
			res.Modified++
			continue
		}

		date, err := parseRemoteDate(remote.Date)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", remote.RemoteID, err)
		}
		_, err = s.txRepo.Create(ctx, transaction.CreateParams{
			UserID:      it.UserID,
			AccountID:   remote.RemoteAccountID,
			RemoteID:    remote.RemoteID,
			Amount:      remote.Amount,
			Description: remote.Description,
			Category:    s.categorizer.Categorize(remote.Description, remote.Category),
			Date:        date,
			Pending:     remote.Pending,
		})
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", remote.RemoteID, err)
		}
		res.Added++
	}

	for _, remote := range page.Modified {
		if err := s.updateFromRemote(ctx, it.UserID, remote); err != nil {
			return err
		}
		res.Modified++
	}

	for _, remoteID := range page.Removed {
		// Zero rows affected is fine: the user may have deleted it first.
		if err := s.txRepo.DeleteByRemoteID(ctx, it.UserID, remoteID); err != nil {
			return fmt.Errorf("failed to delete transaction %s: %w", remoteID, err)
		}
		res.Removed++
	}

	return nil
}

func (s *Service) updateFromRemote(ctx context.Context, userID int64, remote provider.RemoteTransaction) error {
	date, err := parseRemoteDate(remote.Date)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", remote.RemoteID, err)
	}
	err = s.txRepo.UpdateByRemoteID(ctx, userID, remote.RemoteID, transaction.UpdateParams{
		Amount:      remote.Amount,
		Description: remote.Description,
		Category:    s.categorizer.Categorize(remote.Description, remote.Category),
		Date:        date,
		Pending:     remote.Pending,
	})
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", remote.RemoteID, err)
	}
	return nil
}

func (s *Service) failItemTransactions(ctx context.Context, it *item.Item, status *ItemStatus, cause error, detail string) {
	s.failItem(ctx, it, cause, detail)
	if ctx.Err() == context.DeadlineExceeded {
		status.Phase = PhaseTimeout
	} else {
		status.Phase = PhaseFailed
	}
	status.Message = detail
	s.recordStatus(context.WithoutCancel(ctx), status)
}

func parseRemoteDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}

// pageProgress maps an open-ended page walk onto 0-100 without knowing the
// total; it approaches but never reaches completion until the final page.
func pageProgress(page int) int {
	p := page * 100 / maxPages
	if p > 95 {
		p = 95
	}
	if p < 5 {
		p = 5
	}
	return p
}
