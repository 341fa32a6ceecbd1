package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"finsync/internal/domain/account"
	"finsync/internal/domain/classify"
	"finsync/internal/domain/item"
	"finsync/internal/domain/provider"
	"finsync/internal/domain/retry"
	"finsync/internal/domain/synclock"
)

// SyncAccountBalances refreshes balances for every active item of the user.
// A single institution failure never aborts the batch: the item is marked
// with its classified error and the loop continues.
func (s *Service) SyncAccountBalances(ctx context.Context, userID int64) (*Result, error) {
	result, release, err := s.acquireOrSkip(ctx, userID, synclock.KindBalanceSync)
	if err != nil {
		return nil, err
	}
	if result.Skipped {
		log.Printf("User %d: balance sync skipped: %s", userID, result.SkipReason)
		return result, nil
	}
	defer release()

	items, err := s.itemRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}

	log.Printf("User %d: syncing balances for %d items", userID, len(items))

	for _, it := range items {
		result.ItemsProcessed++
		itemResult := s.syncItemBalances(ctx, it)
		result.Items = append(result.Items, itemResult)
		if itemResult.Succeeded {
			result.ItemsSucceeded++
			result.AccountsUpdated += itemResult.AccountsUpdated
		} else {
			result.ItemsFailed++
			result.Failures = append(result.Failures, ItemError{ItemID: it.ID, Error: itemResult.Error})
		}
	}

	log.Printf("User %d: balance sync complete - items=%d succeeded=%d failed=%d accounts=%d",
		userID, result.ItemsProcessed, result.ItemsSucceeded, result.ItemsFailed, result.AccountsUpdated)

	return result, nil
}

func (s *Service) syncItemBalances(ctx context.Context, it *item.Item) ItemResult {
	res := ItemResult{ItemID: it.ID, Institution: it.InstitutionName}

	credential, err := s.decryptor.Decrypt(it.EncryptedCredential)
	if err != nil {
		res.Error = fmt.Sprintf("failed to decrypt credential: %v", err)
		s.failItem(ctx, it, err, res.Error)
		return res
	}

	balances, err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) ([]provider.Balance, error) {
		return s.client.FetchBalances(ctx, credential)
	}, s.retryObserver(it.ID))
	if err != nil {
		verdict := classify.Err(err)
		res.Error = verdict.UserMessage
		s.failItem(ctx, it, err, res.Error)
		return res
	}

	for _, bal := range balances {
		_, err := s.accountRepo.UpsertBalance(ctx, balanceParams(it, bal))
		if err != nil {
			// Store errors are not retried here; the item is marked failed
			// and the batch moves on.
			res.Error = fmt.Sprintf("failed to upsert balance for account %s: %v", bal.RemoteAccountID, err)
			s.failItem(ctx, it, err, res.Error)
			return res
		}
		res.AccountsUpdated++
	}

	if err := s.itemRepo.StampSynced(ctx, it.ID, s.now()); err != nil {
		log.Printf("Item %s: failed to stamp last sync: %v", it.ID, err)
	}

	res.Succeeded = true
	log.Printf("Item %s (%s): updated %d account balances", it.ID, it.InstitutionName, res.AccountsUpdated)
	return res
}

// failItem records a classified failure on the item and notifies the user
// when reconnection is required. Transient failures keep the item's status
// untouched so the next scheduled or webhook-triggered sync picks it up
// again; only permanent verdicts move it to error status.
func (s *Service) failItem(ctx context.Context, it *item.Item, cause error, detail string) {
	verdict := classify.Err(cause)
	code := "INTERNAL"
	var perr *provider.Error
	if errors.As(cause, &perr) {
		code = perr.Code
	}

	if verdict.IsTransient {
		if err := s.itemRepo.RecordError(ctx, it.ID, code, verdict.UserMessage); err != nil {
			log.Printf("Item %s: failed to record error: %v", it.ID, err)
		}
		log.Printf("Item %s (%s): sync failed [%s], will retry on next sync: %s",
			it.ID, it.InstitutionName, code, detail)
		return
	}

	if err := s.itemRepo.MarkError(ctx, it.ID, code, verdict.UserMessage); err != nil {
		log.Printf("Item %s: failed to mark error: %v", it.ID, err)
	}
	log.Printf("Item %s (%s): sync failed [%s]: %s", it.ID, it.InstitutionName, code, detail)

	if verdict.RequiresReconnect && s.notifier != nil {
		s.notifier.ReconnectRequired(ctx, it.UserID, it.InstitutionName, verdict.UserMessage)
	}
}

func (s *Service) retryObserver(itemID string) retry.Observer {
	return func(attempt int, err error, delay time.Duration) {
		log.Printf("Item %s: attempt %d failed (%v), retrying in %s", itemID, attempt, err, delay)
	}
}

func balanceParams(it *item.Item, bal provider.Balance) account.UpsertParams {
	return account.UpsertParams{
		ItemID:           it.ID,
		UserID:           it.UserID,
		RemoteAccountID:  bal.RemoteAccountID,
		CurrentBalance:   bal.Current,
		AvailableBalance: bal.Available,
		Currency:         bal.Currency,
	}
}
