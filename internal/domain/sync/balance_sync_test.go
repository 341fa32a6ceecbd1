package sync

import (
	"context"
	"testing"

	"finsync/internal/domain/account"
	"finsync/internal/domain/item"
	"finsync/internal/domain/provider"
)

func TestSyncAccountBalances(t *testing.T) {
	deps := defaultDeps()
	deps.items.ListActiveByUserIDFunc = func(ctx context.Context, userID int64) ([]*item.Item, error) {
		return []*item.Item{activeItem("item-1", 1)}, nil
	}
	deps.client.FetchBalancesFunc = func(ctx context.Context, credential string) ([]provider.Balance, error) {
		return []provider.Balance{
			{RemoteAccountID: "acc-1", Current: 100.50, Available: 90.25, Currency: "USD"},
			{RemoteAccountID: "acc-2", Current: 2000, Available: 2000, Currency: "USD"},
		}, nil
	}

	var upserts []account.UpsertParams
	deps.accounts.UpsertBalanceFunc = func(ctx context.Context, params account.UpsertParams) (*account.Account, error) {
		upserts = append(upserts, params)
		return &account.Account{}, nil
	}

	svc := newTestService(t, deps)
	result, err := svc.SyncAccountBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ItemsProcessed != 1 || result.ItemsSucceeded != 1 {
		t.Errorf("processed=%d succeeded=%d, want 1/1", result.ItemsProcessed, result.ItemsSucceeded)
	}
	if result.AccountsUpdated != 2 {
		t.Errorf("AccountsUpdated = %d, want 2", result.AccountsUpdated)
	}
	if len(upserts) != 2 {
		t.Fatalf("got %d upserts, want 2", len(upserts))
	}
	if upserts[0].RemoteAccountID != "acc-1" || upserts[0].CurrentBalance != 100.50 {
		t.Errorf("first upsert = %+v", upserts[0])
	}
	if upserts[0].ItemID != "item-1" || upserts[0].UserID != 1 {
		t.Errorf("upsert not attributed to the item: %+v", upserts[0])
	}
}

func TestBalanceSyncIsolatesItemFailures(t *testing.T) {
	deps := defaultDeps()
	deps.items.ListActiveByUserIDFunc = func(ctx context.Context, userID int64) ([]*item.Item, error) {
		return []*item.Item{
			activeItem("item-bad", 1),
			activeItem("item-good", 1),
		}, nil
	}
	deps.client.FetchBalancesFunc = func(ctx context.Context, credential string) ([]provider.Balance, error) {
		if credential == "cred-item-bad" {
			return nil, &provider.Error{Code: "ITEM_LOGIN_REQUIRED", Message: "login required"}
		}
		return []provider.Balance{{RemoteAccountID: "acc-1", Current: 10, Currency: "USD"}}, nil
	}

	var markedItem, markedCode string
	deps.items.MarkErrorFunc = func(ctx context.Context, id string, code, message string) error {
		markedItem, markedCode = id, code
		return nil
	}

	svc := newTestService(t, deps)
	result, err := svc.SyncAccountBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("one bad item must not abort the batch: %v", err)
	}

	if result.ItemsProcessed != 2 {
		t.Errorf("ItemsProcessed = %d, want 2", result.ItemsProcessed)
	}
	if result.ItemsSucceeded != 1 || result.ItemsFailed != 1 {
		t.Errorf("succeeded=%d failed=%d, want 1/1", result.ItemsSucceeded, result.ItemsFailed)
	}
	if result.ItemsSucceeded+result.ItemsFailed != result.ItemsProcessed {
		t.Error("succeeded+failed != processed")
	}
	if markedItem != "item-bad" || markedCode != "ITEM_LOGIN_REQUIRED" {
		t.Errorf("marked %s with %s, want item-bad with ITEM_LOGIN_REQUIRED", markedItem, markedCode)
	}
	if len(result.Failures) != 1 || result.Failures[0].ItemID != "item-bad" {
		t.Errorf("Failures = %+v", result.Failures)
	}
}

func TestBalanceSyncNotifiesOnReconnect(t *testing.T) {
	deps := defaultDeps()
	deps.items.ListActiveByUserIDFunc = func(ctx context.Context, userID int64) ([]*item.Item, error) {
		return []*item.Item{activeItem("item-1", 1)}, nil
	}
	deps.client.FetchBalancesFunc = func(ctx context.Context, credential string) ([]provider.Balance, error) {
		return nil, &provider.Error{Code: "INVALID_CREDENTIALS", Message: "bad creds"}
	}

	svc := newTestService(t, deps)
	if _, err := svc.SyncAccountBalances(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(deps.notifier.reconnects) != 1 {
		t.Fatalf("got %d reconnect notifications, want 1", len(deps.notifier.reconnects))
	}
	if deps.notifier.reconnects[0] != "Test Bank" {
		t.Errorf("notified institution = %q", deps.notifier.reconnects[0])
	}
}

func TestBalanceSyncTransientFailureKeepsItemSyncable(t *testing.T) {
	deps := defaultDeps()

	// Stateful item store: a marked error flips the status, and only
	// active items are listed, mirroring the real repository.
	statuses := map[string]item.Status{"item-1": item.StatusActive}
	var recordedCode string
	deps.items.ListActiveByUserIDFunc = func(ctx context.Context, userID int64) ([]*item.Item, error) {
		var items []*item.Item
		for id, status := range statuses {
			if status == item.StatusActive {
				items = append(items, activeItem(id, 1))
			}
		}
		return items, nil
	}
	deps.items.MarkErrorFunc = func(ctx context.Context, id string, code, message string) error {
		statuses[id] = item.StatusError
		return nil
	}
	deps.items.RecordErrorFunc = func(ctx context.Context, id string, code, message string) error {
		recordedCode = code
		return nil
	}

	down := true
	deps.client.FetchBalancesFunc = func(ctx context.Context, credential string) ([]provider.Balance, error) {
		if down {
			return nil, &provider.Error{Code: "INSTITUTION_DOWN", Message: "down"}
		}
		return []provider.Balance{{RemoteAccountID: "acc-1", Current: 5, Currency: "USD"}}, nil
	}

	svc := newTestService(t, deps)

	// The outage outlasts the retry budget, so this run fails the item.
	first, err := svc.SyncAccountBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ItemsProcessed != 1 || first.ItemsFailed != 1 {
		t.Fatalf("first run processed=%d failed=%d, want 1/1", first.ItemsProcessed, first.ItemsFailed)
	}
	if recordedCode != "INSTITUTION_DOWN" {
		t.Errorf("recorded code = %q, want INSTITUTION_DOWN", recordedCode)
	}
	if statuses["item-1"] != item.StatusActive {
		t.Fatalf("item status = %q after a transient failure, want active", statuses["item-1"])
	}

	// The institution recovers; the next scheduled run must pick the item
	// up again and succeed.
	down = false
	second, err := svc.SyncAccountBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ItemsProcessed != 1 || second.ItemsSucceeded != 1 {
		t.Errorf("second run processed=%d succeeded=%d, want 1/1", second.ItemsProcessed, second.ItemsSucceeded)
	}
}

func TestBalanceSyncPermanentFailureMarksItemError(t *testing.T) {
	deps := defaultDeps()

	statuses := map[string]item.Status{"item-1": item.StatusActive}
	deps.items.ListActiveByUserIDFunc = func(ctx context.Context, userID int64) ([]*item.Item, error) {
		var items []*item.Item
		for id, status := range statuses {
			if status == item.StatusActive {
				items = append(items, activeItem(id, 1))
			}
		}
		return items, nil
	}
	deps.items.MarkErrorFunc = func(ctx context.Context, id string, code, message string) error {
		statuses[id] = item.StatusError
		return nil
	}
	deps.client.FetchBalancesFunc = func(ctx context.Context, credential string) ([]provider.Balance, error) {
		return nil, &provider.Error{Code: "ITEM_LOGIN_REQUIRED", Message: "login required"}
	}

	svc := newTestService(t, deps)
	if _, err := svc.SyncAccountBalances(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if statuses["item-1"] != item.StatusError {
		t.Errorf("item status = %q, want error until the user reconnects", statuses["item-1"])
	}
}

func TestBalanceSyncRetriesTransientErrors(t *testing.T) {
	deps := defaultDeps()
	deps.items.ListActiveByUserIDFunc = func(ctx context.Context, userID int64) ([]*item.Item, error) {
		return []*item.Item{activeItem("item-1", 1)}, nil
	}

	calls := 0
	deps.client.FetchBalancesFunc = func(ctx context.Context, credential string) ([]provider.Balance, error) {
		calls++
		if calls == 1 {
			return nil, &provider.Error{Code: "INSTITUTION_DOWN", Message: "down"}
		}
		return []provider.Balance{{RemoteAccountID: "acc-1", Current: 5, Currency: "USD"}}, nil
	}

	svc := newTestService(t, deps)
	result, err := svc.SyncAccountBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 2 {
		t.Errorf("provider called %d times, want 2 (one retry)", calls)
	}
	if result.ItemsSucceeded != 1 {
		t.Errorf("ItemsSucceeded = %d, want 1 after retry", result.ItemsSucceeded)
	}
}
