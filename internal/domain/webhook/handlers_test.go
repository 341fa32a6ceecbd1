package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"finsync/internal/domain/billing"
	"finsync/internal/domain/item"
	syncengine "finsync/internal/domain/sync"
)

type mockSyncer struct {
	SyncUserTransactionsFunc func(ctx context.Context, userID int64) (*syncengine.Result, error)
}

func (m *mockSyncer) SyncUserTransactions(ctx context.Context, userID int64) (*syncengine.Result, error) {
	if m.SyncUserTransactionsFunc != nil {
		return m.SyncUserTransactionsFunc(ctx, userID)
	}
	return &syncengine.Result{}, nil
}

type mockItemRepo struct {
	GetByIDFunc     func(ctx context.Context, id string) (*item.Item, error)
	MarkErrorFunc   func(ctx context.Context, id string, code, message string) error
	RecordErrorFunc func(ctx context.Context, id string, code, message string) error
	SetStatusFunc   func(ctx context.Context, id string, status item.Status) error
}

func (m *mockItemRepo) GetByID(ctx context.Context, id string) (*item.Item, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockItemRepo) ListActiveByUserID(ctx context.Context, userID int64) ([]*item.Item, error) {
	return nil, nil
}

func (m *mockItemRepo) ListUserIDsWithActiveItems(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (m *mockItemRepo) UpdateCursor(ctx context.Context, id string, cursor string) error {
	return nil
}

func (m *mockItemRepo) StampSynced(ctx context.Context, id string, at time.Time) error { return nil }

func (m *mockItemRepo) MarkError(ctx context.Context, id string, code, message string) error {
	if m.MarkErrorFunc != nil {
		return m.MarkErrorFunc(ctx, id, code, message)
	}
	return nil
}

func (m *mockItemRepo) RecordError(ctx context.Context, id string, code, message string) error {
	if m.RecordErrorFunc != nil {
		return m.RecordErrorFunc(ctx, id, code, message)
	}
	return nil
}

func (m *mockItemRepo) SetStatus(ctx context.Context, id string, status item.Status) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, id, status)
	}
	return nil
}

type mockBillingRepo struct {
	UpsertFunc    func(ctx context.Context, params billing.UpsertParams) (*billing.Subscription, error)
	SetStatusFunc func(ctx context.Context, providerSubID string, status billing.SubscriptionStatus) error
	DeleteFunc    func(ctx context.Context, providerSubID string) error
}

func (m *mockBillingRepo) Upsert(ctx context.Context, params billing.UpsertParams) (*billing.Subscription, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return &billing.Subscription{}, nil
}

func (m *mockBillingRepo) SetStatus(ctx context.Context, providerSubID string, status billing.SubscriptionStatus) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, providerSubID, status)
	}
	return nil
}

func (m *mockBillingRepo) Delete(ctx context.Context, providerSubID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, providerSubID)
	}
	return nil
}

func (m *mockBillingRepo) GetByProviderSubID(ctx context.Context, providerSubID string) (*billing.Subscription, error) {
	return nil, nil
}

type mockNotifier struct {
	reconnects []int64
}

func (m *mockNotifier) ReconnectRequired(ctx context.Context, userID int64, institution, userMessage string) {
	m.reconnects = append(m.reconnects, userID)
}

func knownItem(id string, userID int64) *item.Item {
	return &item.Item{ID: id, UserID: userID, InstitutionName: "Test Bank", Status: item.StatusActive}
}

func TestHandleTransactionsUpdated(t *testing.T) {
	var syncedUser int64
	h := NewHandlers(
		&mockSyncer{
			SyncUserTransactionsFunc: func(ctx context.Context, userID int64) (*syncengine.Result, error) {
				syncedUser = userID
				return &syncengine.Result{ItemsProcessed: 1, ItemsSucceeded: 1, Added: 3}, nil
			},
		},
		&mockItemRepo{
			GetByIDFunc: func(ctx context.Context, id string) (*item.Item, error) {
				return knownItem(id, 42), nil
			},
		},
		&mockBillingRepo{}, nil,
	)

	err := h.HandleTransactionsUpdated(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventTransactionsUpdated, SubjectID: "item-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if syncedUser != 42 {
		t.Errorf("synced user %d, want 42", syncedUser)
	}
}

func TestHandleTransactionsUpdatedUnknownItem(t *testing.T) {
	h := NewHandlers(&mockSyncer{}, &mockItemRepo{}, &mockBillingRepo{}, nil)

	err := h.HandleTransactionsUpdated(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventTransactionsUpdated, SubjectID: "nope",
	})
	if err == nil {
		t.Fatal("expected error for unknown item")
	}
}

func TestHandleTransactionsUpdatedTotalFailure(t *testing.T) {
	h := NewHandlers(
		&mockSyncer{
			SyncUserTransactionsFunc: func(ctx context.Context, userID int64) (*syncengine.Result, error) {
				return &syncengine.Result{ItemsProcessed: 2, ItemsFailed: 2}, nil
			},
		},
		&mockItemRepo{
			GetByIDFunc: func(ctx context.Context, id string) (*item.Item, error) {
				return knownItem(id, 42), nil
			},
		},
		&mockBillingRepo{}, nil,
	)

	err := h.HandleTransactionsUpdated(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventTransactionsUpdated, SubjectID: "item-1",
	})
	if err == nil {
		t.Fatal("expected error when every item failed")
	}
}

func TestHandleTransactionsUpdatedPartialFailureIsOK(t *testing.T) {
	h := NewHandlers(
		&mockSyncer{
			SyncUserTransactionsFunc: func(ctx context.Context, userID int64) (*syncengine.Result, error) {
				return &syncengine.Result{ItemsProcessed: 2, ItemsSucceeded: 1, ItemsFailed: 1}, nil
			},
		},
		&mockItemRepo{
			GetByIDFunc: func(ctx context.Context, id string) (*item.Item, error) {
				return knownItem(id, 42), nil
			},
		},
		&mockBillingRepo{}, nil,
	)

	err := h.HandleTransactionsUpdated(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventTransactionsUpdated, SubjectID: "item-1",
	})
	if err != nil {
		t.Fatalf("partial failure must not fail the handler: %v", err)
	}
}

func TestHandleItemError(t *testing.T) {
	var markedCode, markedMessage string
	notifier := &mockNotifier{}
	h := NewHandlers(&mockSyncer{},
		&mockItemRepo{
			GetByIDFunc: func(ctx context.Context, id string) (*item.Item, error) {
				return knownItem(id, 7), nil
			},
			MarkErrorFunc: func(ctx context.Context, id string, code, message string) error {
				markedCode, markedMessage = code, message
				return nil
			},
		},
		&mockBillingRepo{}, notifier,
	)

	payload, _ := json.Marshal(map[string]string{
		"error_code":    "ITEM_LOGIN_REQUIRED",
		"error_message": "login required",
	})
	err := h.HandleItemError(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventItemError, SubjectID: "item-1", Payload: payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if markedCode != "ITEM_LOGIN_REQUIRED" {
		t.Errorf("marked code = %q", markedCode)
	}
	if markedMessage == "" {
		t.Error("marked message is empty; classification did not supply a user message")
	}
	if len(notifier.reconnects) != 1 || notifier.reconnects[0] != 7 {
		t.Errorf("reconnect notifications = %v, want [7]", notifier.reconnects)
	}
}

func TestHandleItemErrorTransientDoesNotNotify(t *testing.T) {
	notifier := &mockNotifier{}
	var recordedCode string
	h := NewHandlers(&mockSyncer{},
		&mockItemRepo{
			MarkErrorFunc: func(ctx context.Context, id string, code, message string) error {
				t.Errorf("transient code %s moved item %s to error status", code, id)
				return nil
			},
			RecordErrorFunc: func(ctx context.Context, id string, code, message string) error {
				recordedCode = code
				return nil
			},
		},
		&mockBillingRepo{}, notifier,
	)

	payload, _ := json.Marshal(map[string]string{"error_code": "INSTITUTION_DOWN"})
	err := h.HandleItemError(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventItemError, SubjectID: "item-1", Payload: payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recordedCode != "INSTITUTION_DOWN" {
		t.Errorf("recorded code = %q, want INSTITUTION_DOWN", recordedCode)
	}
	if len(notifier.reconnects) != 0 {
		t.Error("transient error triggered a reconnect notification")
	}
}

func TestHandleItemPendingExpiration(t *testing.T) {
	var setStatus item.Status
	h := NewHandlers(&mockSyncer{},
		&mockItemRepo{
			SetStatusFunc: func(ctx context.Context, id string, status item.Status) error {
				setStatus = status
				return nil
			},
		},
		&mockBillingRepo{}, nil,
	)

	err := h.HandleItemPendingExpiration(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventItemPendingExpiration, SubjectID: "item-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if setStatus != item.StatusPendingExpiration {
		t.Errorf("status = %q, want pending_expiration", setStatus)
	}
}

func TestHandleSubscriptionUpsert(t *testing.T) {
	var upserted billing.UpsertParams
	h := NewHandlers(&mockSyncer{}, &mockItemRepo{},
		&mockBillingRepo{
			UpsertFunc: func(ctx context.Context, params billing.UpsertParams) (*billing.Subscription, error) {
				upserted = params
				return &billing.Subscription{}, nil
			},
		}, nil,
	)

	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(map[string]any{
		"subscription_id":    "sub-1",
		"user_id":            9,
		"plan_id":            "pro-monthly",
		"status":             "active",
		"current_period_end": periodEnd.Unix(),
	})

	err := h.HandleSubscriptionUpsert(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventSubscriptionCreated, SubjectID: "sub-1", Payload: payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if upserted.ProviderSubID != "sub-1" || upserted.UserID != 9 || upserted.PlanID != "pro-monthly" {
		t.Errorf("upserted = %+v", upserted)
	}
	if upserted.Status != billing.StatusActive {
		t.Errorf("status = %q, want active", upserted.Status)
	}
	if upserted.CurrentPeriodEnd == nil || !upserted.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("CurrentPeriodEnd = %v, want %v", upserted.CurrentPeriodEnd, periodEnd)
	}
}

func TestHandleSubscriptionUpsertFallsBackToSubjectID(t *testing.T) {
	var upserted billing.UpsertParams
	h := NewHandlers(&mockSyncer{}, &mockItemRepo{},
		&mockBillingRepo{
			UpsertFunc: func(ctx context.Context, params billing.UpsertParams) (*billing.Subscription, error) {
				upserted = params
				return &billing.Subscription{}, nil
			},
		}, nil,
	)

	payload, _ := json.Marshal(map[string]any{"user_id": 9, "status": "active"})
	err := h.HandleSubscriptionUpsert(context.Background(), Event{
		ProviderEventID: "evt-1", Type: EventSubscriptionUpdated, SubjectID: "sub-from-subject", Payload: payload,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted.ProviderSubID != "sub-from-subject" {
		t.Errorf("ProviderSubID = %q, want sub-from-subject", upserted.ProviderSubID)
	}
	if upserted.CurrentPeriodEnd != nil {
		t.Error("CurrentPeriodEnd set without a period end in the payload")
	}
}

func TestHandlePaymentEvents(t *testing.T) {
	tests := []struct {
		name       string
		handle     func(h *Handlers, ctx context.Context, event Event) error
		wantStatus billing.SubscriptionStatus
	}{
		{
			name: "payment succeeded",
			handle: func(h *Handlers, ctx context.Context, event Event) error {
				return h.HandlePaymentSucceeded(ctx, event)
			},
			wantStatus: billing.StatusActive,
		},
		{
			name: "payment failed",
			handle: func(h *Handlers, ctx context.Context, event Event) error {
				return h.HandlePaymentFailed(ctx, event)
			},
			wantStatus: billing.StatusPastDue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSub string
			var gotStatus billing.SubscriptionStatus
			h := NewHandlers(&mockSyncer{}, &mockItemRepo{},
				&mockBillingRepo{
					SetStatusFunc: func(ctx context.Context, providerSubID string, status billing.SubscriptionStatus) error {
						gotSub, gotStatus = providerSubID, status
						return nil
					},
				}, nil,
			)

			err := tt.handle(h, context.Background(), Event{ProviderEventID: "evt-1", SubjectID: "sub-1"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotSub != "sub-1" || gotStatus != tt.wantStatus {
				t.Errorf("set %q to %q, want sub-1 to %q", gotSub, gotStatus, tt.wantStatus)
			}
		})
	}
}

func TestRegisterAllCoversEveryEventType(t *testing.T) {
	p := NewProcessor(newMemLedger())
	h := NewHandlers(&mockSyncer{}, &mockItemRepo{}, &mockBillingRepo{}, nil)
	h.RegisterAll(p)

	types := []string{
		EventTransactionsUpdated,
		EventItemError,
		EventItemPendingExpiration,
		EventSubscriptionCreated,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted,
		EventPaymentSucceeded,
		EventPaymentFailed,
	}
	for _, typ := range types {
		if _, ok := p.handlers[typ]; !ok {
			t.Errorf("no handler registered for %q", typ)
		}
	}
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	deleteErr := errors.New("store down")
	h := NewHandlers(&mockSyncer{}, &mockItemRepo{},
		&mockBillingRepo{
			DeleteFunc: func(ctx context.Context, providerSubID string) error {
				if providerSubID != "sub-1" {
					t.Errorf("deleted %q, want sub-1", providerSubID)
				}
				return deleteErr
			},
		}, nil,
	)

	err := h.HandleSubscriptionDeleted(context.Background(), Event{ProviderEventID: "evt-1", SubjectID: "sub-1"})
	if !errors.Is(err, deleteErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}
