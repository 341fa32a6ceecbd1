package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finsync/internal/domain/billing"
	"finsync/internal/domain/classify"
	"finsync/internal/domain/item"
	syncengine "finsync/internal/domain/sync"
)

// Aggregation provider event types.
const (
	EventTransactionsUpdated   = "transactions.updated"
	EventItemError             = "item.error"
	EventItemPendingExpiration = "item.pending_expiration"
)

// Billing provider event types.
const (
	EventSubscriptionCreated = "subscription.created"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
	EventPaymentSucceeded    = "payment.succeeded"
	EventPaymentFailed       = "payment.failed"
)

// TransactionSyncer is the slice of the sync engine the handlers need.
type TransactionSyncer interface {
	SyncUserTransactions(ctx context.Context, userID int64) (*syncengine.Result, error)
}

// Notifier is optional; nil disables pushes.
type Notifier interface {
	ReconnectRequired(ctx context.Context, userID int64, institution, userMessage string)
}

// Handlers bundles the collaborators behind the registered handler set.
type Handlers struct {
	syncer      TransactionSyncer
	itemRepo    item.Repository
	billingRepo billing.Repository
	notifier    Notifier
}

// NewHandlers creates the standard handler set. notifier may be nil.
func NewHandlers(syncer TransactionSyncer, itemRepo item.Repository, billingRepo billing.Repository, notifier Notifier) *Handlers {
	return &Handlers{syncer: syncer, itemRepo: itemRepo, billingRepo: billingRepo, notifier: notifier}
}

// RegisterAll wires every known event type into the processor.
func (h *Handlers) RegisterAll(p *Processor) {
	p.Register(EventTransactionsUpdated, h.HandleTransactionsUpdated)
	p.Register(EventItemError, h.HandleItemError)
	p.Register(EventItemPendingExpiration, h.HandleItemPendingExpiration)
	p.Register(EventSubscriptionCreated, h.HandleSubscriptionUpsert)
	p.Register(EventSubscriptionUpdated, h.HandleSubscriptionUpsert)
	p.Register(EventSubscriptionDeleted, h.HandleSubscriptionDeleted)
	p.Register(EventPaymentSucceeded, h.HandlePaymentSucceeded)
	p.Register(EventPaymentFailed, h.HandlePaymentFailed)
}

// HandleTransactionsUpdated triggers an incremental transaction sync for
// the item's owner. Lock contention inside the engine is a clean no-op.
func (h *Handlers) HandleTransactionsUpdated(ctx context.Context, event Event) error {
	it, err := h.itemRepo.GetByID(ctx, event.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to load item %s: %w", event.SubjectID, err)
	}
	if it == nil {
		return fmt.Errorf("unknown item %s", event.SubjectID)
	}

	result, err := h.syncer.SyncUserTransactions(ctx, it.UserID)
	if err != nil {
		return fmt.Errorf("transaction sync failed for user %d: %w", it.UserID, err)
	}
	// Per-item failures stay in the result; only a totally failed batch
	// fails the webhook handler.
	if result.ItemsProcessed > 0 && result.ItemsSucceeded == 0 {
		return fmt.Errorf("transaction sync failed for all %d items of user %d", result.ItemsProcessed, it.UserID)
	}
	return nil
}

type itemErrorPayload struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// HandleItemError records a provider-reported item failure (e.g. login
// became invalid between syncs) and prompts reconnection when needed.
// Transient codes leave the item's status alone so it keeps syncing once
// the institution recovers.
func (h *Handlers) HandleItemError(ctx context.Context, event Event) error {
	var payload itemErrorPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode item.error payload: %w", err)
	}

	verdict := classify.Code(payload.ErrorCode)
	if verdict.IsTransient {
		if err := h.itemRepo.RecordError(ctx, event.SubjectID, payload.ErrorCode, verdict.UserMessage); err != nil {
			return fmt.Errorf("failed to record item %s error: %w", event.SubjectID, err)
		}
		return nil
	}
	if err := h.itemRepo.MarkError(ctx, event.SubjectID, payload.ErrorCode, verdict.UserMessage); err != nil {
		return fmt.Errorf("failed to mark item %s error: %w", event.SubjectID, err)
	}

	if verdict.RequiresReconnect && h.notifier != nil {
		if it, err := h.itemRepo.GetByID(ctx, event.SubjectID); err == nil && it != nil {
			h.notifier.ReconnectRequired(ctx, it.UserID, it.InstitutionName, verdict.UserMessage)
		}
	}
	return nil
}

// HandleItemPendingExpiration flags a connection whose consent is about to
// lapse so the UI can prompt before it breaks.
func (h *Handlers) HandleItemPendingExpiration(ctx context.Context, event Event) error {
	if err := h.itemRepo.SetStatus(ctx, event.SubjectID, item.StatusPendingExpiration); err != nil {
		return fmt.Errorf("failed to set item %s pending expiration: %w", event.SubjectID, err)
	}
	if h.notifier != nil {
		if it, err := h.itemRepo.GetByID(ctx, event.SubjectID); err == nil && it != nil {
			h.notifier.ReconnectRequired(ctx, it.UserID, it.InstitutionName,
				"Your bank connection is about to expire. Please reconnect to keep syncing.")
		}
	}
	return nil
}

type subscriptionPayload struct {
	SubscriptionID   string `json:"subscription_id"`
	UserID           int64  `json:"user_id"`
	PlanID           string `json:"plan_id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"` // unix seconds, 0 when absent
}

// HandleSubscriptionUpsert applies subscription.created and
// subscription.updated to the local billing record.
func (h *Handlers) HandleSubscriptionUpsert(ctx context.Context, event Event) error {
	var payload subscriptionPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode subscription payload: %w", err)
	}
	if payload.SubscriptionID == "" {
		payload.SubscriptionID = event.SubjectID
	}

	var periodEnd *time.Time
	if payload.CurrentPeriodEnd > 0 {
		t := time.Unix(payload.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	_, err := h.billingRepo.Upsert(ctx, billing.UpsertParams{
		UserID:           payload.UserID,
		ProviderSubID:    payload.SubscriptionID,
		Status:           billing.SubscriptionStatus(payload.Status),
		PlanID:           payload.PlanID,
		CurrentPeriodEnd: periodEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert subscription %s: %w", payload.SubscriptionID, err)
	}
	return nil
}

// HandleSubscriptionDeleted removes the local record.
func (h *Handlers) HandleSubscriptionDeleted(ctx context.Context, event Event) error {
	if err := h.billingRepo.Delete(ctx, event.SubjectID); err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", event.SubjectID, err)
	}
	return nil
}

// HandlePaymentSucceeded restores an active status after payment.
func (h *Handlers) HandlePaymentSucceeded(ctx context.Context, event Event) error {
	if err := h.billingRepo.SetStatus(ctx, event.SubjectID, billing.StatusActive); err != nil {
		return fmt.Errorf("failed to mark subscription %s active: %w", event.SubjectID, err)
	}
	return nil
}

// HandlePaymentFailed marks the subscription past due.
func (h *Handlers) HandlePaymentFailed(ctx context.Context, event Event) error {
	if err := h.billingRepo.SetStatus(ctx, event.SubjectID, billing.StatusPastDue); err != nil {
		return fmt.Errorf("failed to mark subscription %s past due: %w", event.SubjectID, err)
	}
	return nil
}
