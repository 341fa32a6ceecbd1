package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"finsync/internal/domain/retry"
)

// Disposition is the final outcome of one delivery.
type Disposition string

const (
	// DispositionProcessed: the handler ran and succeeded.
	DispositionProcessed Disposition = "processed"
	// DispositionAlreadyProcessed: duplicate delivery, handler not invoked.
	DispositionAlreadyProcessed Disposition = "already_processed"
	// DispositionDeadLettered: handler retries exhausted; the event stays
	// unprocessed in the ledger with its last error.
	DispositionDeadLettered Disposition = "dead_lettered"
	// DispositionIgnored: no handler registered for the event type.
	DispositionIgnored Disposition = "ignored"
)

// HandlerFunc applies one event's local-store mutation.
type HandlerFunc func(ctx context.Context, event Event) error

// Processor dispatches events to type-specific handlers with idempotency
// and bounded retries. New event types require only a Register call.
type Processor struct {
	repo     Repository
	handlers map[string]HandlerFunc
	policy   retry.Config
	now      func() time.Time
}

// NewProcessor creates a processor with the webhook retry policy
// (3 retries, 1s base delay, per-attempt timeout).
func NewProcessor(repo Repository) *Processor {
	return &Processor{
		repo:     repo,
		handlers: make(map[string]HandlerFunc),
		policy:   retry.WebhookConfig(),
		now:      time.Now,
	}
}

// SetPolicy overrides the handler retry policy (tests).
func (p *Processor) SetPolicy(cfg retry.Config) {
	p.policy = cfg
}

// Register binds a handler to an event type. Last registration wins.
func (p *Processor) Register(eventType string, handler HandlerFunc) {
	p.handlers[eventType] = handler
}

// Process runs the idempotent delivery pipeline. The returned error is
// reserved for ledger/store failures; handler failures dead-letter and
// return nil so the transport can still acknowledge the provider and avoid
// a redelivery storm.
func (p *Processor) Process(ctx context.Context, event Event) (Disposition, error) {
	if event.ProviderEventID == "" {
		return "", fmt.Errorf("event has no provider event id")
	}

	existing, err := p.repo.GetByProviderEventID(ctx, event.ProviderEventID)
	if err != nil {
		return "", fmt.Errorf("failed to look up webhook event: %w", err)
	}

	var record *Record
	switch {
	case existing != nil && existing.Processed:
		// The handler is never invoked twice for the same event id.
		log.Printf("Webhook %s (%s): duplicate delivery, already processed", event.ProviderEventID, event.Type)
		return DispositionAlreadyProcessed, nil
	case existing != nil:
		// Seen but unprocessed: a prior crash or dead-letter. Redelivery
		// gets another chance at the handler.
		record = existing
	default:
		record = &Record{
			ID:              uuid.NewString(),
			ProviderEventID: event.ProviderEventID,
			EventType:       event.Type,
			CreatedAt:       p.now(),
		}
		if err := p.repo.Insert(ctx, record); err != nil {
			if errors.Is(err, ErrDuplicateEvent) {
				// Lost the race against a concurrent delivery of the same
				// event; that delivery owns processing.
				log.Printf("Webhook %s (%s): concurrent duplicate delivery", event.ProviderEventID, event.Type)
				return DispositionAlreadyProcessed, nil
			}
			return "", fmt.Errorf("failed to record webhook event: %w", err)
		}
	}

	handler, ok := p.handlers[event.Type]
	if !ok {
		log.Printf("Webhook %s: no handler registered for type %q, acknowledging", event.ProviderEventID, event.Type)
		if err := p.repo.MarkProcessed(ctx, record.ID, p.now()); err != nil {
			return "", fmt.Errorf("failed to mark webhook event processed: %w", err)
		}
		return DispositionIgnored, nil
	}

	_, handlerErr := retry.Do(ctx, p.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, handler(ctx, event)
	}, func(attempt int, err error, delay time.Duration) {
		log.Printf("Webhook %s (%s): handler attempt %d failed (%v), retrying in %s",
			event.ProviderEventID, event.Type, attempt, err, delay)
	})

	if handlerErr != nil {
		log.Printf("Webhook %s (%s): handler retries exhausted: %v", event.ProviderEventID, event.Type, handlerErr)
		if err := p.repo.MarkFailed(ctx, record.ID, handlerErr.Error()); err != nil {
			return "", fmt.Errorf("failed to dead-letter webhook event: %w", err)
		}
		return DispositionDeadLettered, nil
	}

	if err := p.repo.MarkProcessed(ctx, record.ID, p.now()); err != nil {
		return "", fmt.Errorf("failed to mark webhook event processed: %w", err)
	}

	log.Printf("Webhook %s (%s): processed", event.ProviderEventID, event.Type)
	return DispositionProcessed, nil
}
