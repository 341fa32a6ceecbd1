// Package http exposes the inbound HTTP surface: provider webhooks, manual
// sync triggers, and sync status polling.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"finsync/internal/domain/webhook"
)

const (
	maxWebhookBodySize = 1 << 20 // 1 MiB
	signatureHeader    = "X-Webhook-Signature"
)

// WebhookHandler receives provider events, verifies their signature, and
// hands them to the idempotent processor. Signature verification lives
// here, at the transport edge; the processor never sees unverified events.
type WebhookHandler struct {
	processor      *webhook.Processor
	providerSecret string
	billingSecret  string
}

func NewWebhookHandler(processor *webhook.Processor, providerSecret, billingSecret string) *WebhookHandler {
	return &WebhookHandler{
		processor:      processor,
		providerSecret: providerSecret,
		billingSecret:  billingSecret,
	}
}

// HandleProviderWebhook handles POST /api/webhooks/provider
func (h *WebhookHandler) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.providerSecret)
}

// HandleBillingWebhook handles POST /api/webhooks/billing
func (h *WebhookHandler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.billingSecret)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, secret string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if !verifySignature(secret, body, r.Header.Get(signatureHeader)) {
		log.Printf("Webhook rejected: invalid signature from %s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event webhook.Event
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if event.ProviderEventID == "" || event.Type == "" {
		http.Error(w, "providerEventId and eventType are required", http.StatusBadRequest)
		return
	}

	disposition, err := h.processor.Process(r.Context(), event)
	if err != nil {
		// Ledger failure: the event was not durably recorded, so a 500
		// asks the provider to redeliver.
		log.Printf("Webhook %s: processing failed: %v", event.ProviderEventID, err)
		http.Error(w, "Failed to process event", http.StatusInternalServerError)
		return
	}

	// Handler failures dead-letter and still acknowledge: redelivery would
	// hit the same failure, and the ledger keeps the event for inspection.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": string(disposition),
	})
}
