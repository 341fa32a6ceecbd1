package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	syncengine "finsync/internal/domain/sync"
)

const backgroundSyncTimeout = 4 * time.Minute

// SyncHandler exposes manual sync triggers and status polling.
type SyncHandler struct {
	syncService *syncengine.Service
	statuses    syncengine.StatusStore
}

func NewSyncHandler(syncService *syncengine.Service, statuses syncengine.StatusStore) *SyncHandler {
	return &SyncHandler{syncService: syncService, statuses: statuses}
}

type TriggerSyncRequest struct {
	UserID int64  `json:"user_id"`
	Type   string `json:"type"` // "balances", "transactions", or "full"
}

type SyncStatusResponse struct {
	ItemID                 string `json:"item_id"`
	Phase                  string `json:"phase"`
	Progress               int    `json:"progress"`
	TransactionCount       int    `json:"transaction_count"`
	Message                string `json:"message,omitempty"`
	EstimatedTimeRemaining *int   `json:"estimated_time_remaining_seconds,omitempty"`
}

// HandleTriggerSync handles POST /api/sync. The sync runs in the
// background; the caller gets 202 immediately and polls the status
// endpoint. Lock contention inside the engine makes double-triggers safe.
func (h *SyncHandler) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	var req TriggerSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "", "full", "balances", "transactions":
	default:
		http.Error(w, "type must be one of: balances, transactions, full", http.StatusBadRequest)
		return
	}

	// Detached from the request context: the sync outlives the response.
	go h.runSync(req.UserID, req.Type)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "sync started",
	})
}

func (h *SyncHandler) runSync(userID int64, syncType string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundSyncTimeout)
	defer cancel()

	var err error
	switch syncType {
	case "balances":
		_, err = h.syncService.SyncAccountBalances(ctx, userID)
	case "transactions":
		_, err = h.syncService.SyncUserTransactions(ctx, userID)
	default:
		if _, err = h.syncService.SyncAccountBalances(ctx, userID); err == nil {
			_, err = h.syncService.SyncUserTransactions(ctx, userID)
		}
	}
	if err != nil {
		log.Printf("Background sync for user %d failed: %v", userID, err)
	}
}

// HandleSyncStatus handles GET /api/sync-status/{itemID}
func (h *SyncHandler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID := r.PathValue("itemID")
	if itemID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	status, err := h.statuses.Get(r.Context(), itemID)
	if err != nil {
		log.Printf("Failed to get sync status for item %s: %v", itemID, err)
		http.Error(w, "Failed to get sync status", http.StatusInternalServerError)
		return
	}
	if status == nil {
		http.Error(w, "No sync status for item", http.StatusNotFound)
		return
	}

	resp := SyncStatusResponse{
		ItemID:           status.ItemID,
		Phase:            string(status.Phase),
		Progress:         status.Progress,
		TransactionCount: status.TransactionCount,
		Message:          status.Message,
	}
	if status.Phase == syncengine.PhaseSyncing {
		if est := estimateRemaining(status, time.Now()); est >= 0 {
			resp.EstimatedTimeRemaining = &est
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// estimateRemaining extrapolates from elapsed time and progress. Returns -1
// when progress is too early to extrapolate from.
func estimateRemaining(status *syncengine.ItemStatus, now time.Time) int {
	if status.Progress <= 0 {
		return -1
	}
	elapsed := now.Sub(status.StartedAt)
	if elapsed <= 0 {
		return -1
	}
	total := elapsed * time.Duration(100) / time.Duration(status.Progress)
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining.Seconds())
}
