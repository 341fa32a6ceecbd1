package main

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Webhook ingestion (signature-verified, no auth)
	mux.HandleFunc("/api/webhooks/provider", deps.WebhookHandler.HandleProviderWebhook)
	mux.HandleFunc("/api/webhooks/billing", deps.WebhookHandler.HandleBillingWebhook)

	// Manual sync trigger and status polling
	mux.HandleFunc("/api/sync", deps.SyncHandler.HandleTriggerSync)
	mux.HandleFunc("/api/sync-status/{itemID}", deps.SyncHandler.HandleSyncStatus)

	handler := middleware.Logging(middleware.CORS(mux))
	return otelhttp.NewHandler(handler, "api")
}
