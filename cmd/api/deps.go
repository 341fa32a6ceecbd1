package main

import (
	"context"
	"log"

	"finsync/internal/domain/notification"
	syncengine "finsync/internal/domain/sync"
	"finsync/internal/domain/synclock"
	"finsync/internal/domain/transaction"
	"finsync/internal/domain/webhook"
	"finsync/internal/infrastructure/crypto"
	"finsync/internal/infrastructure/firebase"
	ofclient "finsync/internal/infrastructure/openfinance"
	"finsync/internal/infrastructure/postgres"
	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/shared/config"
	"finsync/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	WebhookHandler *httphandlers.WebhookHandler
	SyncHandler    *httphandlers.SyncHandler

	// Sync engine (for the scheduler)
	SyncService *syncengine.Service
	ItemRepo    *postgres.ItemRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	cipher, err := crypto.New(cfg.Encryption.Secret, cfg.Encryption.Salt)
	if err != nil {
		return nil, err
	}

	// Repositories
	itemRepo := postgres.NewItemRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	lockRepo := postgres.NewSyncLockRepository(db)
	eventRepo := postgres.NewWebhookEventRepository(db)
	statusRepo := postgres.NewSyncStatusRepository(db)
	billingRepo := postgres.NewBillingRepository(db)
	deviceTokenRepo := postgres.NewDeviceTokenRepository(db)

	// Push notifications (optional: disabled without Firebase credentials)
	var notifier *notification.Service
	if cfg.Firebase.CredentialsFile != "" {
		fcmClient, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceTokenRepo.Deactivate)
		if err != nil {
			log.Printf("Warning: Failed to initialize Firebase, push notifications disabled: %v", err)
		} else {
			notifier = notification.NewService(deviceTokenRepo, fcmClient, messages.Defaults())
		}
	} else {
		log.Println("Firebase credentials not configured, push notifications disabled")
	}

	// Sync engine
	locks := synclock.NewManager(lockRepo)
	providerClient := ofclient.NewClient(cfg.Provider.BaseURL)
	categorizer := transaction.NewKeywordCategorizer()

	var syncNotifier syncengine.Notifier
	if notifier != nil {
		syncNotifier = notifier
	}
	syncService := syncengine.NewService(locks, providerClient, itemRepo, accountRepo,
		transactionRepo, categorizer, cipher, statusRepo, syncNotifier)

	// Webhook processing
	processor := webhook.NewProcessor(eventRepo)
	var webhookNotifier webhook.Notifier
	if notifier != nil {
		webhookNotifier = notifier
	}
	webhook.NewHandlers(syncService, itemRepo, billingRepo, webhookNotifier).RegisterAll(processor)

	return &Dependencies{
		DB:             db,
		WebhookHandler: httphandlers.NewWebhookHandler(processor, cfg.Provider.WebhookSecret, cfg.Billing.WebhookSecret),
		SyncHandler:    httphandlers.NewSyncHandler(syncService, statusRepo),
		SyncService:    syncService,
		ItemRepo:       itemRepo,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
