package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	syncengine "finsync/internal/domain/sync"
	"finsync/internal/domain/synclock"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/crypto"
	ofclient "finsync/internal/infrastructure/openfinance"
	"finsync/internal/infrastructure/postgres"
	"finsync/internal/shared/config"
	"finsync/migrations"
)

const usage = `Finsync Admin CLI - Management commands for the Finsync API

Usage:
  admin <command> [options]

Commands:
  migrate        Run database migrations (up, down, status)
  sync           Run a full sync for one or more users
  dead-letters   List webhook events that exhausted their retries

Examples:
  # Apply pending migrations
  admin migrate up

  # Show migration status
  admin migrate status

  # Sync a specific user
  admin sync --user-id=1

  # Sync multiple users
  admin sync --user-id=1,2,3

  # Sync all users with active items
  admin sync --all

  # Show the 50 most recent dead-lettered webhook events
  admin dead-letters --limit=50`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "sync":
		runSync(os.Args[2:])
	case "dead-letters":
		runDeadLetters(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func runMigrate(args []string) {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set migration dialect: %v", err)
	}

	ctx := context.Background()

	switch direction {
	case "up":
		if err := goose.UpContext(ctx, db.DB, "."); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := goose.DownContext(ctx, db.DB, "."); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rolled back one migration")
	case "status":
		if err := goose.StatusContext(ctx, db.DB, "."); err != nil {
			log.Fatalf("Status failed: %v", err)
		}
	default:
		fmt.Printf("Unknown migrate direction: %s (want up, down, or status)\n", direction)
		os.Exit(1)
	}
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	userIDStr := fs.String("user-id", "", "User ID(s) to sync (comma-separated for multiple)")
	allUsers := fs.Bool("all", false, "Sync all users with active items")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin sync --user-id=1")
		fmt.Println("  admin sync --user-id=1,2,3")
		fmt.Println("  admin sync --all --timeout=1h")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *userIDStr == "" && !*allUsers {
		fmt.Println("Error: must specify --user-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	cipher, err := crypto.New(cfg.Encryption.Secret, cfg.Encryption.Salt)
	if err != nil {
		log.Fatalf("Failed to create cipher: %v", err)
	}

	itemRepo := postgres.NewItemRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	lockRepo := postgres.NewSyncLockRepository(db)
	statusRepo := postgres.NewSyncStatusRepository(db)

	syncService := syncengine.NewService(
		synclock.NewManager(lockRepo),
		ofclient.NewClient(cfg.Provider.BaseURL),
		itemRepo, accountRepo, transactionRepo,
		transaction.NewKeywordCategorizer(),
		cipher, statusRepo, nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var userIDs []int64
	if *allUsers {
		userIDs, err = itemRepo.ListUserIDsWithActiveItems(ctx)
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		log.Printf("Found %d users with active items", len(userIDs))
	} else {
		for _, p := range strings.Split(*userIDStr, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				log.Fatalf("Invalid user ID '%s': %v", p, err)
			}
			userIDs = append(userIDs, id)
		}
	}

	if len(userIDs) == 0 {
		log.Println("No users to process")
		return
	}

	log.Printf("Starting full sync for %d user(s)", len(userIDs))
	startTime := time.Now()

	for _, userID := range userIDs {
		balances, err := syncService.SyncAccountBalances(ctx, userID)
		if err != nil {
			log.Printf("User %d: balance sync failed: %v", userID, err)
			continue
		}
		txns, err := syncService.SyncUserTransactions(ctx, userID)
		if err != nil {
			log.Printf("User %d: transaction sync failed: %v", userID, err)
			continue
		}
		printSyncResult(userID, balances, txns)
	}

	log.Printf("Sync completed in %v", time.Since(startTime))
}

func printSyncResult(userID int64, balances, txns *syncengine.Result) {
	fmt.Printf("\n=== User %d ===\n", userID)
	if balances.Skipped {
		fmt.Printf("  Balances:     skipped (%s)\n", balances.SkipReason)
	} else {
		fmt.Printf("  Accounts updated:    %d\n", balances.AccountsUpdated)
	}
	if txns.Skipped {
		fmt.Printf("  Transactions: skipped (%s)\n", txns.SkipReason)
		return
	}
	fmt.Printf("  Items processed:     %d\n", txns.ItemsProcessed)
	fmt.Printf("  Items succeeded:     %d\n", txns.ItemsSucceeded)
	fmt.Printf("  Transactions added:  %d\n", txns.Added)
	fmt.Printf("  Modified:            %d\n", txns.Modified)
	fmt.Printf("  Removed:             %d\n", txns.Removed)

	if len(txns.Failures) > 0 {
		fmt.Printf("  Failures:            %d\n", len(txns.Failures))
		for i, f := range txns.Failures {
			if i >= 5 {
				fmt.Printf("    ... and %d more failures\n", len(txns.Failures)-5)
				break
			}
			fmt.Printf("    - item %s: %s\n", f.ItemID, f.Error)
		}
	}
}

func runDeadLetters(args []string) {
	fs := flag.NewFlagSet("dead-letters", flag.ExitOnError)

	limit := fs.Int("limit", 50, "Maximum number of events to list")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	eventRepo := postgres.NewWebhookEventRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := eventRepo.ListDeadLetters(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to list dead letters: %v", err)
	}

	if len(records) == 0 {
		fmt.Println("No dead-lettered webhook events")
		return
	}

	fmt.Printf("%d dead-lettered webhook event(s):\n\n", len(records))
	for _, rec := range records {
		errMsg := ""
		if rec.ErrorMessage != nil {
			errMsg = *rec.ErrorMessage
		}
		fmt.Printf("  %s  %-30s  %s\n", rec.CreatedAt.Format(time.RFC3339), rec.EventType, rec.ProviderEventID)
		fmt.Printf("      error: %s\n", errMsg)
	}
}
