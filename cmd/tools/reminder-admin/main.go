// Package main implements the reminder-admin CLI tool for invoking the
// notification lifecycle operations directly, bypassing the API surface.
//
// This tool is intended for local development, manual backfilling, and
// operational debugging. It wires the same services the workers use and
// runs a single action to completion.
//
// Usage:
//
//	go run ./cmd/tools/reminder-admin --action=create --entry=8f14e45f-...
//	go run ./cmd/tools/reminder-admin --action=cancel --entry=8f14e45f-...
//	go run ./cmd/tools/reminder-admin --action=sweep --category=notifications
//	go run ./cmd/tools/reminder-admin --action=sweep --reference-time=2026-09-01T03:00:00Z
//	go run ./cmd/tools/reminder-admin --list
//
// The tool reads its configuration from environment variables (or a .env
// file via godotenv). The sweep action runs directly against the database
// without going through the maintenance queue, so it works even when Redis
// is unreachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"duewatch/internal/config"
	"duewatch/internal/db"
	"duewatch/internal/notifications/core"
	"duewatch/internal/queue"
	"duewatch/internal/scheduler"
	"duewatch/internal/types"
)

// validActions maps each action name to a short description for --list.
var validActions = map[string]string{
	"create": "Schedule a reminder for the given entry (--entry required)",
	"cancel": "Cancel the pending reminder for the given entry (--entry required)",
	"sweep":  "Purge cancelled notifications and expired tokens past retention",
}

func main() {
	actionFlag := flag.String("action", "", "Action to execute (create, cancel, sweep)")
	entryFlag := flag.String("entry", "", "Entry ID for create/cancel actions")
	categoryFlag := flag.String("category", "", "Sweep category: notifications, tokens, or empty for all")
	refTimeFlag := flag.String("reference-time", "", "Override reference time for sweep (RFC3339)")
	listFlag := flag.Bool("list", false, "List available actions and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reminder-admin [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Invoke notification lifecycle operations directly.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nUse --list to see all available actions.\n")
	}

	flag.Parse()

	if *listFlag {
		printAvailableActions()
		return
	}

	if *actionFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --action is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if _, ok := validActions[*actionFlag]; !ok {
		fmt.Fprintf(os.Stderr, "error: unknown action %q\n\n", *actionFlag)
		printAvailableActions()
		os.Exit(1)
	}
	if (*actionFlag == "create" || *actionFlag == "cancel") && *entryFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --entry is required for action %q\n", *actionFlag)
		os.Exit(1)
	}

	var refTime time.Time
	if *refTimeFlag != "" {
		t, err := time.Parse(time.RFC3339, *refTimeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid --reference-time %q: %v\n", *refTimeFlag, err)
			fmt.Fprintf(os.Stderr, "  expected RFC3339 format, e.g., 2026-09-01T03:00:00Z\n")
			os.Exit(1)
		}
		refTime = t
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load .env file for local development (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded (this is fine in production)", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *actionFlag, *entryFlag, *categoryFlag, refTime, logger); err != nil {
		logger.Error("action failed", "action", *actionFlag, "error", err)
		os.Exit(1)
	}
}

// run wires up the database and queue dependencies the requested action
// needs, then executes it. The wiring mirrors the worker entrypoints.
func run(ctx context.Context, action, entryID, category string, refTime time.Time, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	logger.Info("database connection established")

	notificationRepo := db.NewNotificationRepository(pool)

	switch action {
	case "create":
		entryRepo := db.NewEntryRepository(pool)
		userRepo := db.NewUserRepository(pool)
		q := queue.New(cfg.Redis, logger)
		reminders := scheduler.NewReminderScheduler(q, cfg.Notify, types.RealClock{}, logger)
		svc := core.NewCreateService(notificationRepo, entryRepo, userRepo, reminders, types.RealClock{}, logger)

		notification, err := svc.CreateForEntry(ctx, entryID)
		if err != nil {
			return err
		}
		logger.Info("reminder scheduled",
			"notification_id", notification.ID,
			"entry_id", notification.EntryID,
			"scheduled_at", notification.ScheduledAt.Format(time.RFC3339),
		)
		return nil

	case "cancel":
		q := queue.New(cfg.Redis, logger)
		reminders := scheduler.NewReminderScheduler(q, cfg.Notify, types.RealClock{}, logger)
		svc := core.NewCancelService(notificationRepo, reminders, logger)

		if err := svc.CancelForEntry(ctx, entryID); err != nil {
			return err
		}
		logger.Info("reminder cancelled", "entry_id", entryID)
		return nil

	case "sweep":
		tokenRepo := db.NewTokenRepository(pool)
		svc := scheduler.NewCleanupService(notificationRepo, tokenRepo, cfg.Cleanup.RetentionDuration(), logger)

		now := time.Now().UTC()
		if !refTime.IsZero() {
			now = refTime.UTC()
		}
		msg := types.SweepMessage{Category: category}

		report := svc.Sweep(ctx, msg, now)
		logger.Info("sweep finished",
			"notifications_deleted", report.NotificationsDeleted,
			"tokens_deleted", report.TokensDeleted,
			"failed", report.Failed(),
		)
		if report.Failed() {
			return fmt.Errorf("one or more sweep categories failed")
		}
		return nil

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func printAvailableActions() {
	fmt.Println("Available actions:")
	for _, name := range []string{"create", "cancel", "sweep"} {
		fmt.Printf("  %-8s %s\n", name, validActions[name])
	}
}
