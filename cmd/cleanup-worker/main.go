// Package main is the entrypoint for the cleanup worker.
//
// The cleanup worker runs two cooperating pieces against the "maintenance"
// queue: a cron registrar that fires cleanup:sweep tasks on the configured
// monthly schedules, and an asynq server that consumes those tasks and
// purges cancelled notification records and expired session tokens past
// their retention windows.
//
// Startup:
//  1. Initialize the structured JSON logger.
//  2. Load configuration from the environment.
//  3. Open the PostgreSQL connection pool.
//  4. Initialize the cleanup service over the notification and token
//     repositories.
//  5. Register the notification and token sweep crons.
//  6. Run the scheduler loop and the maintenance-queue server until a
//     shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"duewatch/internal/config"
	"duewatch/internal/db"
	"duewatch/internal/queue"
	"duewatch/internal/scheduler"
	"duewatch/internal/types"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	notificationRepo := db.NewNotificationRepository(pool)
	tokenRepo := db.NewTokenRepository(pool)

	service := scheduler.NewCleanupService(
		notificationRepo,
		tokenRepo,
		cfg.Cleanup.RetentionDuration(),
		logger,
	)
	handler := scheduler.NewSweepHandler(service, types.RealClock{}, logger)

	registrar := queue.NewRegistrar(cfg.Redis, logger)
	crons := []struct {
		name     string
		cronspec string
		category string
	}{
		{"cancelled-notifications", cfg.Cleanup.NotificationCron, types.SweepCategoryNotifications},
		{"expired-tokens", cfg.Cleanup.TokenCron, types.SweepCategoryTokens},
	}
	for _, c := range crons {
		err := registrar.RegisterRecurring(c.name, c.cronspec, types.SweepMessage{
			Category: c.category,
		})
		if err != nil {
			logger.Error("failed to register recurring sweep",
				"trigger", c.name, "error", err)
			os.Exit(1)
		}
	}

	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: 1,
		Queues: map[string]int{
			queue.QueueMaintenance: 1,
		},
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Logger:          asynqLogger{logger},
	})

	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskCleanupSweep, handler)

	logger.Info("cleanup worker starting",
		"queue", queue.QueueMaintenance,
		"notification_cron", cfg.Cleanup.NotificationCron,
		"token_cron", cfg.Cleanup.TokenCron)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := registrar.Run(); err != nil {
			return fmt.Errorf("scheduler loop: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.Start(mux); err != nil {
			return fmt.Errorf("maintenance server: %w", err)
		}
		<-gctx.Done()
		srv.Stop()
		srv.Shutdown()
		registrar.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("cleanup worker terminated", "error", err)
		os.Exit(1)
	}
	logger.Info("cleanup worker stopped")
}

// parseLogLevel maps the LOG_LEVEL setting onto slog levels, defaulting to
// info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// asynqLogger adapts *slog.Logger to the asynq.Logger interface.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
