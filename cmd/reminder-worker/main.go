// Package main is the entrypoint for the reminder delivery worker.
//
// The worker consumes reminder:deliver tasks from the "reminders" queue,
// resolves the recipient's current email address and preferences, renders
// the reminder email, and delivers it through SendGrid. On success the
// notification record is marked sent; transient delivery failures are
// retried with exponential backoff and terminal failures are dropped.
//
// Startup:
//  1. Initialize the structured JSON logger.
//  2. Load configuration from the environment.
//  3. Open the PostgreSQL connection pool.
//  4. Initialize the notification and user repositories.
//  5. Initialize the SendGrid client and the email sender.
//  6. Register the delivery handler and run the asynq server.
//
// The asynq server installs its own SIGINT/SIGTERM handling and drains
// in-flight jobs before exiting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"duewatch/internal/config"
	"duewatch/internal/db"
	"duewatch/internal/external"
	"duewatch/internal/notifications/core"
	"duewatch/internal/notifications/delivery"
	"duewatch/internal/notifications/email"
	"duewatch/internal/queue"
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

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	notificationRepo := db.NewNotificationRepository(pool)
	userRepo := db.NewUserRepository(pool)

	provider := external.NewSendGridClient(
		&http.Client{Timeout: cfg.Email.SendTimeout},
		external.SendGridClientConfig{
			APIKey: cfg.Email.SendGridAPIKey.Unmask(),
			Logger: logger,
		},
	)
	sender := email.NewSender(provider, userRepo, cfg.Email, logger)
	handler := delivery.NewHandler(notificationRepo, sender, logger)

	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			queue.QueueReminders: 1,
		},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return core.CalculateNextRetry(core.ReminderRetryPolicy, n)
		},
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Logger:          asynqLogger{logger},
	})

	mux := asynq.NewServeMux()
	mux.Handle(queue.TaskReminderDeliver, handler)

	logger.Info("reminder worker starting",
		"queue", queue.QueueReminders,
		"concurrency", cfg.Worker.Concurrency)

	if err := srv.Run(mux); err != nil {
		logger.Error("reminder worker terminated", "error", err)
		os.Exit(1)
	}
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

// asynqLogger adapts *slog.Logger to the asynq.Logger interface so server
// internals log through the same JSON handler as the rest of the worker.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug(sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info(sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn(sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error(sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(sprint(args...))
	os.Exit(1)
}

func sprint(args ...interface{}) string {
	return fmt.Sprint(args...)
}
