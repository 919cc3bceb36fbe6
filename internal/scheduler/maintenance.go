package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"duewatch/internal/types"
)

// CleanupDB defines the notification deletions needed by the CleanupService.
type CleanupDB interface {
	// DeleteCancelledBefore removes cancelled notifications created before
	// cutoff and returns the count of deleted rows. Only cancelled records
	// qualify; sent notifications are retained as delivery history.
	//
	// SQL: DELETE FROM notifications WHERE status = 'cancelled'
	//      AND created_at < $1
	DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TokenDB defines the auth token deletions needed by the CleanupService.
type TokenDB interface {
	// DeleteExpiredBefore removes auth tokens whose expiry has passed and
	// returns the count of deleted rows.
	//
	// SQL: DELETE FROM auth_tokens WHERE expires_at < $1
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int, error)
}

// CleanupService runs the recurring retention sweeps: cancelled-notification
// purging and expired-token purging. Each sweep accepts an explicit `now` so
// manual backfills and tests are deterministic.
type CleanupService struct {
	notifications CleanupDB
	tokens        TokenDB
	retention     time.Duration
	logger        *slog.Logger
}

// NewCleanupService creates a CleanupService. The retention parameter is how
// long cancelled notifications are kept before a sweep removes them.
func NewCleanupService(notifications CleanupDB, tokens TokenDB, retention time.Duration, logger *slog.Logger) *CleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{
		notifications: notifications,
		tokens:        tokens,
		retention:     retention,
		logger:        logger,
	}
}

// PurgeCancelledNotifications hard-deletes cancelled notifications older than
// the retention period. Pending and sent records are never touched.
//
// Returns the count of deleted notification records.
func (c *CleanupService) PurgeCancelledNotifications(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-c.retention)

	count, err := c.notifications.DeleteCancelledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting cancelled notifications: %w", err)
	}

	if count > 0 {
		c.logger.InfoContext(ctx, "purged cancelled notifications",
			"count", count,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}

	return count, nil
}

// PurgeExpiredTokens removes auth tokens past their expiry.
//
// Returns the count of deleted token records.
func (c *CleanupService) PurgeExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	count, err := c.tokens.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	if count > 0 {
		c.logger.InfoContext(ctx, "purged expired tokens",
			"count", count,
		)
	}

	return count, nil
}

// Sweep runs the categories selected by msg.Category (empty means all) and
// returns a per-category report. A failing category records its error in the
// report without aborting the other category.
func (c *CleanupService) Sweep(ctx context.Context, msg types.SweepMessage, now time.Time) types.CleanupReport {
	var report types.CleanupReport

	if msg.Category == "" || msg.Category == types.SweepCategoryNotifications {
		count, err := c.PurgeCancelledNotifications(ctx, now)
		if err != nil {
			c.logger.ErrorContext(ctx, "notification sweep failed",
				"error", err,
			)
			report.NotificationsError = err.Error()
		} else {
			report.NotificationsDeleted = count
		}
	}

	if msg.Category == "" || msg.Category == types.SweepCategoryTokens {
		count, err := c.PurgeExpiredTokens(ctx, now)
		if err != nil {
			c.logger.ErrorContext(ctx, "token sweep failed",
				"error", err,
			)
			report.TokensError = err.Error()
		} else {
			report.TokensDeleted = count
		}
	}

	return report
}

// SweepHandler adapts the CleanupService to the job queue's handler contract.
// Registered for the cleanup:sweep task type by cmd/cleanup-worker.
type SweepHandler struct {
	service *CleanupService
	clock   types.Clock
	logger  *slog.Logger
}

// NewSweepHandler creates a SweepHandler. A nil clock falls back to the real
// clock.
func NewSweepHandler(service *CleanupService, clock types.Clock, logger *slog.Logger) *SweepHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepHandler{
		service: service,
		clock:   clock,
		logger:  logger,
	}
}

var _ asynq.Handler = (*SweepHandler)(nil)

// ProcessTask unmarshals the sweep payload and runs the selected categories.
// A non-nil return requeues the task for retry, so a partially failed sweep
// retries as a whole; the deletions are idempotent, making the re-run safe.
func (h *SweepHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var msg types.SweepMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		// A malformed payload will never succeed; drop it instead of retrying.
		h.logger.ErrorContext(ctx, "malformed sweep payload, skipping",
			"error", err,
		)
		return fmt.Errorf("scheduler: unmarshaling sweep payload: %v: %w", err, asynq.SkipRetry)
	}

	now := msg.ReferenceTime
	if now.IsZero() {
		now = h.clock.Now()
	}

	report := h.service.Sweep(ctx, msg, now)

	h.logger.InfoContext(ctx, "cleanup sweep complete",
		"category", msg.Category,
		"notifications_deleted", report.NotificationsDeleted,
		"tokens_deleted", report.TokensDeleted,
		"failed", report.Failed(),
	)

	if report.Failed() {
		return fmt.Errorf("scheduler: sweep finished with errors: notifications=%q tokens=%q",
			report.NotificationsError, report.TokensError)
	}

	return nil
}
