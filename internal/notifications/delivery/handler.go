// Package delivery consumes reminder jobs from the queue and executes them.
// The handler is registered in cmd/reminder-worker for the reminder:deliver
// task type.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"duewatch/internal/types"
)

// RecordMarker is the single store operation the handler needs: transitioning
// the notification record after a delivery outcome.
type RecordMarker interface {
	UpdateStatus(ctx context.Context, id string, status types.NotificationStatus) error
}

// Handler processes reminder delivery tasks. Delivery runs at-least-once: a
// failed status update retries the whole task, so the Deliverer must tolerate
// duplicate sends for the same notification.
type Handler struct {
	records   RecordMarker
	deliverer types.Deliverer
	logger    *slog.Logger
}

// NewHandler creates a delivery Handler. A nil logger falls back to
// slog.Default.
func NewHandler(records RecordMarker, deliverer types.Deliverer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		records:   records,
		deliverer: deliverer,
		logger:    logger,
	}
}

var _ asynq.Handler = (*Handler)(nil)

// ProcessTask executes one reminder delivery attempt.
//
// Outcomes:
//   - malformed or invalid payload: dropped (retrying cannot fix it)
//   - transient delivery failure: returned as an error so the queue retries
//     with backoff; the exhausted final attempt is logged before the task is
//     parked in the archive
//   - terminal delivery failure (unknown user, blocked address): dropped
//   - success: the record transitions to sent; losing a cancellation race at
//     this point is absorbed
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var msg types.ReminderMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		h.logger.ErrorContext(ctx, "malformed reminder payload, dropping task",
			"error", err,
		)
		return fmt.Errorf("delivery: unmarshaling reminder payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := msg.Validate(); err != nil {
		h.logger.ErrorContext(ctx, "invalid reminder payload, dropping task",
			"notification_id", msg.NotificationID,
			"error", err,
		)
		return fmt.Errorf("delivery: invalid reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	if msg.TraceID != "" {
		ctx = types.WithTraceID(ctx, msg.TraceID)
	}

	result, err := h.deliverer.Deliver(ctx, msg)
	if err != nil {
		if h.finalAttempt(ctx) {
			h.logger.ErrorContext(ctx, "reminder delivery exhausted all attempts, parking in archive",
				"notification_id", msg.NotificationID,
				"entry_id", msg.EntryID,
				"user_id", msg.UserID,
				"error", err,
			)
		} else {
			h.logger.WarnContext(ctx, "reminder delivery attempt failed, will retry",
				"notification_id", msg.NotificationID,
				"error", err,
			)
		}
		return fmt.Errorf("delivery: delivering reminder %s: %w", msg.NotificationID, err)
	}

	if !result.Success {
		h.logger.ErrorContext(ctx, "reminder delivery failed terminally, dropping task",
			"notification_id", msg.NotificationID,
			"reason", result.Error,
		)
		return fmt.Errorf("delivery: terminal failure for %s: %s: %w",
			msg.NotificationID, result.Error, asynq.SkipRetry)
	}

	if err := h.records.UpdateStatus(ctx, msg.NotificationID, types.StatusSent); err != nil {
		if types.IsCode(err, types.ErrCodeConflictTerminalState) {
			// Cancelled between enqueue and delivery; the email went out but
			// the record keeps its cancelled state.
			h.logger.WarnContext(ctx, "reminder delivered but record already terminal",
				"notification_id", msg.NotificationID,
			)
			return nil
		}
		// The send succeeded but the record is still pending. Retry the task;
		// the deliverer tolerates the duplicate send.
		return fmt.Errorf("delivery: marking reminder %s sent: %w", msg.NotificationID, err)
	}

	h.logger.InfoContext(ctx, "reminder delivered",
		"notification_id", msg.NotificationID,
		"provider_message_id", result.MessageID,
	)

	return nil
}

// finalAttempt reports whether the current attempt is the last one before the
// queue parks the task.
func (h *Handler) finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}
