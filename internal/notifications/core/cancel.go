package core

import (
	"context"
	"log/slog"

	"duewatch/internal/types"
)

// CancelService orchestrates reminder cancellation. Cancellation is
// idempotent from the caller's perspective: a missing record, a missing queue
// job, and an already-terminal record all count as success, so entry-update
// flows can call it unconditionally.
type CancelService struct {
	store     types.NotificationStore
	scheduler Scheduler
	logger    *slog.Logger
}

// NewCancelService creates a CancelService. A nil logger falls back to
// slog.Default.
func NewCancelService(store types.NotificationStore, scheduler Scheduler, logger *slog.Logger) *CancelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancelService{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CancelForEntry cancels the most recent reminder for an entry.
//
// The record is the source of truth: the queue job is removed best effort
// first, then the record transitions to cancelled. If the delivery worker
// wins the race and marks the record sent, the terminal-state conflict is
// absorbed and the call still succeeds; the user receives a reminder for an
// entry that was just settled, which is the accepted outcome of that race.
func (s *CancelService) CancelForEntry(ctx context.Context, entryID string) error {
	notification, err := s.store.GetByEntryID(ctx, entryID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundNotification) {
			// Nothing to cancel. No record means no job was ever enqueued.
			s.logger.InfoContext(ctx, "no reminder to cancel",
				"entry_id", entryID,
			)
			return nil
		}
		return err
	}

	return s.Cancel(ctx, notification)
}

// Cancel cancels a specific notification record.
func (s *CancelService) Cancel(ctx context.Context, notification *types.Notification) error {
	if notification.IsTerminal() {
		s.logger.InfoContext(ctx, "reminder already terminal, nothing to cancel",
			"notification_id", notification.ID,
			"status", string(notification.Status),
		)
		return nil
	}

	if notification.JobID != nil {
		s.scheduler.Cancel(ctx, *notification.JobID)
	}

	if err := s.store.UpdateStatus(ctx, notification.ID, types.StatusCancelled); err != nil {
		if types.IsCode(err, types.ErrCodeConflictTerminalState) {
			// Lost the race against delivery or a concurrent cancel. The
			// record settled in a terminal state either way.
			s.logger.InfoContext(ctx, "reminder reached terminal state concurrently",
				"notification_id", notification.ID,
			)
			return nil
		}
		return err
	}

	s.logger.InfoContext(ctx, "reminder cancelled",
		"notification_id", notification.ID,
		"entry_id", notification.EntryID,
	)

	return nil
}
