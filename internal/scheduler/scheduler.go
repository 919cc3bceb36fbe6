// Package scheduler implements reminder scheduling for the duewatch platform.
//
// The ReminderScheduler resolves when a reminder should fire (entry override,
// then user default, then system fallback), translates that instant into a
// queue delay, and submits the delivery job. The CleanupService in
// maintenance.go runs the recurring retention sweeps.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"duewatch/internal/config"
	"duewatch/internal/types"
)

// JobQueue defines the queue operations the scheduler depends on. Implemented
// by queue.Queue; narrowed here so tests can substitute a fake.
type JobQueue interface {
	// Submit enqueues a reminder job to fire after delay, returning the
	// queue-assigned job ID.
	Submit(ctx context.Context, msg types.ReminderMessage, delay time.Duration, maxAttempts int) (string, error)

	// Cancel removes a pending job. A job that no longer exists is not an
	// error.
	Cancel(ctx context.Context, jobID string) error
}

// ReminderScheduler computes reminder fire times and manages the queue jobs
// that back them. It is stateless; all persistence happens in the
// orchestration layer around it.
type ReminderScheduler struct {
	queue       JobQueue
	clock       types.Clock
	defaultLead time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewReminderScheduler creates a ReminderScheduler. A nil clock falls back to
// the real clock and a nil logger to slog.Default.
func NewReminderScheduler(queue JobQueue, cfg config.NotifyConfig, clock types.Clock, logger *slog.Logger) *ReminderScheduler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	lead := cfg.DefaultLeadMinutes
	if lead <= 0 {
		lead = 30
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &ReminderScheduler{
		queue:       queue,
		clock:       clock,
		defaultLead: time.Duration(lead) * time.Minute,
		maxAttempts: attempts,
		logger:      logger,
	}
}

// CalculateScheduledTime resolves the reminder fire time for an entry.
//
// Lead-time precedence, first non-nil wins:
//  1. entry.NotificationLeadMinutes
//  2. user.DefaultNotificationLeadMinutes
//  3. the configured system default
//
// The result is the entry due date minus the resolved lead, in UTC. The
// function is pure: it never consults the current time, so callers decide
// separately whether the result is still schedulable.
func (s *ReminderScheduler) CalculateScheduledTime(entry *types.EntrySnapshot, user *types.UserSnapshot) time.Time {
	lead := s.defaultLead
	switch {
	case entry.NotificationLeadMinutes != nil:
		lead = time.Duration(*entry.NotificationLeadMinutes) * time.Minute
	case user.DefaultNotificationLeadMinutes != nil:
		lead = time.Duration(*user.DefaultNotificationLeadMinutes) * time.Minute
	}
	return entry.DueDate.UTC().Add(-lead)
}

// Schedule submits the delivery job for a notification and returns the
// queue-assigned job ID. A fire time already in the past yields a zero delay,
// so the job becomes runnable immediately rather than being rejected.
//
// A queue rejection is returned as ErrCodeSchedulingFailure; the caller owns
// the already-persisted notification record and decides how to surface the
// failure.
func (s *ReminderScheduler) Schedule(ctx context.Context, notification *types.Notification, entry *types.EntrySnapshot) (string, error) {
	msg := types.ReminderMessage{
		NotificationID: notification.ID,
		EntryID:        entry.ID,
		UserID:         notification.UserID,
		TraceID:        uuid.New().String(),
		Description:    entry.Description,
		AmountCents:    entry.AmountCents,
		EntryType:      entry.Type,
		DueDate:        entry.DueDate.UTC(),
	}

	delay := notification.ScheduledAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	jobID, err := s.queue.Submit(ctx, msg, delay, s.maxAttempts)
	if err != nil {
		s.logger.ErrorContext(ctx, "reminder job submission failed",
			"notification_id", notification.ID,
			"entry_id", entry.ID,
			"error", err,
		)
		return "", types.NewAppError(types.ErrCodeSchedulingFailure,
			"submitting reminder job", err)
	}

	s.logger.InfoContext(ctx, "reminder job scheduled",
		"notification_id", notification.ID,
		"job_id", jobID,
		"scheduled_at", notification.ScheduledAt.Format(time.RFC3339),
		"delay", delay.String(),
	)

	return jobID, nil
}

// Cancel removes the queue job backing a notification. Cancellation is best
// effort: a missing job means the worker already consumed it, and a queue
// error is logged but never propagated, so record-level cancellation always
// wins over queue state.
func (s *ReminderScheduler) Cancel(ctx context.Context, jobID string) {
	if jobID == "" {
		return
	}

	if err := s.queue.Cancel(ctx, jobID); err != nil {
		s.logger.WarnContext(ctx, "reminder job cancellation failed, record state takes precedence",
			"job_id", jobID,
			"error", err,
		)
		return
	}

	s.logger.InfoContext(ctx, "reminder job cancelled",
		"job_id", jobID,
	)
}
