// Package core orchestrates the notification lifecycle: creating reminders
// when a financial entry gains a due date, and cancelling them when the entry
// is settled, changed, or removed. It centralizes eligibility checks, the
// persist-then-enqueue ordering, and the retry policy shared with the
// delivery worker.
package core

import (
	"context"
	"time"

	"duewatch/internal/types"
)

// Scheduler abstracts the queue-facing scheduling operations. Implemented by
// scheduler.ReminderScheduler.
type Scheduler interface {
	// CalculateScheduledTime resolves the reminder fire time for an entry
	// using the lead-time precedence chain.
	CalculateScheduledTime(entry *types.EntrySnapshot, user *types.UserSnapshot) time.Time

	// Schedule submits the delivery job and returns the queue job ID.
	Schedule(ctx context.Context, notification *types.Notification, entry *types.EntrySnapshot) (string, error)

	// Cancel removes a queue job. Best effort; never propagates failure.
	Cancel(ctx context.Context, jobID string)
}

// RetryPolicy defines the exponential backoff parameters for delivery retries.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// ReminderRetryPolicy is the standard policy for reminder delivery: three
// total attempts with exponential backoff from a two second base.
var ReminderRetryPolicy = RetryPolicy{
	MaxAttempts:   3,
	BaseDelay:     2 * time.Second,
	MaxDelay:      1 * time.Minute,
	BackoffFactor: 2.0,
}

// CalculateNextRetry computes the delay before the next retry attempt using
// exponential backoff: delay = min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = policy.MaxDelay
	}

	return d
}

// startOfDayUTC returns midnight UTC of the day containing t.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
