// Package queue provides the asynq-backed deferred job queue used by the
// notification subsystem: reminder jobs with delay and retry, best-effort
// cancellation of pending jobs, and idempotent registration of recurring
// maintenance triggers.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"duewatch/internal/types"
)

// Task type names stored in Redis. Asynq routes tasks to handlers by these
// strings.
const (
	// TaskReminderDeliver carries a types.ReminderMessage.
	TaskReminderDeliver = "reminder:deliver"

	// TaskCleanupSweep carries a types.SweepMessage.
	TaskCleanupSweep = "cleanup:sweep"
)

// Queue names. Reminder deliveries and maintenance sweeps run on separate
// queues so a backlog of one never starves the other.
const (
	QueueReminders   = "reminders"
	QueueMaintenance = "maintenance"
)

// reminderTaskTimeout bounds a single delivery attempt.
const reminderTaskTimeout = 30 * time.Second

// NewReminderTask builds the asynq task for a scheduled reminder delivery.
// maxAttempts is the total number of delivery attempts; asynq counts retries
// after the first attempt, hence the -1 mapping.
func NewReminderTask(msg types.ReminderMessage, maxAttempts int) (*asynq.Task, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("queue: marshaling reminder message: %w", err)
	}

	return asynq.NewTask(
		TaskReminderDeliver,
		payload,
		asynq.Queue(QueueReminders),
		asynq.MaxRetry(maxAttempts-1),
		asynq.Timeout(reminderTaskTimeout),
	), nil
}

// NewSweepTask builds the asynq task for a cleanup sweep invocation.
func NewSweepTask(msg types.SweepMessage) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("queue: marshaling sweep message: %w", err)
	}

	return asynq.NewTask(
		TaskCleanupSweep,
		payload,
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(2),
	), nil
}
