package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"duewatch/internal/config"
	"duewatch/internal/types"
)

// TaskEnqueuer abstracts the asynq client's enqueue operation for
// testability. Production code uses *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskRemover abstracts the asynq inspector's delete operation for
// testability. Production code uses *asynq.Inspector.
type TaskRemover interface {
	DeleteTask(queue, id string) error
}

// Queue submits deferred reminder jobs and removes pending ones. It is the
// production implementation of the job-queue contract consumed by the
// scheduler: Submit assigns delay and retry policy, Cancel is a no-op for
// jobs that no longer exist.
type Queue struct {
	client    TaskEnqueuer
	inspector TaskRemover
	logger    *slog.Logger
}

// New creates a Queue backed by a real asynq client and inspector connected
// to the given Redis instance.
func New(redisCfg config.RedisConfig, logger *slog.Logger) *Queue {
	opt := RedisOpt(redisCfg)
	return &Queue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		logger:    logger,
	}
}

// NewWithClients creates a Queue with injected enqueuer and remover.
// Intended for tests.
func NewWithClients(client TaskEnqueuer, inspector TaskRemover, logger *slog.Logger) *Queue {
	return &Queue{
		client:    client,
		inspector: inspector,
		logger:    logger,
	}
}

// RedisOpt converts the Redis configuration into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password.Unmask(),
		DB:       cfg.DB,
	}
}

// Submit enqueues a reminder job that becomes eligible after delay and is
// retried up to maxAttempts times with the server's backoff policy. Returns
// the queue-assigned job identifier.
func (q *Queue) Submit(ctx context.Context, msg types.ReminderMessage, delay time.Duration, maxAttempts int) (string, error) {
	if delay < 0 {
		delay = 0
	}

	task, err := NewReminderTask(msg, maxAttempts)
	if err != nil {
		return "", err
	}

	info, err := q.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		return "", fmt.Errorf("queue: enqueueing reminder task: %w", err)
	}

	q.logger.InfoContext(ctx, "reminder job enqueued",
		"job_id", info.ID,
		"queue", info.Queue,
		"notification_id", msg.NotificationID,
		"entry_id", msg.EntryID,
		"delay", delay.String(),
		"max_attempts", maxAttempts,
	)

	return info.ID, nil
}

// Cancel removes a pending reminder job. A job that no longer exists (already
// run, already removed, or its queue never created) is not an error.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	err := q.inspector.DeleteTask(QueueReminders, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			q.logger.InfoContext(ctx, "reminder job already gone",
				"job_id", jobID,
			)
			return nil
		}
		return fmt.Errorf("queue: deleting reminder task %s: %w", jobID, err)
	}

	q.logger.InfoContext(ctx, "reminder job removed",
		"job_id", jobID,
	)

	return nil
}
