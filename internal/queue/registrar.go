package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"duewatch/internal/config"
	"duewatch/internal/types"
)

// CronRegistry abstracts the asynq scheduler's registration surface for
// testability. Production code uses *asynq.Scheduler.
type CronRegistry interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (entryID string, err error)
}

// Registrar registers recurring maintenance triggers against the job queue.
// Registration is idempotent on the trigger's logical name: re-registering a
// name that is already bound is treated as success and the existing entry is
// kept.
type Registrar struct {
	registry  CronRegistry
	scheduler *asynq.Scheduler // nil when constructed with NewRegistrarWithRegistry
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string]string // logical name -> scheduler entry id
}

// NewRegistrar creates a Registrar backed by a real asynq scheduler. Cron
// expressions are evaluated in UTC. Call Run to start firing triggers.
func NewRegistrar(redisCfg config.RedisConfig, logger *slog.Logger) *Registrar {
	scheduler := asynq.NewScheduler(RedisOpt(redisCfg), &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	return &Registrar{
		registry:  scheduler,
		scheduler: scheduler,
		logger:    logger,
		entries:   make(map[string]string),
	}
}

// NewRegistrarWithRegistry creates a Registrar with an injected registry.
// Intended for tests.
func NewRegistrarWithRegistry(registry CronRegistry, logger *slog.Logger) *Registrar {
	return &Registrar{
		registry: registry,
		logger:   logger,
		entries:  make(map[string]string),
	}
}

// RegisterRecurring binds a sweep payload to a cron schedule under a logical
// trigger name. Duplicate registration of the same name succeeds without
// creating a second entry.
func (r *Registrar) RegisterRecurring(name string, cronspec string, msg types.SweepMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entryID, ok := r.entries[name]; ok {
		r.logger.Info("recurring trigger already registered",
			"trigger", name,
			"entry_id", entryID,
		)
		return nil
	}

	task, err := NewSweepTask(msg)
	if err != nil {
		return err
	}

	entryID, err := r.registry.Register(cronspec, task)
	if err != nil {
		return fmt.Errorf("queue: registering recurring trigger %q: %w", name, err)
	}

	r.entries[name] = entryID

	r.logger.Info("recurring trigger registered",
		"trigger", name,
		"cron", cronspec,
		"entry_id", entryID,
	)

	return nil
}

// Run starts the scheduler loop and blocks until shutdown. Only valid for
// registrars created with NewRegistrar.
func (r *Registrar) Run() error {
	if r.scheduler == nil {
		return fmt.Errorf("queue: registrar has no scheduler to run")
	}
	return r.scheduler.Run()
}

// Shutdown stops the scheduler loop.
func (r *Registrar) Shutdown() {
	if r.scheduler != nil {
		r.scheduler.Shutdown()
	}
}
