// Package config defines the global configuration structure for the duewatch
// notification workers. Configuration is loaded once at process startup and
// is immutable thereafter, following 12-Factor principles.
//
// Values are resolved from the OS environment, with a .env file as fallback.
// Any missing required value or invalid format fails the process immediately
// on startup.
package config

import (
	"time"

	"duewatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"duewatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Database DatabaseConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Notify   NotifyConfig
	Cleanup  CleanupConfig
	Email    EmailConfig
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the connection parameters for the Redis instance backing
// the job queue.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR" validate:"required,hostname_port"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// WorkerConfig holds consumer-side tuning for the delivery worker.
type WorkerConfig struct {
	// Concurrency is the number of reminder jobs the delivery worker may
	// process simultaneously.
	Concurrency int `envconfig:"WORKER_CONCURRENCY" default:"5" validate:"min=1"`

	// ShutdownTimeout bounds graceful shutdown of in-flight jobs.
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// NotifyConfig holds scheduling parameters for reminder notifications.
type NotifyConfig struct {
	// DefaultLeadMinutes is the hard-coded fallback applied when neither the
	// entry nor the user carries a lead-time preference.
	DefaultLeadMinutes int `envconfig:"NOTIFY_DEFAULT_LEAD_MINUTES" default:"30" validate:"min=1"`

	// MaxAttempts is the total delivery attempts before a job is parked in
	// the dead-letter archive.
	MaxAttempts int `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"3" validate:"min=1"`

	// RetryBaseDelay is the base of the exponential retry backoff.
	RetryBaseDelay time.Duration `envconfig:"NOTIFY_RETRY_BASE_DELAY" default:"2s"`
}

// CleanupConfig holds the recurring sweep schedules and retention thresholds.
type CleanupConfig struct {
	// NotificationRetentionDays is how long cancelled notifications are kept
	// before the sweep removes them.
	NotificationRetentionDays int `envconfig:"CLEANUP_NOTIFICATION_RETENTION_DAYS" default:"30" validate:"min=1"`

	// NotificationCron and TokenCron are standard 5-field cron expressions.
	// Defaults fire monthly at off-peak hours.
	NotificationCron string `envconfig:"CLEANUP_NOTIFICATION_CRON" default:"0 3 1 * *"`
	TokenCron        string `envconfig:"CLEANUP_TOKEN_CRON" default:"30 3 1 * *"`

	// SweepTimeout bounds a single sweep invocation.
	SweepTimeout time.Duration `envconfig:"CLEANUP_SWEEP_TIMEOUT" default:"5m"`
}

// EmailConfig holds email delivery provider credentials.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"reminders@duewatch.app"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Duewatch Reminders"`
	SendTimeout    time.Duration `envconfig:"EMAIL_SEND_TIMEOUT" default:"10s"`
}

// RetentionDuration returns the cancelled-notification retention threshold as
// a time.Duration.
func (c CleanupConfig) RetentionDuration() time.Duration {
	return time.Duration(c.NotificationRetentionDays) * 24 * time.Hour
}
