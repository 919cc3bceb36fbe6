package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// NotificationStore defines the persistence contract for notification
// records. Implemented by db.NotificationRepository.
type NotificationStore interface {
	// Create persists a new notification. The caller sets Status and leaves
	// JobID nil; CreatedAt/UpdatedAt are stamped by the store.
	Create(ctx context.Context, n *Notification) error

	// GetByEntryID returns the most recent non-deleted notification for the
	// entry, or an AppError with ErrCodeNotFoundNotification.
	GetByEntryID(ctx context.Context, entryID string) (*Notification, error)

	// UpdateJobID attaches the queue job reference to a pending record.
	UpdateJobID(ctx context.Context, id string, jobID string) error

	// UpdateStatus transitions the record to the given status. Transitioning
	// to StatusSent stamps sent_at.
	UpdateStatus(ctx context.Context, id string, status NotificationStatus) error

	// DeleteCancelledBefore removes cancelled notifications older than the
	// cutoff and returns the count of deleted rows. Pending and sent records
	// are never eligible.
	DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// EntryProvider is a read-only snapshot lookup for financial entries owned
// by the external entry aggregate.
type EntryProvider interface {
	GetEntrySnapshot(ctx context.Context, entryID string) (*EntrySnapshot, error)
}

// UserProvider is a read-only snapshot lookup for user notification
// preferences owned by the external user aggregate.
type UserProvider interface {
	GetUserSnapshot(ctx context.Context, userID string) (*UserSnapshot, error)
}

// Deliverer executes a reminder delivery. Implementations must tolerate
// duplicate invocation for the same notification (at-least-once queue
// semantics); the notification ID is the natural idempotency key available
// to downstream systems.
type Deliverer interface {
	Deliver(ctx context.Context, msg ReminderMessage) (*DeliveryResult, error)
}
