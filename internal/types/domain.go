package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is the core domain entity representing a scheduled reminder
// for a financial entry. It is created in StatusPending and transitions to
// exactly one of the terminal states (StatusSent, StatusCancelled); no
// transition ever leaves a terminal state.
type Notification struct {
	ID      string `json:"id" db:"id"`
	EntryID string `json:"entry_id" db:"entry_id"`
	UserID  string `json:"user_id" db:"user_id"`

	// ScheduledAt is the instant the reminder should fire:
	// entry due date minus the resolved lead time.
	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`

	Status NotificationStatus `json:"status" db:"status"`

	// JobID references the queue job backing this notification. It is nil
	// until the job has been successfully enqueued and is set exactly once.
	JobID *string `json:"job_id,omitempty" db:"job_id"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsTerminal reports whether the notification has reached a final state.
func (n *Notification) IsTerminal() bool {
	return n.Status == StatusSent || n.Status == StatusCancelled
}

// NewNotificationID generates a prefixed unique identifier for a notification
// record, e.g. "ntf_8a2f...".
func NewNotificationID() string {
	return fmt.Sprintf("ntf_%s", uuid.New().String())
}

// EntrySnapshot is a read-only view of a financial entry owned by an external
// aggregate. Only the fields the notification subsystem consumes are present.
type EntrySnapshot struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Description string    `json:"description" db:"description"`
	// AmountCents is the entry amount in minor currency units.
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	Type        EntryType `json:"type" db:"type"`
	DueDate     time.Time `json:"due_date" db:"due_date"`

	// NotificationLeadMinutes overrides the user default when non-nil.
	NotificationLeadMinutes *int `json:"notification_lead_minutes,omitempty" db:"notification_lead_minutes"`
}

// UserSnapshot is a read-only view of the owning user's notification
// preference fields.
type UserSnapshot struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`

	NotificationsEnabled bool `json:"notifications_enabled" db:"notifications_enabled"`

	// DefaultNotificationLeadMinutes applies when the entry carries no
	// override; nil falls back to the system default.
	DefaultNotificationLeadMinutes *int `json:"default_notification_lead_minutes,omitempty" db:"default_notification_lead_minutes"`
}

// DeliveryResult is the outcome reported by a delivery collaborator.
type DeliveryResult struct {
	Success bool `json:"success"`

	// MessageID is the provider-assigned identifier on success.
	MessageID string `json:"message_id,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}

// CleanupReport holds per-category results of a maintenance sweep. A failed
// category records its error without suppressing the counts of the others.
type CleanupReport struct {
	NotificationsDeleted int    `json:"notifications_deleted"`
	NotificationsError   string `json:"notifications_error,omitempty"`
	TokensDeleted        int    `json:"tokens_deleted"`
	TokensError          string `json:"tokens_error,omitempty"`
}

// Failed reports whether any sweep category ended in error.
func (r CleanupReport) Failed() bool {
	return r.NotificationsError != "" || r.TokensError != ""
}
