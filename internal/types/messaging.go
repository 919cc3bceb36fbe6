package types

import "time"

// ReminderMessage is the payload carried by a scheduled reminder job. It is
// serialized to JSON when the job is submitted and deserialized by the
// delivery worker.
//
// The entry fields are a denormalized snapshot taken at scheduling time so
// the worker can render the reminder without re-fetching the entry. If the
// entry changes after scheduling, the notification is cancelled and
// rescheduled by the entry-update flow, producing a fresh snapshot.
type ReminderMessage struct {
	NotificationID string `json:"notification_id"`
	EntryID        string `json:"entry_id"`
	UserID         string `json:"user_id"`

	// TraceID correlates log lines across the scheduling and delivery hops.
	TraceID string `json:"trace_id,omitempty"`

	// Entry snapshot metadata.
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	EntryType   EntryType `json:"entry_type,omitempty"`
	DueDate     time.Time `json:"due_date"`
}

// Validate checks that the message carries the identifiers the delivery
// worker cannot proceed without.
func (m *ReminderMessage) Validate() error {
	if m.NotificationID == "" {
		return NewAppError(ErrCodeValidationMissing, "reminder message missing notification_id", nil)
	}
	if m.EntryID == "" {
		return NewAppError(ErrCodeValidationMissing, "reminder message missing entry_id", nil)
	}
	if m.UserID == "" {
		return NewAppError(ErrCodeValidationMissing, "reminder message missing user_id", nil)
	}
	return nil
}

// SweepMessage is the payload carried by a recurring cleanup job. The
// reference time, when non-zero, overrides "now" for deterministic manual
// backfills.
type SweepMessage struct {
	// Category selects which sweep to run: "notifications" or "tokens".
	// Empty means run all categories.
	Category string `json:"category,omitempty"`

	ReferenceTime time.Time `json:"reference_time,omitempty"`
}

// Sweep category names used in SweepMessage.Category and in recurring
// trigger registration.
const (
	SweepCategoryNotifications = "notifications"
	SweepCategoryTokens        = "tokens"
)
