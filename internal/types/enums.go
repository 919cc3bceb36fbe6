package types

// NotificationStatus represents the lifecycle state of a Notification.
// The state machine is strictly monotonic:
//
//	pending -> sent      (delivery confirmed)
//	pending -> cancelled (entry deleted/updated)
//
// Both sent and cancelled are terminal.
type NotificationStatus string

const (
	StatusPending   NotificationStatus = "pending"
	StatusSent      NotificationStatus = "sent"
	StatusCancelled NotificationStatus = "cancelled"
)

// Valid reports whether the status is one of the known states.
func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusCancelled:
		return true
	}
	return false
}

// EntryType identifies the direction of a financial entry.
type EntryType string

const (
	EntryIncome  EntryType = "income"
	EntryExpense EntryType = "expense"
)

// TokenKind identifies the auxiliary token families swept by the cleanup
// worker. The tokens themselves are owned by the auth layer.
type TokenKind string

const (
	TokenVerification  TokenKind = "verification"
	TokenPasswordReset TokenKind = "password_reset"
)
