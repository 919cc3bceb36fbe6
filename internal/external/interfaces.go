package external

import "context"

// SenderIdentity is the From address and display name for an outbound email.
type SenderIdentity struct {
	Address string
	Name    string
}

// SendInput carries pre-rendered email content to an EmailProvider.
type SendInput struct {
	To       string
	From     SenderIdentity
	Subject  string
	BodyHTML string
	BodyText string

	// ReferenceID correlates the provider message with the internal
	// notification record.
	ReferenceID string
}

// EmailProvider abstracts the email delivery service (SendGrid).
// Implementations transmit pre-rendered email content.
type EmailProvider interface {
	// Send transmits an email with pre-rendered content.
	// Returns the provider's message ID for tracking and correlation.
	Send(ctx context.Context, input SendInput) (providerMsgID string, err error)
}
