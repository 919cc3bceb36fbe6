package email

import (
	"context"
	"log/slog"

	"duewatch/internal/config"
	"duewatch/internal/external"
	"duewatch/internal/types"
)

// Sender delivers reminder emails. It resolves the recipient from the user
// snapshot at delivery time, so a changed address or a disabled preference is
// honored even when the job was enqueued days earlier.
type Sender struct {
	provider external.EmailProvider
	users    types.UserProvider
	from     external.SenderIdentity
	logger   *slog.Logger
}

// NewSender creates a Sender using the From identity from the email config.
func NewSender(provider external.EmailProvider, users types.UserProvider, cfg config.EmailConfig, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		provider: provider,
		users:    users,
		from: external.SenderIdentity{
			Address: cfg.FromAddress,
			Name:    cfg.FromName,
		},
		logger: logger,
	}
}

// Deliver renders and sends the reminder email.
//
// Outcome contract: a returned error means the attempt may be retried; a
// result with Success=false and a nil error means the failure is terminal and
// retrying is pointless (unknown user, disabled notifications, blocked
// recipient).
func (s *Sender) Deliver(ctx context.Context, msg types.ReminderMessage) (*types.DeliveryResult, error) {
	user, err := s.users.GetUserSnapshot(ctx, msg.UserID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundUser) {
			// The user is gone; the reminder can never be delivered.
			s.logger.WarnContext(ctx, "reminder recipient no longer exists",
				"notification_id", msg.NotificationID,
				"user_id", msg.UserID,
			)
			return &types.DeliveryResult{Success: false, Error: "user not found"}, nil
		}
		return nil, err
	}

	if !user.NotificationsEnabled {
		// Preference changed after scheduling; suppress instead of sending.
		s.logger.InfoContext(ctx, "reminder suppressed, notifications disabled at delivery time",
			"notification_id", msg.NotificationID,
			"user_id", msg.UserID,
		)
		return &types.DeliveryResult{Success: false, Error: "notifications disabled"}, nil
	}

	s.logger.InfoContext(ctx, "attempting reminder delivery",
		"notification_id", msg.NotificationID,
		"dest", RedactEmail(user.Email),
	)

	rendered := RenderReminder(msg, user.Name)

	if msg.TraceID != "" {
		ctx = types.WithTraceID(ctx, msg.TraceID)
	}

	msgID, err := s.provider.Send(ctx, external.SendInput{
		To:          user.Email,
		From:        s.from,
		Subject:     rendered.Subject,
		BodyText:    rendered.BodyText,
		BodyHTML:    rendered.BodyHTML,
		ReferenceID: msg.NotificationID,
	})
	if err != nil {
		if types.IsCode(err, types.ErrCodeEmailBlocked) {
			// Suppression-list rejections are permanent.
			s.logger.WarnContext(ctx, "recipient blocked by provider",
				"notification_id", msg.NotificationID,
				"dest", RedactEmail(user.Email),
			)
			return &types.DeliveryResult{Success: false, Error: "address blocked"}, nil
		}
		return nil, err
	}

	return &types.DeliveryResult{
		Success:   true,
		MessageID: msgID,
	}, nil
}

// Compile-time assertion that Sender satisfies types.Deliverer.
var _ types.Deliverer = (*Sender)(nil)
