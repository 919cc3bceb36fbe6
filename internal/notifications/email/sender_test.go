package email

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"duewatch/internal/config"
	"duewatch/internal/external"
	"duewatch/internal/types"
)

func emailTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type mockProvider struct {
	gotInput external.SendInput
	called   bool
	msgID    string
	err      error
}

func (m *mockProvider) Send(_ context.Context, input external.SendInput) (string, error) {
	m.called = true
	m.gotInput = input
	if m.err != nil {
		return "", m.err
	}
	return m.msgID, nil
}

type mockUsers struct {
	user *types.UserSnapshot
	err  error
}

func (m *mockUsers) GetUserSnapshot(_ context.Context, _ string) (*types.UserSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		FromAddress: "reminders@duewatch.app",
		FromName:    "Duewatch Reminders",
	}
}

func enabledUser() *types.UserSnapshot {
	return &types.UserSnapshot{
		ID:                   "user_1",
		Email:                "alex@example.com",
		Name:                 "Alex",
		NotificationsEnabled: true,
	}
}

func TestDeliverSuccess(t *testing.T) {
	provider := &mockProvider{msgID: "sg_msg_1"}
	sender := NewSender(provider, &mockUsers{user: enabledUser()}, testEmailConfig(), emailTestLogger())

	result, err := sender.Deliver(context.Background(), testReminderMessage())
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !result.Success || result.MessageID != "sg_msg_1" {
		t.Errorf("result = %+v, want success with message ID", result)
	}

	if provider.gotInput.To != "alex@example.com" {
		t.Errorf("To = %q, want recipient from user snapshot", provider.gotInput.To)
	}
	if provider.gotInput.From.Address != "reminders@duewatch.app" {
		t.Errorf("From = %+v, want configured sender", provider.gotInput.From)
	}
	if provider.gotInput.ReferenceID != "ntf_1" {
		t.Errorf("ReferenceID = %q, want notification ID", provider.gotInput.ReferenceID)
	}
	if !strings.Contains(provider.gotInput.BodyText, "$1,200.00") {
		t.Errorf("rendered body missing amount: %q", provider.gotInput.BodyText)
	}
}

func TestDeliverUnknownUserIsTerminal(t *testing.T) {
	users := &mockUsers{err: types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)}
	provider := &mockProvider{}
	sender := NewSender(provider, users, testEmailConfig(), emailTestLogger())

	result, err := sender.Deliver(context.Background(), testReminderMessage())
	if err != nil {
		t.Fatalf("Deliver() error = %v, want terminal result instead", err)
	}
	if result.Success {
		t.Error("result.Success = true for unknown user")
	}
	if provider.called {
		t.Error("provider was called for unknown user")
	}
}

func TestDeliverUserLookupFailureRetries(t *testing.T) {
	users := &mockUsers{err: types.NewAppError(types.ErrCodeInternalDB, "querying user", errors.New("connection reset"))}
	sender := NewSender(&mockProvider{}, users, testEmailConfig(), emailTestLogger())

	_, err := sender.Deliver(context.Background(), testReminderMessage())
	if err == nil {
		t.Fatal("Deliver() error = nil, want retryable error for transient lookup failure")
	}
}

func TestDeliverDisabledAtDeliveryTime(t *testing.T) {
	user := enabledUser()
	user.NotificationsEnabled = false
	provider := &mockProvider{}
	sender := NewSender(provider, &mockUsers{user: user}, testEmailConfig(), emailTestLogger())

	result, err := sender.Deliver(context.Background(), testReminderMessage())
	if err != nil {
		t.Fatalf("Deliver() error = %v, want suppression result", err)
	}
	if result.Success {
		t.Error("result.Success = true for disabled user")
	}
	if provider.called {
		t.Error("email was sent to a user with notifications disabled")
	}
}

func TestDeliverBlockedRecipientIsTerminal(t *testing.T) {
	provider := &mockProvider{err: types.NewAppError(types.ErrCodeEmailBlocked, "suppression list", nil)}
	sender := NewSender(provider, &mockUsers{user: enabledUser()}, testEmailConfig(), emailTestLogger())

	result, err := sender.Deliver(context.Background(), testReminderMessage())
	if err != nil {
		t.Fatalf("Deliver() error = %v, want terminal result for blocked address", err)
	}
	if result.Success {
		t.Error("result.Success = true for blocked address")
	}
}

func TestDeliverProviderErrorRetries(t *testing.T) {
	provider := &mockProvider{err: types.NewAppError(types.ErrCodeUpstreamUnavailable, "sendgrid 503", nil)}
	sender := NewSender(provider, &mockUsers{user: enabledUser()}, testEmailConfig(), emailTestLogger())

	_, err := sender.Deliver(context.Background(), testReminderMessage())
	if !types.IsCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Fatalf("Deliver() error = %v, want upstream error to propagate for retry", err)
	}
}
