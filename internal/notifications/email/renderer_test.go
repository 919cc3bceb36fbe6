package email

import (
	"strings"
	"testing"
	"time"

	"duewatch/internal/types"
)

func testReminderMessage() types.ReminderMessage {
	return types.ReminderMessage{
		NotificationID: "ntf_1",
		EntryID:        "entry_1",
		UserID:         "user_1",
		Description:    "Rent",
		AmountCents:    120000,
		EntryType:      types.EntryExpense,
		DueDate:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestRenderReminderExpense(t *testing.T) {
	r := RenderReminder(testReminderMessage(), "Alex")

	if r.Subject != "Upcoming payment: Rent" {
		t.Errorf("subject = %q", r.Subject)
	}
	if !strings.Contains(r.BodyText, "Hi Alex") {
		t.Errorf("body missing greeting: %q", r.BodyText)
	}
	if !strings.Contains(r.BodyText, "$1,200.00") {
		t.Errorf("body missing formatted amount: %q", r.BodyText)
	}
	if !strings.Contains(r.BodyText, "is due on Mon, Mar 10") {
		t.Errorf("body missing due date: %q", r.BodyText)
	}
	if !strings.Contains(r.BodyHTML, "<strong>Rent</strong>") {
		t.Errorf("html body missing description: %q", r.BodyHTML)
	}
}

func TestRenderReminderIncome(t *testing.T) {
	msg := testReminderMessage()
	msg.Description = "Salary"
	msg.EntryType = types.EntryIncome

	r := RenderReminder(msg, "")

	if r.Subject != "Expected income: Salary" {
		t.Errorf("subject = %q", r.Subject)
	}
	if !strings.Contains(r.BodyText, "is expected on") {
		t.Errorf("income body should use expected wording: %q", r.BodyText)
	}
	if !strings.HasPrefix(r.BodyText, "Hi,") {
		t.Errorf("anonymous greeting wrong: %q", r.BodyText)
	}
}

func TestRenderReminderEscapesHTML(t *testing.T) {
	msg := testReminderMessage()
	msg.Description = "Cable & <Internet>"

	r := RenderReminder(msg, "")

	if !strings.Contains(r.BodyHTML, "Cable &amp; &lt;Internet&gt;") {
		t.Errorf("html body not escaped: %q", r.BodyHTML)
	}
	if !strings.Contains(r.BodyText, "Cable & <Internet>") {
		t.Errorf("text body should not be escaped: %q", r.BodyText)
	}
}

func TestFormatAmountCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{100, "$1.00"},
		{120000, "$1,200.00"},
		{123456789, "$1,234,567.89"},
		{-9900, "-$99.00"},
	}

	for _, tt := range tests {
		if got := FormatAmountCents(tt.cents); got != tt.want {
			t.Errorf("FormatAmountCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
