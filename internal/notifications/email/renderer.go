// Package email renders and delivers reminder emails. It implements the
// types.Deliverer contract on top of the external SendGrid client.
package email

import (
	"fmt"
	"strings"

	"duewatch/internal/types"
)

// RenderedReminder is the provider-ready content for one reminder email.
type RenderedReminder struct {
	Subject  string
	BodyText string
	BodyHTML string
}

// RenderReminder formats a reminder message into email content. Amounts are
// rendered in dollars from minor units; dates use the entry's due date in UTC.
func RenderReminder(msg types.ReminderMessage, userName string) RenderedReminder {
	amount := FormatAmountCents(msg.AmountCents)
	dueDate := msg.DueDate.UTC().Format("Mon, Jan 2")

	var subject, action string
	switch msg.EntryType {
	case types.EntryIncome:
		subject = fmt.Sprintf("Expected income: %s", msg.Description)
		action = "is expected"
	default:
		subject = fmt.Sprintf("Upcoming payment: %s", msg.Description)
		action = "is due"
	}

	greeting := "Hi"
	if userName != "" {
		greeting = fmt.Sprintf("Hi %s", userName)
	}

	bodyText := fmt.Sprintf("%s,\n\nYour %s of %s %s on %s.\n\nDuewatch",
		greeting, msg.Description, amount, action, dueDate)

	bodyHTML := fmt.Sprintf(
		"<p>%s,</p><p>Your <strong>%s</strong> of %s %s on %s.</p><p>Duewatch</p>",
		htmlEscape(greeting), htmlEscape(msg.Description), amount, action, dueDate)

	return RenderedReminder{
		Subject:  subject,
		BodyText: bodyText,
		BodyHTML: bodyHTML,
	}
}

// FormatAmountCents renders an amount in minor currency units as a dollar
// string with thousands separators, e.g. 120000 -> "$1,200.00".
func FormatAmountCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	dollars := cents / 100
	remainder := cents % 100

	s := fmt.Sprintf("%d", dollars)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), remainder)
}

// htmlEscape covers the characters that matter in the simple markup above.
func htmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
