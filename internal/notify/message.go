package notify

import (
	"fmt"
	"strings"
	"time"
)

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is a rendered notification for one address.
type Message struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// ExpenseMessages renders an email and an SMS for every recipient that has the address.
func ExpenseMessages(event ExpenseEvent) []Message {
	var msgs []Message
	for _, r := range event.Recipients {
		msgs = append(msgs, ExpenseMessagesFor(event, r)...)
	}
	return msgs
}

// ExpenseMessagesFor renders the messages for a single recipient.
func ExpenseMessagesFor(event ExpenseEvent, r Recipient) []Message {
	var msgs []Message
	amount := fmt.Sprintf("%s %s", event.Currency, event.Amount.StringFixed(2))
	if r.Email != "" {
		msgs = append(msgs, Message{
			Channel: ChannelEmail,
			To:      r.Email,
			Subject: "New Expense: " + event.Description,
			Body: fmt.Sprintf("%s added you to an expense.\n\n%s\n%s\n%s\n\nLog in to the app to see the full details and settle up.",
				event.CreatorName, event.Description, amount, formatDate(event.Date)),
		})
	}
	if r.PhoneNumber != "" {
		msgs = append(msgs, Message{
			Channel: ChannelSMS,
			To:      r.PhoneNumber,
			Body: fmt.Sprintf("%s added an expense: %s for %s. View details in Settle Up.",
				event.CreatorName, event.Description, amount),
		})
	}
	return msgs
}

// SummaryMessage renders the weekly summary email. ok is false when the recipient has no email.
func SummaryMessage(event SummaryEvent) (msg Message, ok bool) {
	if event.Recipient.Email == "" {
		return Message{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nHere is your expense summary for %s to %s.\n\n",
		event.Recipient.Name, formatDate(event.From), formatDate(event.To))
	for _, item := range event.Expenses {
		role := "Owe"
		if item.Role == RolePayer {
			role = "Paid"
		}
		fmt.Fprintf(&b, "%s  %s  %s %s  %s\n",
			formatDate(item.Date), item.Description, item.Currency, item.Amount.StringFixed(2), role)
	}
	b.WriteString("\nThis is an automated message from Settle Up.")

	return Message{
		Channel: ChannelEmail,
		To:      event.Recipient.Email,
		Subject: fmt.Sprintf("Weekly Expense Summary (%s - %s)", formatDate(event.From), formatDate(event.To)),
		Body:    b.String(),
	}, true
}

func formatDate(unix int64) string {
	if unix == 0 {
		return "N/A"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}
