package notify

import (
	"context"
	"log/slog"
)

// LogSender writes every rendered message to the log instead of delivering it.
// It is the default when no message broker is configured.
type LogSender struct {
	Logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender returns a LogSender writing to logger, or to the default logger if nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger}
}

func (s *LogSender) NotifyExpense(ctx context.Context, event ExpenseEvent) error {
	for _, msg := range ExpenseMessages(event) {
		s.log(ctx, TypeExpenseCreated, msg)
	}
	return nil
}

func (s *LogSender) NotifyWeeklySummary(ctx context.Context, event SummaryEvent) error {
	msg, ok := SummaryMessage(event)
	if !ok {
		s.Logger.DebugContext(ctx, "Skipping summary without email", "user_id", event.Recipient.UserID)
		return nil
	}
	s.log(ctx, TypeWeeklySummary, msg)
	return nil
}

func (s *LogSender) log(ctx context.Context, eventType string, msg Message) {
	s.Logger.InfoContext(ctx, "Notification",
		"type", eventType,
		"channel", msg.Channel,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
}
