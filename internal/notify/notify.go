// Package notify delivers expense and weekly summary notifications.
//
// Notifications are best effort: a failed delivery is logged and never fails the
// operation that triggered it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
)

// Event types carried in every envelope.
const (
	TypeExpenseCreated = "expense.created"
	TypeWeeklySummary  = "summary.weekly"
)

// Roles of a user in a summarized expense.
const (
	RolePayer       = "payer"
	RoleParticipant = "participant"
)

// Recipient is one person to notify. Email and PhoneNumber are both optional.
type Recipient struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// ExpenseEvent announces a new expense to its participants.
type ExpenseEvent struct {
	ExpenseID   string          `json:"expenseId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        int64           `json:"date"`
	CreatorID   string          `json:"creatorId"`
	CreatorName string          `json:"creatorName"`
	Recipients  []Recipient     `json:"-"`
}

// SummaryItem is one expense in a weekly summary.
type SummaryItem struct {
	ExpenseID   string          `json:"expenseId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        int64           `json:"date"`
	Role        string          `json:"role"`
}

// SummaryEvent is one user's weekly summary covering [From, To).
type SummaryEvent struct {
	Recipient Recipient     `json:"recipient"`
	From      int64         `json:"from"`
	To        int64         `json:"to"`
	Expenses  []SummaryItem `json:"expenses"`
}

// Sender delivers notifications.
type Sender interface {
	NotifyExpense(ctx context.Context, event ExpenseEvent) error
	NotifyWeeklySummary(ctx context.Context, event SummaryEvent) error
}

// NewExpenseEvent builds the event for a freshly created expense. Every participant
// except the creator becomes a recipient, in participant order; unknown users are skipped.
func NewExpenseEvent(expense *models.Expense, users map[string]*models.User) ExpenseEvent {
	event := ExpenseEvent{
		ExpenseID:   expense.ID,
		Description: expense.Description,
		Amount:      expense.Amount,
		Currency:    expense.Currency,
		Date:        expense.Date,
		CreatorID:   expense.CreatedBy,
		CreatorName: "Someone",
	}
	if creator, ok := users[expense.CreatedBy]; ok && creator.DisplayName != "" {
		event.CreatorName = creator.DisplayName
	}

	for _, id := range expense.Participants {
		if id == expense.CreatedBy {
			continue
		}
		user, ok := users[id]
		if !ok {
			continue
		}
		event.Recipients = append(event.Recipients, RecipientOf(user))
	}
	return event
}

// RecipientOf converts a user to a recipient.
func RecipientOf(user *models.User) Recipient {
	return Recipient{
		UserID:      user.ID,
		Name:        user.DisplayName,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
	}
}

// Dispatch runs send in the background with its own timeout, detached from the
// cancellation of parent so a finished request does not abort delivery.
// Errors are logged. The returned channel is closed when send returns.
func Dispatch(parent context.Context, timeout time.Duration, name string, send func(ctx context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)

	go func() {
		defer close(done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Notification panicked", "notification", name, "panic", r)
			}
		}()

		if err := send(ctx); err != nil {
			slog.Error("Notification failed", "notification", name, "error", err)
		}
	}()
	return done
}

// Multi fans a notification out to several senders. Every sender is tried;
// the failures are joined.
type Multi []Sender

func (m Multi) NotifyExpense(ctx context.Context, event ExpenseEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyExpense(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyWeeklySummary(ctx context.Context, event SummaryEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyWeeklySummary(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
