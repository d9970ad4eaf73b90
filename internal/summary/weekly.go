// Package summary builds the weekly expense digest sent to every active user.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinzhu/now"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/notify"
)

type expenseSource interface {
	ListExpensesCreatedBetween(ctx context.Context, from, to int64) ([]*models.Expense, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// Job sends one summary per user who took part in an expense recorded last week.
type Job struct {
	store  expenseSource
	sender notify.Sender
	week   *now.Config
}

// NewJob creates a job whose weeks start on Monday, UTC.
func NewJob(store expenseSource, sender notify.Sender) *Job {
	return &Job{
		store:  store,
		sender: sender,
		week: &now.Config{
			WeekStartDay: time.Monday,
			TimeLocation: time.UTC,
		},
	}
}

// PreviousWeek returns the calendar week before the one containing at, as [from, to).
func (j *Job) PreviousWeek(at time.Time) (from, to time.Time) {
	to = j.week.With(at.In(time.UTC)).BeginningOfWeek()
	return to.AddDate(0, 0, -7), to
}

// Run sends the summaries for the week before at and returns how many were sent.
// A failed send is logged and the remaining users are still processed.
func (j *Job) Run(ctx context.Context, at time.Time) (int, error) {
	from, to := j.PreviousWeek(at)
	slog.Info("Building weekly summaries", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))

	expenses, err := j.store.ListExpensesCreatedBetween(ctx, from.Unix(), to.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to load expenses: %w", err)
	}
	if len(expenses) == 0 {
		slog.Info("No expenses last week")
		return 0, nil
	}

	order, items := groupByUser(expenses)
	users, err := j.store.GetUsersByIDs(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("failed to load users: %w", err)
	}

	sent := 0
	var errs []error
	for _, id := range order {
		user, ok := users[id]
		if !ok {
			slog.Warn("Skipping summary for unknown user", "user_id", id)
			continue
		}
		if user.Email == "" {
			slog.Debug("Skipping summary for user without email", "user_id", id)
			continue
		}

		event := notify.SummaryEvent{
			Recipient: notify.RecipientOf(user),
			From:      from.Unix(),
			To:        to.Unix(),
			Expenses:  items[id],
		}
		if err := j.sender.NotifyWeeklySummary(ctx, event); err != nil {
			slog.Error("Failed to send weekly summary", "user_id", id, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		sent++
	}

	slog.Info("Weekly summaries sent", "sent", sent, "users", len(order))
	return sent, errors.Join(errs...)
}

// groupByUser returns the users in order of first appearance and each user's items.
func groupByUser(expenses []*models.Expense) ([]string, map[string][]notify.SummaryItem) {
	var order []string
	items := make(map[string][]notify.SummaryItem)

	add := func(userID, role string, e *models.Expense) {
		if _, seen := items[userID]; !seen {
			order = append(order, userID)
		}
		items[userID] = append(items[userID], notify.SummaryItem{
			ExpenseID:   e.ID,
			Description: e.Description,
			Amount:      e.Amount,
			Currency:    e.Currency,
			Date:        e.Date,
			Role:        role,
		})
	}

	for _, e := range expenses {
		add(e.CreatedBy, notify.RolePayer, e)
		for _, p := range e.Participants {
			if p != e.CreatedBy {
				add(p, notify.RoleParticipant, e)
			}
		}
	}
	return order, items
}
