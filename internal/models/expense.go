package models

import "github.com/shopspring/decimal"

// Expense represents money paid by one user and shared with others.
// Once created it is immutable; it can only be deleted as a whole.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is what the money was spent on (e.g., "Dinner").
	Description string

	// Amount is the total paid, always positive.
	Amount decimal.Decimal

	// Currency is the ISO currency code of Amount. No conversion is ever applied.
	Currency string

	// CreatedBy is the user who paid. Only this user may delete the expense.
	CreatedBy string

	// Participants is the ordered, de-duplicated list of user IDs sharing the expense.
	// The payer is always included.
	Participants []string

	// GroupID optionally ties the expense to a group.
	GroupID string

	// Date is the Unix timestamp when the expense occurred.
	Date int64

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// Settled is derived on read: true when every owned balance edge is settled.
	Settled bool
}

// HasParticipant reports whether userID shares the expense.
func (e *Expense) HasParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// DeriveSettled reports whether an expense is settled given its edges.
// An expense without edges has nothing to settle and is reported unsettled.
func DeriveSettled(edges []*BalanceEdge) bool {
	if len(edges) == 0 {
		return false
	}
	for _, e := range edges {
		if !e.Settled {
			return false
		}
	}
	return true
}
