package models

import "github.com/shopspring/decimal"

// BalanceEdge is a directed debt produced by an expense split:
// PayeeID owes PayerID Amount. PayerID is always the expense creator and never equals PayeeID.
type BalanceEdge struct {
	// ID is the unique identifier for the edge (UUID format).
	ID string

	// ExpenseID is the owning expense.
	ExpenseID string

	// PayerID is the user who paid and is owed money.
	PayerID string

	// PayeeID is the user who owes money.
	PayeeID string

	// Amount owed, always positive.
	Amount decimal.Decimal

	// Currency copied from the owning expense.
	Currency string

	// Settled flips once from false to true.
	Settled bool

	// CreatedAt is the Unix timestamp when the edge was written.
	CreatedAt int64

	// SettledAt is the Unix timestamp of settlement, zero while unsettled.
	SettledAt int64
}

// Involves reports whether userID is the payer or the payee of the edge.
func (b *BalanceEdge) Involves(userID string) bool {
	return b.PayerID == userID || b.PayeeID == userID
}
