package calculator

import (
	"github.com/shopspring/decimal"
)

// Epsilon is one cent, the smallest amount treated as a debt when simplifying.
// Positions built from cent-rounded edges are exact multiples of it.
var Epsilon = decimal.New(1, -2)

// Transfer is one suggested payment: From pays To the Amount.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// Simplify reduces a set of net positions to a short list of transfers that settles them.
//
// Algorithm:
// - Repeat while any position is at least Epsilon in magnitude
// - Pick the most negative position (debtor) and the most positive (creditor); on ties
//   the earliest in input order wins
// - Transfer min(|debtor|, creditor) from debtor to creditor
//
// Each step zeroes at least one position, so a closed set of N positions yields at most
// N-1 transfers, and for cent amounts the transfers add up to exactly the total debt.
// Positions are expected to sum to zero; if they do not, the loop stops once no debtor
// or no creditor is left and the remainder is not transferred.
// The input is not modified.
func Simplify(positions []Position) []Transfer {
	amounts := make([]decimal.Decimal, len(positions))
	for i, p := range positions {
		amounts[i] = p.Amount
	}

	var transfers []Transfer
	for unbalanced(amounts) {
		debtor, creditor := 0, 0
		for i, a := range amounts {
			if a.LessThan(amounts[debtor]) {
				debtor = i
			}
			if a.GreaterThan(amounts[creditor]) {
				creditor = i
			}
		}

		owes := amounts[debtor].Neg()
		owed := amounts[creditor]
		if !owes.IsPositive() || !owed.IsPositive() {
			break
		}

		amount := decimal.Min(owes, owed)
		transfers = append(transfers, Transfer{
			From:   positions[debtor].UserID,
			To:     positions[creditor].UserID,
			Amount: amount,
		})
		amounts[debtor] = amounts[debtor].Add(amount)
		amounts[creditor] = amounts[creditor].Sub(amount)
	}
	return transfers
}

func unbalanced(amounts []decimal.Decimal) bool {
	for _, a := range amounts {
		if a.Abs().GreaterThanOrEqual(Epsilon) {
			return true
		}
	}
	return false
}
