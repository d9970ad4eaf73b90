package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
)

// Summary is one user's view of their unsettled balances.
type Summary struct {
	TotalYouOwe     decimal.Decimal
	TotalYouAreOwed decimal.Decimal
	NetBalance      decimal.Decimal // Positive = owed money, Negative = owes money
}

// Position is a user's net amount within a set of edges.
// Positive = owed money (creditor), Negative = owes money (debtor).
type Position struct {
	UserID string
	Amount decimal.Decimal
}

// Summarize aggregates the unsettled edges that involve userID.
// Edges where the user is the payee add to TotalYouOwe; edges where the user is the
// payer add to TotalYouAreOwed. Settled edges are ignored.
func Summarize(userID string, edges []*models.BalanceEdge) Summary {
	owe := decimal.Zero
	owed := decimal.Zero
	for _, e := range edges {
		if e.Settled {
			continue
		}
		if e.PayeeID == userID {
			owe = owe.Add(e.Amount)
		}
		if e.PayerID == userID {
			owed = owed.Add(e.Amount)
		}
	}
	return Summary{
		TotalYouOwe:     owe,
		TotalYouAreOwed: owed,
		NetBalance:      owed.Sub(owe),
	}
}

// NetPositions computes every user's net position over the unsettled edges,
// sorted by user ID. The positions always sum to zero.
func NetPositions(edges []*models.BalanceEdge) []Position {
	net := make(map[string]decimal.Decimal)
	for _, e := range edges {
		if e.Settled {
			continue
		}
		net[e.PayerID] = net[e.PayerID].Add(e.Amount)
		net[e.PayeeID] = net[e.PayeeID].Sub(e.Amount)
	}
	return sortedPositions(net)
}

// Counterparties computes, for each user sharing an unsettled edge with userID, how much
// they owe userID (positive) or are owed by userID (negative). Users whose edges cancel
// out are omitted. The result is sorted by user ID.
func Counterparties(userID string, edges []*models.BalanceEdge) []Position {
	net := make(map[string]decimal.Decimal)
	for _, e := range edges {
		if e.Settled {
			continue
		}
		switch userID {
		case e.PayerID:
			net[e.PayeeID] = net[e.PayeeID].Add(e.Amount)
		case e.PayeeID:
			net[e.PayerID] = net[e.PayerID].Sub(e.Amount)
		}
	}

	out := sortedPositions(net)
	filtered := out[:0]
	for _, p := range out {
		if !p.Amount.IsZero() {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func sortedPositions(net map[string]decimal.Decimal) []Position {
	positions := make([]Position, 0, len(net))
	for id, amount := range net {
		positions = append(positions, Position{UserID: id, Amount: amount})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].UserID < positions[j].UserID
	})
	return positions
}
