package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/models"
)

var (
	// SplitTolerance is the absolute slack allowed when exact amounts or percentages are
	// reconciled against their expected total.
	SplitTolerance = decimal.New(1, -1)

	hundred = decimal.NewFromInt(100)
)

// SplitMethod is the policy used to divide an expense among participants.
type SplitMethod string

const (
	SplitEqual      SplitMethod = "equal"
	SplitExact      SplitMethod = "exact"
	SplitPercentage SplitMethod = "percentage"
)

// ParseSplitMethod converts a wire value to a SplitMethod. Empty means equal.
func ParseSplitMethod(s string) (SplitMethod, error) {
	switch m := SplitMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SplitEqual, nil
	case SplitEqual, SplitExact, SplitPercentage:
		return m, nil
	default:
		return "", apperror.InvalidExpense("method", fmt.Sprintf("unknown split method %q", s))
	}
}

// Share is one participant's part of an expense. Depending on the split method the
// input Amount is a currency amount or a percentage; Split always returns currency amounts.
type Share struct {
	UserID string
	Amount decimal.Decimal
}

// Participants is either a bare list of user IDs or a weighted list of shares.
// Split normalizes both forms to weighted shares before doing anything else.
type Participants struct {
	ids      []string
	shares   []Share
	weighted bool
}

// Bare builds participants given as identifiers only.
func Bare(ids ...string) Participants {
	return Participants{ids: ids}
}

// Weighted builds participants given with per-participant amounts or percentages.
func Weighted(shares ...Share) Participants {
	return Participants{shares: shares, weighted: true}
}

// IsWeighted reports whether explicit shares were given.
func (p Participants) IsWeighted() bool {
	return p.weighted
}

// IDs returns the participant identifiers in input order.
func (p Participants) IDs() []string {
	if !p.weighted {
		return p.ids
	}
	ids := make([]string, len(p.shares))
	for i, s := range p.shares {
		ids[i] = s.UserID
	}
	return ids
}

// Len returns the number of participants given.
func (p Participants) Len() int {
	if p.weighted {
		return len(p.shares)
	}
	return len(p.ids)
}

// SplitRequest is the input of Split.
type SplitRequest struct {
	Description  string
	Amount       decimal.Decimal
	Currency     string
	PayerID      string
	Participants Participants
	Method       SplitMethod
}

// Validate checks the fields every split needs, before any arithmetic.
func (r SplitRequest) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return apperror.InvalidExpense("description", "description is required")
	}
	if !r.Amount.IsPositive() {
		return apperror.InvalidExpense("amount", "amount must be greater than 0")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return apperror.InvalidExpense("amount", "amount cannot have more than 2 decimal places")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return apperror.InvalidExpense("currency", "currency is required")
	}
	if r.PayerID == "" {
		return apperror.InvalidExpense("createdBy", "payer is required")
	}
	if r.Participants.Len() == 0 {
		return apperror.InvalidExpense("participants", "at least one participant is required")
	}
	for _, id := range r.Participants.IDs() {
		if strings.TrimSpace(id) == "" {
			return apperror.InvalidExpense("participants", "participant id cannot be empty")
		}
	}
	return nil
}

// Split computes what each non-payer participant owes the payer.
//
// Bare participants are split equally among everyone but the payer, each share rounded
// to 2 decimal places independently, so shares may not add up to the total to the cent.
// Exact amounts must sum to the total and percentages to 100, both within SplitTolerance.
// The payer may carry an explicit exact or percentage share; it is dropped from the result,
// as are zero shares. The result is in participant input order.
func Split(req SplitRequest) ([]Share, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = SplitEqual
	}

	var shares []Share
	var err error
	switch method {
	case SplitEqual:
		shares, err = splitEqual(req.Amount, req.PayerID, req.Participants.IDs())
	case SplitExact:
		shares, err = splitExact(req.Amount, req.PayerID, req.Participants)
	case SplitPercentage:
		shares, err = splitPercentage(req.Amount, req.PayerID, req.Participants)
	default:
		return nil, apperror.InvalidExpense("method", fmt.Sprintf("unknown split method %q", method))
	}
	if err != nil {
		return nil, err
	}

	if len(shares) == 0 {
		return nil, apperror.InvalidExpense("participants",
			"expense must include at least one other person besides the payer")
	}
	return shares, nil
}

// splitEqual divides total evenly among the unique participants other than the payer.
func splitEqual(total decimal.Decimal, payerID string, ids []string) ([]Share, error) {
	others := withoutPayer(dedupe(ids), payerID)
	if len(others) == 0 {
		return nil, apperror.InvalidExpense("participants",
			"expense must include at least one other person besides the payer")
	}

	each := total.Div(decimal.NewFromInt(int64(len(others)))).Round(2)
	shares := make([]Share, len(others))
	for i, id := range others {
		shares[i] = Share{UserID: id, Amount: each}
	}
	return shares, nil
}

func splitExact(total decimal.Decimal, payerID string, p Participants) ([]Share, error) {
	if !p.IsWeighted() {
		return nil, apperror.InvalidExpense("participants", "exact split requires an amount per participant")
	}
	if err := checkWeights(p.shares); err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, s := range p.shares {
		sum = sum.Add(s.Amount)
	}
	if sum.Sub(total).Abs().GreaterThan(SplitTolerance) {
		return nil, apperror.SplitMismatch(sum, total, "amounts")
	}

	shares := make([]Share, 0, len(p.shares))
	for _, s := range p.shares {
		amount := s.Amount.Round(2)
		if s.UserID == payerID || amount.IsZero() {
			continue
		}
		shares = append(shares, Share{UserID: s.UserID, Amount: amount})
	}
	return shares, nil
}

func splitPercentage(total decimal.Decimal, payerID string, p Participants) ([]Share, error) {
	if !p.IsWeighted() {
		return nil, apperror.InvalidExpense("participants", "percentage split requires a percentage per participant")
	}
	if err := checkWeights(p.shares); err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, s := range p.shares {
		sum = sum.Add(s.Amount)
	}
	if sum.Sub(hundred).Abs().GreaterThan(SplitTolerance) {
		return nil, apperror.SplitMismatch(sum, hundred, "percentages")
	}

	shares := make([]Share, 0, len(p.shares))
	for _, s := range p.shares {
		amount := total.Mul(s.Amount).Div(hundred).Round(2)
		if s.UserID == payerID || amount.IsZero() {
			continue
		}
		shares = append(shares, Share{UserID: s.UserID, Amount: amount})
	}
	return shares, nil
}

// checkWeights rejects duplicate participants and negative weights.
func checkWeights(shares []Share) error {
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if seen[s.UserID] {
			return apperror.InvalidExpense("participants", fmt.Sprintf("participant %s listed more than once", s.UserID))
		}
		seen[s.UserID] = true
		if s.Amount.IsNegative() {
			return apperror.InvalidExpense("participants", fmt.Sprintf("share for %s cannot be negative", s.UserID))
		}
	}
	return nil
}

// ParticipantIDs returns the expense participant list: the payer first, then every
// participant in input order, without duplicates.
func ParticipantIDs(payerID string, p Participants) []string {
	return dedupe(append([]string{payerID}, p.IDs()...))
}

// BuildEdges turns split shares into unsettled balance edges owed to the expense creator.
func BuildEdges(expense *models.Expense, shares []Share) []*models.BalanceEdge {
	edges := make([]*models.BalanceEdge, 0, len(shares))
	for _, s := range shares {
		if s.UserID == expense.CreatedBy {
			continue
		}
		edges = append(edges, &models.BalanceEdge{
			ExpenseID: expense.ID,
			PayerID:   expense.CreatedBy,
			PayeeID:   s.UserID,
			Amount:    s.Amount,
			Currency:  expense.Currency,
			CreatedAt: expense.CreatedAt,
		})
	}
	return edges
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func withoutPayer(ids []string, payerID string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != payerID {
			out = append(out, id)
		}
	}
	return out
}
