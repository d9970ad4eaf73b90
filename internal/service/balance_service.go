package service

import (
	"context"
	"log/slog"
	"slices"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
)

// fallbackDescription labels a dashboard entry whose expense cannot be loaded.
const fallbackDescription = "Expense share"

// BalanceService implements the Connect BalanceService.
type BalanceService struct {
	store    storage.Store
	currency string
}

var _ apiconnect.BalanceServiceHandler = (*BalanceService)(nil)

// NewBalanceService creates a BalanceService reporting summaries in currency.
func NewBalanceService(store storage.Store, currency string) *BalanceService {
	return &BalanceService{store: store, currency: currency}
}

// GetDashboard shows what the caller owes and is owed across every unsettled balance.
func (s *BalanceService) GetDashboard(ctx context.Context, req *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	userID := req.Msg.UserID
	if userID == "" {
		userID = caller
	}
	if userID != caller {
		return nil, apperror.ToConnect(apperror.Forbidden("you can only view your own dashboard"))
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		slog.Error("GetDashboard: failed to get user", "user_id", userID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	edges, err := s.store.ListUnsettledBalances(ctx, storage.BalanceFilter{UserID: userID})
	if err != nil {
		slog.Error("GetDashboard failed", "user_id", userID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	users, err := s.store.GetUsersByIDs(ctx, edgeUserIDs(edges))
	if err != nil {
		slog.Error("GetDashboard: failed to load users", "error", err)
		return nil, apperror.ToConnect(err)
	}
	descriptions, err := s.descriptions(ctx, edges)
	if err != nil {
		slog.Error("GetDashboard: failed to load expenses", "error", err)
		return nil, apperror.ToConnect(err)
	}

	resp := &api.GetDashboardResponse{
		User:       toAPIUser(user),
		YouOwe:     []*api.DashboardEntry{},
		YouAreOwed: []*api.DashboardEntry{},
	}
	for _, e := range edges {
		switch userID {
		case e.PayeeID:
			resp.YouOwe = append(resp.YouOwe, dashboardEntry(e, e.PayerID, users, descriptions))
		case e.PayerID:
			resp.YouAreOwed = append(resp.YouAreOwed, dashboardEntry(e, e.PayeeID, users, descriptions))
		}
	}

	summary := calculator.Summarize(userID, edges)
	resp.Summary = &api.DashboardSummary{
		TotalYouOwe:     summary.TotalYouOwe,
		TotalYouAreOwed: summary.TotalYouAreOwed,
		NetBalance:      summary.NetBalance,
		Currency:        s.currency,
	}
	resp.Counterparties = toAPIPositions(calculator.Counterparties(userID, edges), users)

	slog.Debug("Dashboard computed",
		"user_id", userID,
		"you_owe", len(resp.YouOwe),
		"you_are_owed", len(resp.YouAreOwed),
		"net", summary.NetBalance.StringFixed(2),
	)
	return connect.NewResponse(resp), nil
}

// descriptions maps expense IDs to descriptions. Expenses that no longer exist get fallbackDescription.
func (s *BalanceService) descriptions(ctx context.Context, edges []*models.BalanceEdge) (map[string]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, e := range edges {
		if !seen[e.ExpenseID] {
			seen[e.ExpenseID] = true
			ids = append(ids, e.ExpenseID)
		}
	}

	out, err := s.store.GetExpenseDescriptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = fallbackDescription
		}
	}
	return out, nil
}

func dashboardEntry(e *models.BalanceEdge, counterparty string, users map[string]*models.User, descriptions map[string]string) *api.DashboardEntry {
	party := api.Party{ID: counterparty, Name: models.NameOf(users, counterparty)}
	if u, ok := users[counterparty]; ok {
		party.Email = u.Email
	}
	description := descriptions[e.ExpenseID]
	if description == "" {
		description = fallbackDescription
	}
	return &api.DashboardEntry{
		BalanceID:    e.ID,
		ExpenseID:    e.ExpenseID,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Counterparty: party,
		Description:  description,
		CreatedAt:    e.CreatedAt,
	}
}

// SimplifyDebts nets the caller's unsettled balances and proposes the fewest transfers
// that settle them. Only edges the caller is a party to are considered; userIds, when
// given, must include the caller and narrows the edges to those among the listed users.
func (s *BalanceService) SimplifyDebts(ctx context.Context, req *connect.Request[api.SimplifyDebtsRequest]) (*connect.Response[api.SimplifyDebtsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Msg.UserIDs) > 0 && !slices.Contains(req.Msg.UserIDs, caller) {
		return nil, apperror.ToConnect(apperror.Forbidden("you can only simplify debts you are part of"))
	}

	edges, err := s.store.ListUnsettledBalances(ctx, storage.BalanceFilter{UserID: caller})
	if err != nil {
		slog.Error("SimplifyDebts failed", "user_id", caller, "error", err)
		return nil, apperror.ToConnect(err)
	}
	if len(req.Msg.UserIDs) > 0 {
		edges = edgesWithin(edges, req.Msg.UserIDs)
	}

	positions, transfers, err := debtPlan(ctx, s.store, edges)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.SimplifyDebtsResponse{
		Positions: positions,
		Transfers: transfers,
	}), nil
}

// debtPlan computes named net positions and the simplified transfers for edges.
func debtPlan(ctx context.Context, store storage.Store, edges []*models.BalanceEdge) ([]*api.NetPosition, []*api.Transfer, error) {
	positions := calculator.NetPositions(edges)
	transfers := calculator.Simplify(positions)

	users, err := store.GetUsersByIDs(ctx, edgeUserIDs(edges))
	if err != nil {
		slog.Error("Failed to load users for debt plan", "error", err)
		return nil, nil, apperror.ToConnect(err)
	}

	slog.Debug("Debts simplified", "edges", len(edges), "users", len(positions), "transfers", len(transfers))
	return toAPIPositions(positions, users), toAPITransfers(transfers, users), nil
}

// edgesWithin keeps the edges whose payer and payee are both in userIDs.
func edgesWithin(edges []*models.BalanceEdge, userIDs []string) []*models.BalanceEdge {
	set := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		set[id] = true
	}
	var out []*models.BalanceEdge
	for _, e := range edges {
		if set[e.PayerID] && set[e.PayeeID] {
			out = append(out, e)
		}
	}
	return out
}
