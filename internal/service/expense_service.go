package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/notify"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
)

var (
	expensesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleup_expenses_created_total",
		Help: "Expenses recorded, by split method.",
	}, []string{"method"})

	balancesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settleup_balances_settled_total",
		Help: "Balance edges flipped to settled.",
	})
)

// DefaultNotifyTimeout bounds a single background notification.
const DefaultNotifyTimeout = 10 * time.Second

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store         storage.Store
	notifier      notify.Sender
	notifyTimeout time.Duration
	now           func() time.Time
}

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates an ExpenseService. A nil notifier disables notifications.
func NewExpenseService(store storage.Store, notifier notify.Sender) *ExpenseService {
	return &ExpenseService{
		store:         store,
		notifier:      notifier,
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
	}
}

// CreateExpense splits an expense paid by the caller and records it with its balance edges.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg

	creator := msg.CreatedBy
	if creator == "" {
		creator = userID
	}
	if creator != userID {
		return nil, apperror.ToConnect(apperror.Forbidden("you can only record expenses you paid for"))
	}

	method, err := calculator.ParseSplitMethod(msg.Method)
	if err != nil {
		return nil, apperror.ToConnect(err)
	}

	participants := calculator.Bare(msg.ParticipantIDs...)
	if len(msg.Shares) > 0 {
		shares := make([]calculator.Share, len(msg.Shares))
		for i, sh := range msg.Shares {
			shares[i] = calculator.Share{UserID: sh.UserID, Amount: sh.Amount}
		}
		participants = calculator.Weighted(shares...)
	}

	shares, err := calculator.Split(calculator.SplitRequest{
		Description:  msg.Description,
		Amount:       msg.Amount,
		Currency:     msg.Currency,
		PayerID:      creator,
		Participants: participants,
		Method:       method,
	})
	if err != nil {
		slog.Warn("CreateExpense split rejected", "user_id", userID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	var group *models.Group
	if msg.GroupID != "" {
		group, err = s.store.GetGroup(ctx, msg.GroupID)
		if err != nil {
			slog.Error("CreateExpense: failed to get group", "group_id", msg.GroupID, "error", err)
			return nil, apperror.ToConnect(err)
		}
		if !group.HasMember(userID) {
			return nil, apperror.ToConnect(apperror.Forbidden("you must be a group member to add expenses to it"))
		}
	}

	now := s.now().Unix()
	expense := &models.Expense{
		Description:  strings.TrimSpace(msg.Description),
		Amount:       msg.Amount.Round(2),
		Currency:     strings.ToUpper(strings.TrimSpace(msg.Currency)),
		CreatedBy:    creator,
		Participants: calculator.ParticipantIDs(creator, participants),
		GroupID:      msg.GroupID,
		Date:         msg.Date,
		CreatedAt:    now,
	}
	if expense.Date == 0 {
		expense.Date = now
	}
	edges := calculator.BuildEdges(expense, shares)

	if err := s.store.CreateExpense(ctx, expense, edges); err != nil {
		slog.Error("CreateExpense failed", "error", err)
		return nil, apperror.ToConnect(err)
	}
	expensesCreated.WithLabelValues(string(method)).Inc()
	slog.Info("Expense created",
		"expense_id", expense.ID,
		"created_by", creator,
		"method", method,
		"edges", len(edges),
	)

	if group != nil {
		s.autoAddParticipantsToGroup(ctx, group, expense.Participants)
	}

	users, err := s.store.GetUsersByIDs(ctx, expense.Participants)
	if err != nil {
		// the expense is committed, names fall back to Unknown User
		slog.Warn("CreateExpense: failed to load participant names", "expense_id", expense.ID, "error", err)
		users = nil
	}
	s.notifyParticipants(ctx, expense, users)

	return connect.NewResponse(&api.CreateExpenseResponse{
		Expense:  toAPIExpense(expense, users),
		Balances: toAPIBalances(edges, users),
	}), nil
}

// autoAddParticipantsToGroup adds expense participants not yet in the group.
func (s *ExpenseService) autoAddParticipantsToGroup(ctx context.Context, group *models.Group, participants []string) {
	var newMembers []string
	for _, p := range participants {
		if !group.HasMember(p) {
			newMembers = append(newMembers, p)
		}
	}
	if len(newMembers) == 0 {
		return
	}

	if err := s.store.AddGroupMembers(ctx, group.ID, newMembers); err != nil {
		slog.Error("autoAddParticipantsToGroup: failed to add members", "group_id", group.ID, "error", err)
		return
	}
	slog.Info("Auto-added participants to group", "group_id", group.ID, "new_members", newMembers)
}

func (s *ExpenseService) notifyParticipants(ctx context.Context, expense *models.Expense, users map[string]*models.User) {
	if s.notifier == nil || users == nil {
		return
	}
	event := notify.NewExpenseEvent(expense, users)
	if len(event.Recipients) == 0 {
		return
	}
	notify.Dispatch(ctx, s.notifyTimeout, notify.TypeExpenseCreated, func(ctx context.Context) error {
		return s.notifier.NotifyExpense(ctx, event)
	})
}

// ListExpenses lists the caller's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpensesByParticipant(ctx, userID, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListExpenses failed", "user_id", userID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	creators := make([]string, 0, len(expenses))
	for _, e := range expenses {
		creators = append(creators, e.CreatedBy)
	}
	users, err := s.store.GetUsersByIDs(ctx, creators)
	if err != nil {
		slog.Error("ListExpenses: failed to load creators", "error", err)
		return nil, apperror.ToConnect(err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e, users)
	}
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// GetExpense returns an expense and its splits. Only participants may view it.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		slog.Error("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	if !expense.HasParticipant(userID) {
		return nil, apperror.ToConnect(apperror.Forbidden("you must be a participant to view this expense"))
	}

	edges, err := s.store.ListBalancesByExpense(ctx, expense.ID)
	if err != nil {
		slog.Error("GetExpense: failed to list balances", "expense_id", expense.ID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	users, err := s.store.GetUsersByIDs(ctx, expense.Participants)
	if err != nil {
		slog.Error("GetExpense: failed to load users", "expense_id", expense.ID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	return connect.NewResponse(&api.GetExpenseResponse{
		Expense: toAPIExpense(expense, users),
		Splits:  toAPIBalances(edges, users),
	}), nil
}

// DeleteExpense removes an expense and all its balance edges. Only the creator may delete.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		slog.Error("DeleteExpense: failed to get expense", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	if expense.CreatedBy != userID {
		return nil, apperror.ToConnect(apperror.Forbidden("only the creator can delete this expense"))
	}

	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expense.ID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	slog.Info("Expense deleted", "expense_id", expense.ID, "user_id", userID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// SettleBalance marks one balance edge as paid. Either side of the edge may settle it, once.
func (s *ExpenseService) SettleBalance(ctx context.Context, req *connect.Request[api.SettleBalanceRequest]) (*connect.Response[api.SettleBalanceResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	edge, err := s.store.GetBalance(ctx, req.Msg.BalanceID)
	if err != nil {
		slog.Error("SettleBalance: failed to get balance", "balance_id", req.Msg.BalanceID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	if !edge.Involves(userID) {
		return nil, apperror.ToConnect(apperror.Forbidden("only the payer or payee can settle this balance"))
	}

	settled, err := s.store.SettleBalance(ctx, edge.ID, s.now().Unix())
	if err != nil {
		slog.Warn("SettleBalance failed", "balance_id", edge.ID, "user_id", userID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	balancesSettled.Inc()

	users, err := s.store.GetUsersByIDs(ctx, []string{settled.PayerID, settled.PayeeID})
	if err != nil {
		slog.Warn("SettleBalance: failed to load names", "balance_id", edge.ID, "error", err)
		users = nil
	}

	slog.Info("Balance settled", "balance_id", settled.ID, "expense_id", settled.ExpenseID, "user_id", userID)
	return connect.NewResponse(&api.SettleBalanceResponse{Balance: toAPIBalance(settled, users)}), nil
}
