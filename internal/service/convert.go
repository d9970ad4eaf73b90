package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/pkg/api"
)

var errUnauthenticated = errors.New("authentication required")

// callerID returns the authenticated user or an Unauthenticated error.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	return userID, nil
}

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   u.CreatedAt,
	}
}

func toAPIExpense(e *models.Expense, users map[string]*models.User) *api.Expense {
	return &api.Expense{
		ID:            e.ID,
		Description:   e.Description,
		Amount:        e.Amount,
		Currency:      e.Currency,
		CreatedBy:     e.CreatedBy,
		CreatedByName: models.NameOf(users, e.CreatedBy),
		Participants:  e.Participants,
		GroupID:       e.GroupID,
		Date:          e.Date,
		CreatedAt:     e.CreatedAt,
		Settled:       e.Settled,
	}
}

func toAPIBalance(b *models.BalanceEdge, users map[string]*models.User) *api.Balance {
	return &api.Balance{
		ID:        b.ID,
		ExpenseID: b.ExpenseID,
		PayerID:   b.PayerID,
		PayerName: models.NameOf(users, b.PayerID),
		PayeeID:   b.PayeeID,
		PayeeName: models.NameOf(users, b.PayeeID),
		Amount:    b.Amount,
		Currency:  b.Currency,
		Settled:   b.Settled,
		CreatedAt: b.CreatedAt,
		SettledAt: b.SettledAt,
	}
}

func toAPIBalances(edges []*models.BalanceEdge, users map[string]*models.User) []*api.Balance {
	out := make([]*api.Balance, len(edges))
	for i, b := range edges {
		out[i] = toAPIBalance(b, users)
	}
	return out
}

func toAPIGroup(g *models.Group) *api.Group {
	return &api.Group{
		ID:        g.ID,
		Name:      g.Name,
		MemberIDs: g.Members,
		CreatedAt: g.CreatedAt,
	}
}

func toAPIPositions(positions []calculator.Position, users map[string]*models.User) []*api.NetPosition {
	out := make([]*api.NetPosition, len(positions))
	for i, p := range positions {
		out[i] = &api.NetPosition{
			UserID:      p.UserID,
			DisplayName: models.NameOf(users, p.UserID),
			Amount:      p.Amount,
		}
	}
	return out
}

func toAPITransfers(transfers []calculator.Transfer, users map[string]*models.User) []*api.Transfer {
	out := make([]*api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = &api.Transfer{
			FromUserID: t.From,
			FromName:   models.NameOf(users, t.From),
			ToUserID:   t.To,
			ToName:     models.NameOf(users, t.To),
			Amount:     t.Amount,
		}
	}
	return out
}

// edgeUserIDs collects every payer and payee, without duplicates.
func edgeUserIDs(edges []*models.BalanceEdge) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range edges {
		for _, id := range []string{e.PayerID, e.PayeeID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
