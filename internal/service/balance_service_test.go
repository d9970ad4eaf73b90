package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/pkg/api"
)

func TestGetDashboard(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	bob := env.addUser(t, "bob", "Bob")
	env.addUser(t, "charlie", "Charlie")
	ctx := context.Background()

	created := dinner(t, env, alice)

	resp, err := env.balances.GetDashboard(ctx, as(alice, &api.GetDashboardRequest{}))
	require.NoError(t, err)
	dash := resp.Msg
	assert.Equal(t, "alice", dash.User.ID)
	assertAmount(t, "100", dash.Summary.TotalYouAreOwed)
	assertAmount(t, "0", dash.Summary.TotalYouOwe)
	assertAmount(t, "100", dash.Summary.NetBalance)
	assert.Equal(t, "USD", dash.Summary.Currency)
	assert.Empty(t, dash.YouOwe)
	require.Len(t, dash.YouAreOwed, 2)
	assert.Equal(t, "Bob", dash.YouAreOwed[0].Counterparty.Name)
	assert.Equal(t, "Dinner", dash.YouAreOwed[0].Description)
	require.Len(t, dash.Counterparties, 2)
	assertAmount(t, "50", dash.Counterparties[0].Amount)

	resp, err = env.balances.GetDashboard(ctx, as(bob, &api.GetDashboardRequest{UserID: "bob"}))
	require.NoError(t, err)
	dash = resp.Msg
	assertAmount(t, "50", dash.Summary.TotalYouOwe)
	assertAmount(t, "0", dash.Summary.TotalYouAreOwed)
	assertAmount(t, "-50", dash.Summary.NetBalance)
	require.Len(t, dash.YouOwe, 1)
	entry := dash.YouOwe[0]
	assert.Equal(t, created.Balances[0].ID, entry.BalanceID)
	assert.Equal(t, created.Expense.ID, entry.ExpenseID)
	assert.Equal(t, "alice", entry.Counterparty.ID)
	assert.Equal(t, "Alice", entry.Counterparty.Name)
	assert.Equal(t, "alice@example.com", entry.Counterparty.Email)
	assertAmount(t, "50", entry.Amount)
	require.Len(t, dash.Counterparties, 1)
	assertAmount(t, "-50", dash.Counterparties[0].Amount)

	// settled edges leave the dashboard
	_, err = env.expenses.SettleBalance(ctx, as(bob, &api.SettleBalanceRequest{BalanceID: entry.BalanceID}))
	require.NoError(t, err)

	resp, err = env.balances.GetDashboard(ctx, as(bob, &api.GetDashboardRequest{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.YouOwe)
	assert.Empty(t, resp.Msg.Counterparties)
	assertAmount(t, "0", resp.Msg.Summary.NetBalance)

	resp, err = env.balances.GetDashboard(ctx, as(alice, &api.GetDashboardRequest{}))
	require.NoError(t, err)
	assertAmount(t, "50", resp.Msg.Summary.TotalYouAreOwed)
}

func TestGetDashboardOfAnotherUser(t *testing.T) {
	env := setupTestServer(t)
	env.addUser(t, "alice", "Alice")
	bob := env.addUser(t, "bob", "Bob")

	_, err := env.balances.GetDashboard(context.Background(), as(bob, &api.GetDashboardRequest{UserID: "alice"}))
	assertCode(t, connect.CodePermissionDenied, err)
}

func TestSimplifyDebts(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	bob := env.addUser(t, "bob", "Bob")
	env.addUser(t, "charlie", "Charlie")
	ctx := context.Background()

	// bob owes alice 30, charlie owes bob 30
	for _, tc := range []struct {
		token, payee string
	}{{alice, "bob"}, {bob, "charlie"}} {
		_, err := env.expenses.CreateExpense(ctx, as(tc.token, &api.CreateExpenseRequest{
			Description: "Tickets", Amount: d("30"), Currency: "USD", Method: "exact",
			Shares: []api.Share{{UserID: tc.payee, Amount: d("30")}},
		}))
		require.NoError(t, err)
	}

	// bob is party to both edges, so the chain collapses
	resp, err := env.balances.SimplifyDebts(ctx, as(bob, &api.SimplifyDebtsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Positions, 3)
	assert.Equal(t, "alice", resp.Msg.Positions[0].UserID)
	assertAmount(t, "30", resp.Msg.Positions[0].Amount)
	assertAmount(t, "0", resp.Msg.Positions[1].Amount)
	assertAmount(t, "-30", resp.Msg.Positions[2].Amount)

	require.Len(t, resp.Msg.Transfers, 1)
	transfer := resp.Msg.Transfers[0]
	assert.Equal(t, "charlie", transfer.FromUserID)
	assert.Equal(t, "Charlie", transfer.FromName)
	assert.Equal(t, "alice", transfer.ToUserID)
	assert.Equal(t, "Alice", transfer.ToName)
	assertAmount(t, "30", transfer.Amount)

	// alice only sees her own edge with bob
	resp, err = env.balances.SimplifyDebts(ctx, as(alice, &api.SimplifyDebtsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Positions, 2)
	require.Len(t, resp.Msg.Transfers, 1)
	assert.Equal(t, "bob", resp.Msg.Transfers[0].FromUserID)
	assert.Equal(t, "alice", resp.Msg.Transfers[0].ToUserID)

	resp, err = env.balances.SimplifyDebts(ctx, as(bob, &api.SimplifyDebtsRequest{UserIDs: []string{"alice", "bob"}}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Transfers, 1)
	assert.Equal(t, "bob", resp.Msg.Transfers[0].FromUserID)
	assert.Equal(t, "alice", resp.Msg.Transfers[0].ToUserID)

	resp, err = env.balances.SimplifyDebts(ctx, as(alice, &api.SimplifyDebtsRequest{UserIDs: []string{"alice", "charlie"}}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Positions)
	assert.Empty(t, resp.Msg.Transfers)
}

func TestSimplifyDebtsOfOtherUsers(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	env.addUser(t, "bob", "Bob")
	env.addUser(t, "charlie", "Charlie")
	mallory := env.addUser(t, "mallory", "Mallory")
	ctx := context.Background()
	dinner(t, env, alice)

	resp, err := env.balances.SimplifyDebts(ctx, as(mallory, &api.SimplifyDebtsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Positions)
	assert.Empty(t, resp.Msg.Transfers)

	_, err = env.balances.SimplifyDebts(ctx, as(mallory, &api.SimplifyDebtsRequest{UserIDs: []string{"alice", "bob"}}))
	assertCode(t, connect.CodePermissionDenied, err)
}
