package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/pkg/api"
)

func TestCreateGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	ctx := context.Background()

	resp, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "  Ski Trip ",
		MemberIDs: []string{"bob", "alice", "bob", ""},
	}))
	require.NoError(t, err)

	group := resp.Msg.Group
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "Ski Trip", group.Name)
	assert.ElementsMatch(t, []string{"alice", "bob"}, group.MemberIDs)
	assert.NotZero(t, group.CreatedAt)

	_, err = env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{Name: " "}))
	assertCode(t, connect.CodeInvalidArgument, err)
}

func TestGetGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	bob := env.addUser(t, "bob", "Bob")
	dave := env.addUser(t, "dave", "Dave")
	ctx := context.Background()

	created, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "Flat",
		MemberIDs: []string{"bob", "ghost"},
	}))
	require.NoError(t, err)
	groupID := created.Msg.Group.ID

	resp, err := env.groups.GetGroup(ctx, as(bob, &api.GetGroupRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, "Flat", resp.Msg.Group.Name)

	names := make(map[string]string)
	for _, m := range resp.Msg.Members {
		names[m.ID] = m.DisplayName
	}
	assert.Equal(t, map[string]string{"alice": "Alice", "bob": "Bob", "ghost": "Unknown User"}, names)

	_, err = env.groups.GetGroup(ctx, as(dave, &api.GetGroupRequest{GroupID: groupID}))
	assertCode(t, connect.CodePermissionDenied, err)

	_, err = env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: "missing"}))
	assertCode(t, connect.CodeNotFound, err)

	_, err = env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{}))
	assertCode(t, connect.CodeInvalidArgument, err)
}

func TestListGroups(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	bob := env.addUser(t, "bob", "Bob")
	ctx := context.Background()

	_, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{Name: "Flat", MemberIDs: []string{"bob"}}))
	require.NoError(t, err)
	_, err = env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{Name: "Work"}))
	require.NoError(t, err)

	resp, err := env.groups.ListGroups(ctx, as(alice, &api.ListGroupsRequest{}))
	require.NoError(t, err)
	assert.Len(t, resp.Msg.Groups, 2)

	resp, err = env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Groups, 1)
	assert.Equal(t, "Flat", resp.Msg.Groups[0].Name)
}

func TestGetGroupBalances(t *testing.T) {
	env := setupTestServer(t)
	alice := env.addUser(t, "alice", "Alice")
	bob := env.addUser(t, "bob", "Bob")
	env.addUser(t, "charlie", "Charlie")
	dave := env.addUser(t, "dave", "Dave")
	ctx := context.Background()

	created, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "Trip",
		MemberIDs: []string{"bob", "charlie"},
	}))
	require.NoError(t, err)
	groupID := created.Msg.Group.ID

	// equal splits divide among everyone but the payer
	_, err = env.expenses.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		Description: "Cabin", Amount: d("90"), Currency: "USD", GroupID: groupID,
		ParticipantIDs: []string{"alice", "bob", "charlie"},
	}))
	require.NoError(t, err)
	_, err = env.expenses.CreateExpense(ctx, as(bob, &api.CreateExpenseRequest{
		Description: "Fuel", Amount: d("30"), Currency: "USD", GroupID: groupID,
		ParticipantIDs: []string{"alice", "bob", "charlie"},
	}))
	require.NoError(t, err)

	// outside the group, ignored
	_, err = env.expenses.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		Description: "Lunch", Amount: d("20"), Currency: "USD",
		ParticipantIDs: []string{"dave"},
	}))
	require.NoError(t, err)

	resp, err := env.groups.GetGroupBalances(ctx, as(bob, &api.GetGroupBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)

	// alice +90 -15 = 75, bob -45 +30 = -15, charlie -45 -15 = -60
	positions := make(map[string]string)
	for _, p := range resp.Msg.Positions {
		positions[p.UserID] = p.Amount.StringFixed(2)
	}
	assert.Equal(t, map[string]string{"alice": "75.00", "bob": "-15.00", "charlie": "-60.00"}, positions)

	require.Len(t, resp.Msg.Transfers, 2)
	assert.Equal(t, "charlie", resp.Msg.Transfers[0].FromUserID)
	assert.Equal(t, "alice", resp.Msg.Transfers[0].ToUserID)
	assertAmount(t, "60", resp.Msg.Transfers[0].Amount)
	assert.Equal(t, "bob", resp.Msg.Transfers[1].FromUserID)
	assertAmount(t, "15", resp.Msg.Transfers[1].Amount)

	_, err = env.groups.GetGroupBalances(ctx, as(dave, &api.GetGroupBalancesRequest{GroupID: groupID}))
	assertCode(t, connect.CodePermissionDenied, err)
}
