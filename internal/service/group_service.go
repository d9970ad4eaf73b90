package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	store storage.Store
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a new group. The caller is always a member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, apperror.ToConnect(apperror.InvalidArgument("name", "group name is required"))
	}

	members := []string{userID}
	seen := map[string]bool{userID: true}
	for _, id := range req.Msg.MemberIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}

	// Save to storage (generates ID and CreatedAt)
	group := &models.Group{Name: name, Members: members}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, apperror.ToConnect(err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a group with its members' profiles. Only members may view it.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.store.GetUsersByIDs(ctx, group.Members)
	if err != nil {
		slog.Error("GetGroup: failed to load members", "group_id", group.ID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	members := make([]*api.User, 0, len(group.Members))
	for _, id := range group.Members {
		if u, ok := users[id]; ok {
			members = append(members, toAPIUser(u))
			continue
		}
		members = append(members, &api.User{ID: id, DisplayName: models.UnknownUserName})
	}

	return connect.NewResponse(&api.GetGroupResponse{
		Group:   toAPIGroup(group),
		Members: members,
	}), nil
}

// ListGroups lists the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, apperror.ToConnect(err)
	}

	out := make([]*api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g)
	}
	slog.Debug("ListGroups successful", "user_id", userID, "count", len(groups))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// GetGroupBalances nets the unsettled balances of the group's expenses and
// suggests the transfers that settle them.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.memberGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	edges, err := s.store.ListUnsettledBalances(ctx, storage.BalanceFilter{GroupID: group.ID})
	if err != nil {
		slog.Error("GetGroupBalances failed - could not list balances", "group_id", group.ID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	positions, transfers, err := debtPlan(ctx, s.store, edges)
	if err != nil {
		return nil, err
	}

	slog.Info("GetGroupBalances successful",
		"group_id", group.ID,
		"edges_count", len(edges),
		"transfers_count", len(transfers),
	)
	return connect.NewResponse(&api.GetGroupBalancesResponse{
		Positions: positions,
		Transfers: transfers,
	}), nil
}

// memberGroup loads a group and checks that userID belongs to it.
func (s *GroupService) memberGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if groupID == "" {
		return nil, apperror.ToConnect(apperror.InvalidArgument("groupId", "group id is required"))
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		slog.Error("Failed to get group", "group_id", groupID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	if !group.HasMember(userID) {
		return nil, apperror.ToConnect(apperror.Forbidden("you must be a member of this group"))
	}
	return group, nil
}
