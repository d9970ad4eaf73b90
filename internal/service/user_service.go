package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
)

const (
	minSearchLength = 2
	searchLimit     = 10
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)

// UserService implements the UserService RPC interface.
type UserService struct {
	store      storage.Store
	jwtManager *auth.JWTManager
	logger     *slog.Logger
}

var _ apiconnect.UserServiceHandler = (*UserService)(nil)

// NewUserService creates a new user service.
func NewUserService(store storage.Store, jwtManager *auth.JWTManager, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		store:      store,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Register records a user signed in through the identity provider and issues a session token.
// The email must be allowlisted. Registering an existing uid returns the stored user.
func (s *UserService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	msg := req.Msg
	email := strings.ToLower(strings.TrimSpace(msg.Email))
	s.logger.Info("Register request", "uid", msg.UID, "email", email)

	if strings.TrimSpace(msg.UID) == "" {
		return nil, apperror.ToConnect(apperror.InvalidArgument("uid", "uid is required"))
	}
	if email == "" {
		return nil, apperror.ToConnect(apperror.InvalidArgument("email", "email is required"))
	}

	allowed, err := s.store.IsEmailAllowed(ctx, email)
	if err != nil {
		s.logger.Error("Allowlist check failed", "email", email, "error", err)
		return nil, apperror.ToConnect(err)
	}
	if !allowed {
		s.logger.Warn("Registration rejected, email not allowlisted", "email", email)
		return nil, apperror.ToConnect(apperror.Forbidden("this email is not allowed to register"))
	}

	user, created, err := s.findOrCreate(ctx, msg.UID, email, msg.DisplayName, msg.PhotoURL)
	if err != nil {
		s.logger.Error("Registration failed", "uid", msg.UID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	if created {
		s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	}
	return connect.NewResponse(&api.RegisterResponse{
		User:    toAPIUser(user),
		Token:   token,
		Created: created,
	}), nil
}

func (s *UserService) findOrCreate(ctx context.Context, uid, email, displayName, photoURL string) (*models.User, bool, error) {
	existing, err := s.store.GetUser(ctx, uid)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	user := models.NewUser(uid, email, displayName, photoURL)
	err = s.store.CreateUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		// lost a race with a concurrent registration of the same uid
		existing, err := s.store.GetUser(ctx, uid)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// GetUser returns a user's public profile.
func (s *UserService) GetUser(ctx context.Context, req *connect.Request[api.GetUserRequest]) (*connect.Response[api.GetUserResponse], error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, req.Msg.UID)
	if err != nil {
		s.logger.Warn("GetUser failed", "uid", req.Msg.UID, "error", err)
		return nil, apperror.ToConnect(err)
	}
	return connect.NewResponse(&api.GetUserResponse{User: toAPIUser(user)}), nil
}

// UpdateProfile changes the caller's phone number. An empty number removes it.
func (s *UserService) UpdateProfile(ctx context.Context, req *connect.Request[api.UpdateProfileRequest]) (*connect.Response[api.UpdateProfileResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	phone := strings.TrimSpace(req.Msg.PhoneNumber)
	if phone != "" && !phonePattern.MatchString(phone) {
		return nil, apperror.ToConnect(apperror.InvalidArgument("phoneNumber", "phone number is not valid"))
	}

	user, err := s.store.UpdateUserPhone(ctx, userID, phone)
	if err != nil {
		s.logger.Error("UpdateProfile failed", "user_id", userID, "error", err)
		return nil, apperror.ToConnect(err)
	}

	s.logger.Info("Profile updated", "user_id", userID)
	return connect.NewResponse(&api.UpdateProfileResponse{User: toAPIUser(user)}), nil
}

// SearchUsers finds other users by exact email or display name prefix.
// Queries shorter than two characters return nothing.
func (s *UserService) SearchUsers(ctx context.Context, req *connect.Request[api.SearchUsersRequest]) (*connect.Response[api.SearchUsersResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	out := []*api.User{}
	query := strings.TrimSpace(req.Msg.Query)
	if len([]rune(query)) < minSearchLength {
		return connect.NewResponse(&api.SearchUsersResponse{Users: out}), nil
	}

	users, err := s.store.SearchUsers(ctx, query, searchLimit+1)
	if err != nil {
		s.logger.Error("SearchUsers failed", "error", err)
		return nil, apperror.ToConnect(err)
	}

	seen := make(map[string]bool, len(users))
	for _, u := range users {
		if u.ID == userID || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, toAPIUser(u))
		if len(out) == searchLimit {
			break
		}
	}
	return connect.NewResponse(&api.SearchUsersResponse{Users: out}), nil
}
