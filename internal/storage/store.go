// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/settleup/internal/models"
)

// BalanceFilter narrows ListUnsettledBalances. Empty fields match everything.
type BalanceFilter struct {
	// UserID matches edges where the user is either the payer or the payee.
	UserID string
	// GroupID restricts to edges of expenses in the group.
	GroupID string
}

// Store defines the interface for persistent storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
//
// Lookups of a missing record return an error matching apperror.ErrNotFound.
type Store interface {
	// CreateUser persists a new user. Returns an apperror.ErrConflict error if the ID exists.
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetUsersByIDs returns a map of user ID to User. Unknown IDs are omitted.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	UpdateUserPhone(ctx context.Context, id, phone string) (*models.User, error)
	// SearchUsers returns users whose email equals query or whose display name starts with it.
	SearchUsers(ctx context.Context, query string, limit int) ([]*models.User, error)
	IsEmailAllowed(ctx context.Context, email string) (bool, error)
	AllowEmail(ctx context.Context, email string) error

	// CreateExpense persists an expense and its balance edges in one transaction.
	// Either everything is written or nothing is. IDs and timestamps are filled in when empty.
	CreateExpense(ctx context.Context, expense *models.Expense, edges []*models.BalanceEdge) error
	// GetExpense retrieves an expense with Settled derived from its edges.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)
	// ListExpensesByParticipant lists the user's expenses, newest date first.
	// A non-empty groupID restricts the result to that group.
	ListExpensesByParticipant(ctx context.Context, userID, groupID string) ([]*models.Expense, error)
	// ListExpensesCreatedBetween lists expenses recorded in [from, to), in Unix seconds.
	ListExpensesCreatedBetween(ctx context.Context, from, to int64) ([]*models.Expense, error)
	// GetExpenseDescriptions maps expense IDs to descriptions. Unknown IDs are omitted.
	GetExpenseDescriptions(ctx context.Context, ids []string) (map[string]string, error)
	// DeleteExpense removes an expense, its participants and its edges in one transaction.
	DeleteExpense(ctx context.Context, id string) error

	GetBalance(ctx context.Context, id string) (*models.BalanceEdge, error)
	ListBalancesByExpense(ctx context.Context, expenseID string) ([]*models.BalanceEdge, error)
	ListUnsettledBalances(ctx context.Context, filter BalanceFilter) ([]*models.BalanceEdge, error)
	// SettleBalance flips an unsettled edge to settled at the given time.
	// Exactly one concurrent caller succeeds; the rest get an apperror.ErrAlreadySettled error.
	SettleBalance(ctx context.Context, id string, at int64) (*models.BalanceEdge, error)

	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)
	// AddGroupMembers adds the users that are not yet members. Existing members are left alone.
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error

	// Close releases any resources held by the store.
	Close() error
}
