// Package api defines the request and response messages of the Settle Up RPC services.
//
// Messages travel as JSON over the Connect protocol (see Codec). Money amounts are
// decimal strings such as "33.33"; numeric JSON is accepted on input as well.
package api

import "github.com/shopspring/decimal"

// User is the public view of a registered user.
type User struct {
	ID          string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// Party identifies the other side of a balance.
type Party struct {
	ID    string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Expense is an expense as returned to clients.
type Expense struct {
	ID            string          `json:"id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedBy     string          `json:"createdBy"`
	CreatedByName string          `json:"createdByName"`
	Participants  []string        `json:"participants"`
	GroupID       string          `json:"groupId,omitempty"`
	Date          int64           `json:"date"`
	CreatedAt     int64           `json:"createdAt"`
	Settled       bool            `json:"settled"`
}

// Balance is one balance edge: the payee owes the payer Amount.
type Balance struct {
	ID        string          `json:"id"`
	ExpenseID string          `json:"expenseId"`
	PayerID   string          `json:"payerId"`
	PayerName string          `json:"payerName"`
	PayeeID   string          `json:"payeeId"`
	PayeeName string          `json:"payeeName"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Settled   bool            `json:"settled"`
	CreatedAt int64           `json:"createdAt"`
	SettledAt int64           `json:"settledAt,omitempty"`
}

// Share is a participant with an exact amount or a percentage, depending on the split method.
type Share struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// NetPosition is a user's net amount: positive means they are owed money.
type NetPosition struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Amount      decimal.Decimal `json:"amount"`
}

// Transfer is one suggested payment that settles net positions.
type Transfer struct {
	FromUserID string          `json:"fromUserId"`
	FromName   string          `json:"fromName"`
	ToUserID   string          `json:"toUserId"`
	ToName     string          `json:"toName"`
	Amount     decimal.Decimal `json:"amount"`
}

// Group is a named set of users.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
	CreatedAt int64    `json:"createdAt"`
}

// ExpenseService

// CreateExpenseRequest records a new expense paid by the caller.
// Participants are given either as ParticipantIDs (equal split) or as Shares.
type CreateExpenseRequest struct {
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	ParticipantIDs []string        `json:"participantIds,omitempty"`
	Shares         []Share         `json:"shares,omitempty"`
	Method         string          `json:"method,omitempty"`
	GroupID        string          `json:"groupId,omitempty"`
	Date           int64           `json:"date,omitempty"`
}

type CreateExpenseResponse struct {
	Expense  *Expense   `json:"expense"`
	Balances []*Balance `json:"balances"`
}

type ListExpensesRequest struct {
	GroupID string `json:"groupId,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type GetExpenseResponse struct {
	Expense *Expense   `json:"expense"`
	Splits  []*Balance `json:"splits"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type SettleBalanceRequest struct {
	BalanceID string `json:"balanceId"`
}

type SettleBalanceResponse struct {
	Balance *Balance `json:"balance"`
}

// BalanceService

type GetDashboardRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"userId,omitempty"`
}

// DashboardSummary totals a user's unsettled balances.
// NetBalance is positive when the user is owed money.
type DashboardSummary struct {
	TotalYouOwe     decimal.Decimal `json:"totalYouOwe"`
	TotalYouAreOwed decimal.Decimal `json:"totalYouAreOwed"`
	NetBalance      decimal.Decimal `json:"netBalance"`
	Currency        string          `json:"currency"`
}

// DashboardEntry is one unsettled balance seen from the dashboard owner's side.
type DashboardEntry struct {
	BalanceID    string          `json:"id"`
	ExpenseID    string          `json:"expenseId"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Counterparty Party           `json:"counterparty"`
	Description  string          `json:"description"`
	CreatedAt    int64           `json:"createdAt"`
}

type GetDashboardResponse struct {
	User       *User             `json:"user"`
	Summary    *DashboardSummary `json:"summary"`
	YouOwe     []*DashboardEntry `json:"youOwe"`
	YouAreOwed []*DashboardEntry `json:"youAreOwed"`
	// Counterparties nets every unsettled edge per other user:
	// positive means they owe the dashboard owner.
	Counterparties []*NetPosition `json:"counterparties"`
}

type SimplifyDebtsRequest struct {
	// UserIDs restricts the calculation to edges between these users. Empty means all.
	UserIDs []string `json:"userIds,omitempty"`
}

type SimplifyDebtsResponse struct {
	Positions []*NetPosition `json:"positions"`
	Transfers []*Transfer    `json:"transfers"`
}

// GroupService

type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds,omitempty"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group   *Group  `json:"group"`
	Members []*User `json:"members"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupBalancesResponse struct {
	Positions []*NetPosition `json:"positions"`
	Transfers []*Transfer    `json:"transfers"`
}

// UserService

// RegisterRequest registers a user authenticated by the external identity provider.
type RegisterRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
	// Created is false when the user was already registered.
	Created bool `json:"created"`
}

type GetUserRequest struct {
	UID string `json:"uid"`
}

type GetUserResponse struct {
	User *User `json:"user"`
}

type UpdateProfileRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type UpdateProfileResponse struct {
	User *User `json:"user"`
}

type SearchUsersRequest struct {
	Query string `json:"query"`
}

type SearchUsersResponse struct {
	Users []*User `json:"users"`
}
