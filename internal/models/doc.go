// Package models defines the core domain records for Settle Up.
//
// # Records
//
//   - User: a registered person, identified by an opaque ID issued by the identity provider
//   - Expense: money one user (the creator) paid on behalf of a set of participants
//   - BalanceEdge: one participant's debt to the creator, scoped to one expense
//   - Group: a named set of users whose expenses are balanced together
//
// # Ownership
//
// A BalanceEdge is exclusively owned by its Expense. Edges are written in the same
// transaction as their expense and deleted with it; the only mutation an edge ever sees
// is the flip of Settled from false to true.
//
// # Derived state
//
// Expense.Settled is never stored. It is filled on read from the expense's edges, so it
// cannot drift from them. Net positions are likewise computed, never persisted.
//
// Relationships use ID strings instead of pointers to avoid circular references.
package models
