package models

import "time"

// UnknownUserName is shown in place of a display name that cannot be resolved.
const UnknownUserName = "Unknown User"

// User represents a registered user account.
type User struct {
	// ID is the opaque identifier issued by the identity provider.
	ID string

	// DisplayName is the human-readable name shown to other users.
	DisplayName string

	// Email is the user's email address. Registration requires it to be allowlisted.
	Email string

	// PhoneNumber is optional, used for SMS notifications.
	PhoneNumber string

	// PhotoURL is an optional avatar URL.
	PhotoURL string

	// CreatedAt is the Unix timestamp when the user registered.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last profile change.
	UpdatedAt int64
}

// NewUser creates a user record stamped with the current time.
func NewUser(id, email, displayName, photoURL string) *User {
	now := time.Now().Unix()
	return &User{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NameOf returns the display name of id in users, or UnknownUserName.
func NameOf(users map[string]*User, id string) string {
	if u, ok := users[id]; ok && u != nil && u.DisplayName != "" {
		return u.DisplayName
	}
	return UnknownUserName
}
