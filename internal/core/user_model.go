package core

import (
	"strings"
	"time"
)

// Role distinguishes the two kinds of user the order flow knows about.
type Role string

const (
	RolePatient  Role = "patient"
	RolePharmacy Role = "pharmacy"
)

// User is an authenticated identity. The core only reads users.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UserID int
	Role   Role
}

// DisplayNameProvider resolves the human-readable label for a user.
type DisplayNameProvider interface {
	DisplayName(u *User) string
}

// UserDisplayName is the canonical DisplayNameProvider:
// full name, then username, then the local part of the email, then "User".
type UserDisplayName struct{}

func (UserDisplayName) DisplayName(u *User) string {
	if u == nil {
		return "User"
	}
	if full := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName)); full != "" {
		return full
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(strings.TrimSpace(u.Email), "@"); local != "" {
		return local
	}
	return "User"
}
