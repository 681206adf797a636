// Package users manages gateway accounts: registration, login, and the
// administrative operations on identities.
package users

import (
	"errors"
	"slices"
	"time"

	"github.com/indyzai/api-gateway/internal/auth"
)

// Sentinel errors.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfDelete         = errors.New("cannot delete your own account")
)

// User is a stored account.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Role         string
	Permissions  []string
	CreatedAt    time.Time
	LastLogin    time.Time
}

func (u User) clone() User {
	u.PasswordHash = slices.Clone(u.PasswordHash)
	u.Permissions = slices.Clone(u.Permissions)
	return u
}

// Public is the externally visible view of a user.
type Public struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Public returns the view of u that never includes the password hash.
func (u User) Public() Public {
	perms := slices.Clone(u.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return Public{ID: u.ID, Email: u.Email, Role: u.Role, Permissions: perms}
}

// Identity returns the token identity for u.
func (u User) Identity() auth.Identity {
	return auth.Identity{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: slices.Clone(u.Permissions),
	}
}
