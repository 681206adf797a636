// Package authz decides whether an authenticated identity may perform an
// operation.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/indyzai/api-gateway/internal/auth"
)

// ErrorKind classifies an authorization failure.
type ErrorKind string

// Authorization failure kinds.
const (
	KindAuthRequired      ErrorKind = "auth_required"
	KindInsufficientRole  ErrorKind = "insufficient_role"
	KindMissingPermission ErrorKind = "missing_permission"
)

// Sentinel errors for errors.Is.
var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrInsufficientRole  = errors.New("insufficient permissions")
	ErrMissingPermission = errors.New("missing permission")
)

// Well-known roles.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

// Error is an authorization failure. Permission is set for
// KindMissingPermission, Roles for KindInsufficientRole.
type Error struct {
	Kind       ErrorKind
	Permission string
	Roles      []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindInsufficientRole:
		return fmt.Sprintf("authz error: %s: requires one of [%s]", ErrInsufficientRole, strings.Join(e.Roles, ", "))
	case KindMissingPermission:
		return fmt.Sprintf("authz error: permission '%s' required", e.Permission)
	default:
		return "authz error: " + ErrAuthRequired.Error()
	}
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindAuthRequired:
		return target == ErrAuthRequired
	case KindInsufficientRole:
		return target == ErrInsufficientRole
	case KindMissingPermission:
		return target == ErrMissingPermission
	}
	return false
}

// RequireRole succeeds when identity holds one of roles. An empty role
// list only requires authentication.
func RequireRole(identity *auth.Identity, roles ...string) error {
	if identity == nil {
		return &Error{Kind: KindAuthRequired}
	}
	if len(roles) > 0 && !identity.HasRole(roles...) {
		return &Error{Kind: KindInsufficientRole, Roles: roles}
	}
	return nil
}

// RequirePermission succeeds when identity holds permission.
func RequirePermission(identity *auth.Identity, permission string) error {
	if identity == nil {
		return &Error{Kind: KindAuthRequired}
	}
	if !identity.HasPermission(permission) {
		return &Error{Kind: KindMissingPermission, Permission: permission}
	}
	return nil
}

// PermissionsForRole returns the default permission set granted to role.
func PermissionsForRole(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{"read", "write", "delete", "admin"}
	case RoleModerator:
		return []string{"read", "write", "moderate"}
	case RoleUser:
		return []string{"read", "write"}
	default:
		return []string{"read"}
	}
}
