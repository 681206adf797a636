package auth

import (
	"context"
	"slices"
)

// Identity is the authenticated principal derived from a verified token.
// It is immutable for the lifetime of a request.
type Identity struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether the identity's role is one of roles.
func (i *Identity) HasRole(roles ...string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(roles, i.Role)
}

// HasPermission reports whether the identity holds permission.
func (i *Identity) HasPermission(permission string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Permissions, permission)
}

// Clone returns a deep copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Permissions = slices.Clone(i.Permissions)
	return &c
}

type identityKey struct{}

// ContextWithIdentity returns a context carrying identity.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored in ctx.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
