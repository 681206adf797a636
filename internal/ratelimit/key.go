package ratelimit

import (
	"github.com/indyzai/api-gateway/internal/auth"
)

// UnknownKey is used when neither an identity nor a client address is known.
const UnknownKey = "unknown"

// KeyFor returns the rate limit key for a request: the identity id when
// authenticated, else the client address, else UnknownKey.
func KeyFor(identity *auth.Identity, clientAddress string) string {
	if identity != nil && identity.ID != "" {
		return identity.ID
	}
	if clientAddress != "" {
		return clientAddress
	}
	return UnknownKey
}
