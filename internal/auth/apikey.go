package auth

import (
	"crypto/subtle"
)

// HeaderAPIKey carries the service-to-service key.
const HeaderAPIKey = "X-API-Key"

// APIKeyVerifier gates the service-to-service path with one shared key.
// It never yields an Identity.
type APIKeyVerifier struct {
	key []byte
}

// NewAPIKeyVerifier creates a verifier for key.
func NewAPIKeyVerifier(key string) *APIKeyVerifier {
	return &APIKeyVerifier{key: []byte(key)}
}

// Verify checks presented against the configured key.
func (v *APIKeyVerifier) Verify(presented string) error {
	if presented == "" {
		return NewAuthError(KindMissingAPIKey, nil)
	}
	if len(v.key) == 0 || subtle.ConstantTimeCompare([]byte(presented), v.key) != 1 {
		return NewAuthError(KindInvalidAPIKey, nil)
	}
	return nil
}
