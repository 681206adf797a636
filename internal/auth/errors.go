package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an authentication failure.
type ErrorKind string

// Authentication failure kinds.
const (
	KindMissingToken  ErrorKind = "missing_token"
	KindInvalidToken  ErrorKind = "invalid_token"
	KindExpiredToken  ErrorKind = "expired_token"
	KindMissingAPIKey ErrorKind = "missing_api_key"
	KindInvalidAPIKey ErrorKind = "invalid_api_key"
)

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrMissingToken  = errors.New("access token required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingAPIKey = errors.New("API key required")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

var kindSentinels = map[ErrorKind]error{
	KindMissingToken:  ErrMissingToken,
	KindInvalidToken:  ErrInvalidToken,
	KindExpiredToken:  ErrExpiredToken,
	KindMissingAPIKey: ErrMissingAPIKey,
	KindInvalidAPIKey: ErrInvalidAPIKey,
}

// AuthError is a classified authentication failure.
type AuthError struct {
	Kind  ErrorKind
	Cause error
}

// NewAuthError creates an AuthError of the given kind.
func NewAuthError(kind ErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Cause: cause}
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := string(e.Kind)
	if s, ok := kindSentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind.
func (e *AuthError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of an AuthError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}
