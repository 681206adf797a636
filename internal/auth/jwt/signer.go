// Package jwt issues and verifies HS256 access tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/indyzai/api-gateway/internal/auth"
)

// Claim names carried in addition to the registered claims.
const (
	ClaimID          = "id"
	ClaimEmail       = "email"
	ClaimRole        = "role"
	ClaimPermissions = "permissions"
)

// ErrEmptySecret is returned when the signer is created without a key.
var ErrEmptySecret = errors.New("jwt signing secret is empty")

var _ auth.TokenSigner = (*Signer)(nil)

// Signer implements auth.TokenSigner with a shared HMAC secret.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) {
		s.clock = clock
	}
}

// NewSigner creates a signer. Tokens expire ttl after issuance.
func NewSigner(secret, issuer string, ttl time.Duration, opts ...Option) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}

	s := &Signer{
		key:    []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueToken signs a token carrying identity.
func (s *Signer) IssueToken(identity auth.Identity) (string, error) {
	now := s.clock()

	permissions := identity.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	tok, err := jwxjwt.NewBuilder().
		Issuer(s.issuer).
		Subject(identity.ID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim(ClaimID, identity.ID).
		Claim(ClaimEmail, identity.Email).
		Claim(ClaimRole, identity.Role).
		Claim(ClaimPermissions, permissions).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// ParseToken verifies the signature, then the expiry, then the remaining
// registered claims. Expiry is classified before issuer or claim shape so
// an expired token is never reported as invalid.
func (s *Signer) ParseToken(_ context.Context, raw string) (*auth.Claims, error) {
	tok, err := jwxjwt.Parse([]byte(raw),
		jwxjwt.WithKey(jwa.HS256, s.key),
		jwxjwt.WithValidate(false),
	)
	if err != nil {
		return nil, auth.NewAuthError(auth.KindInvalidToken, err)
	}

	now := s.clock()
	exp := tok.Expiration()
	if exp.IsZero() {
		return nil, auth.NewAuthError(auth.KindInvalidToken, errors.New(`missing "exp" claim`))
	}
	if !now.Before(exp) {
		return nil, auth.NewAuthError(auth.KindExpiredToken, jwxjwt.ErrTokenExpired())
	}

	if err := jwxjwt.Validate(tok,
		jwxjwt.WithIssuer(s.issuer),
		jwxjwt.WithClock(jwxjwt.ClockFunc(s.clock)),
	); err != nil {
		return nil, auth.NewAuthError(auth.KindInvalidToken, err)
	}

	identity, err := identityFromToken(tok)
	if err != nil {
		return nil, auth.NewAuthError(auth.KindInvalidToken, err)
	}

	return &auth.Claims{
		Identity:  *identity,
		Issuer:    tok.Issuer(),
		IssuedAt:  tok.IssuedAt().Unix(),
		ExpiresAt: exp.Unix(),
	}, nil
}

func identityFromToken(tok jwxjwt.Token) (*auth.Identity, error) {
	id, err := stringClaim(tok, ClaimID)
	if err != nil {
		if tok.Subject() == "" {
			return nil, err
		}
		id = tok.Subject()
	}
	email, err := stringClaim(tok, ClaimEmail)
	if err != nil {
		return nil, err
	}
	role, err := stringClaim(tok, ClaimRole)
	if err != nil {
		return nil, err
	}
	permissions, err := stringsClaim(tok, ClaimPermissions)
	if err != nil {
		return nil, err
	}

	return &auth.Identity{
		ID:          id,
		Email:       email,
		Role:        role,
		Permissions: permissions,
	}, nil
}

func stringClaim(tok jwxjwt.Token, name string) (string, error) {
	v, ok := tok.Get(name)
	if !ok {
		return "", fmt.Errorf("missing %q claim", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("claim %q must be a non-empty string", name)
	}
	return s, nil
}

func stringsClaim(tok jwxjwt.Token, name string) ([]string, error) {
	v, ok := tok.Get(name)
	if !ok {
		return []string{}, nil
	}

	switch values := v.(type) {
	case []string:
		return values, nil
	case []interface{}:
		out := make([]string, 0, len(values))
		for _, item := range values {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("claim %q must contain only strings", name)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("claim %q must be a list", name)
	}
}
