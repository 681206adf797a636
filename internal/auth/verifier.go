package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/indyzai/api-gateway/internal/observability"
)

// Claims is the decoded content of a verified token.
type Claims struct {
	Identity
	Issuer    string `json:"iss"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// TokenParser verifies a raw token. Implementations return an *AuthError
// of kind KindExpiredToken or KindInvalidToken on failure.
type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*Claims, error)
}

// TokenIssuer signs a token for an identity.
type TokenIssuer interface {
	IssueToken(identity Identity) (string, error)
}

// TokenSigner both issues and verifies tokens.
type TokenSigner interface {
	TokenParser
	TokenIssuer
}

// Verifier turns bearer credentials into identities.
type Verifier struct {
	parser TokenParser
	logger observability.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger for the verifier.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a verifier backed by parser.
func NewVerifier(parser TokenParser, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		parser: parser,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates token and returns the identity it encodes.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := v.VerifyClaims(ctx, token)
	if err != nil {
		return nil, err
	}
	return claims.Identity.Clone(), nil
}

// VerifyClaims validates token and returns its full claim set.
func (v *Verifier) VerifyClaims(ctx context.Context, token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(KindMissingToken, nil)
	}

	claims, err := v.parser.ParseToken(ctx, token)
	if err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			authErr = NewAuthError(KindInvalidToken, err)
		}
		v.logger.WithContext(ctx).Debug("token verification failed",
			observability.String("kind", string(authErr.Kind)),
			observability.Error(err),
		)
		return nil, authErr
	}

	return claims, nil
}

// OptionalVerify returns the identity for token, or nil when the token is
// absent or fails verification for any reason.
func (v *Verifier) OptionalVerify(ctx context.Context, token string) *Identity {
	identity, err := v.Verify(ctx, token)
	if err != nil {
		return nil
	}
	return identity
}

// BearerToken extracts the credential from an Authorization header value.
// It returns an empty string for any other scheme.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
