package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indyzai/api-gateway/internal/auth"
)

const (
	testSecret = "test-secret-key"
	testIssuer = "IndyzAI-Gateway"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	s, err := NewSigner(testSecret, testIssuer, time.Hour, WithClock(fixedClock(now)))
	require.NoError(t, err)
	return s
}

func testIdentity() auth.Identity {
	return auth.Identity{
		ID:          "u-1",
		Email:       "user@indyzai.com",
		Role:        "user",
		Permissions: []string{"read"},
	}
}

func TestNewSigner(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		ttl     time.Duration
		wantErr bool
	}{
		{name: "valid", secret: "s", ttl: time.Minute},
		{name: "empty secret", secret: "", ttl: time.Minute, wantErr: true},
		{name: "zero ttl", secret: "s", ttl: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSigner(tt.secret, testIssuer, tt.ttl)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestSigner_RoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(t, now)

	token, err := s.IssueToken(testIdentity())
	require.NoError(t, err)

	claims, err := s.ParseToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity(), claims.Identity)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, now.Unix(), claims.IssuedAt)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt)
}

func TestSigner_RoundTripWithoutPermissions(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(t, now)

	id := testIdentity()
	id.Permissions = nil
	token, err := s.IssueToken(id)
	require.NoError(t, err)

	claims, err := s.ParseToken(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, claims.Permissions)
}

func TestSigner_Expired(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	token, err := newTestSigner(t, issued).IssueToken(testIdentity())
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
	}{
		{name: "exactly at expiry", now: issued.Add(time.Hour)},
		{name: "after expiry", now: issued.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestSigner(t, tt.now).ParseToken(context.Background(), token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrExpiredToken))
			kind, ok := auth.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, auth.KindExpiredToken, kind)
		})
	}
}

func TestSigner_ExpiredWinsOverWrongIssuer(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	other, err := NewSigner(testSecret, "someone-else", time.Minute, WithClock(fixedClock(issued)))
	require.NoError(t, err)
	token, err := other.IssueToken(testIdentity())
	require.NoError(t, err)

	_, err = newTestSigner(t, issued.Add(time.Hour)).ParseToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestSigner_Invalid(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(t, now)

	wrongKey, err := NewSigner("another-secret", testIssuer, time.Hour, WithClock(fixedClock(now)))
	require.NoError(t, err)
	wrongKeyToken, err := wrongKey.IssueToken(testIdentity())
	require.NoError(t, err)

	wrongIssuer, err := NewSigner(testSecret, "someone-else", time.Hour, WithClock(fixedClock(now)))
	require.NoError(t, err)
	wrongIssuerToken, err := wrongIssuer.IssueToken(testIdentity())
	require.NoError(t, err)

	noExp, err := jwxjwt.NewBuilder().
		Issuer(testIssuer).
		Claim(ClaimID, "u-1").
		Claim(ClaimEmail, "a@b.c").
		Claim(ClaimRole, "user").
		Build()
	require.NoError(t, err)
	noExpToken, err := jwxjwt.Sign(noExp, jwxjwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)

	noRole, err := jwxjwt.NewBuilder().
		Issuer(testIssuer).
		Expiration(now.Add(time.Hour)).
		Claim(ClaimID, "u-1").
		Claim(ClaimEmail, "a@b.c").
		Build()
	require.NoError(t, err)
	noRoleToken, err := jwxjwt.Sign(noRole, jwxjwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "malformed", token: "not.a.token"},
		{name: "garbage", token: "garbage"},
		{name: "wrong key", token: wrongKeyToken},
		{name: "wrong issuer", token: wrongIssuerToken},
		{name: "missing exp", token: string(noExpToken)},
		{name: "missing role", token: string(noRoleToken)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
			assert.NotErrorIs(t, err, auth.ErrExpiredToken)
		})
	}
}

func TestSigner_WithVerifier(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(t, now)
	v := auth.NewVerifier(s)

	token, err := s.IssueToken(testIdentity())
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.ID)
	assert.True(t, identity.HasPermission("read"))

	assert.Nil(t, v.OptionalVerify(context.Background(), "bad"))
	assert.NotNil(t, v.OptionalVerify(context.Background(), token))
}
