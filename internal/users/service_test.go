package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/observability"
)

type stubIssuer struct {
	issued []auth.Identity
	err    error
}

func (s *stubIssuer) IssueToken(identity auth.Identity) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.issued = append(s.issued, identity)
	return "token-" + identity.ID, nil
}

func newTestService(t *testing.T, opts ...Option) (*Service, *stubIssuer) {
	t.Helper()
	issuer := &stubIssuer{}
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(NewMemoryStore(), issuer, opts...), issuer
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		role      string
		wantRole  string
		wantPerms []string
	}{
		{name: "default role", role: "", wantRole: "user", wantPerms: []string{"read", "write"}},
		{name: "admin", role: "admin", wantRole: "admin", wantPerms: []string{"read", "write", "delete", "admin"}},
		{name: "moderator", role: "moderator", wantRole: "moderator", wantPerms: []string{"read", "write", "moderate"}},
		{name: "unknown role", role: "guest", wantRole: "guest", wantPerms: []string{"read"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, issuer := newTestService(t)

			res, err := svc.Register(context.Background(), "new@indyzai.com", "Passw0rd!", tt.role)
			require.NoError(t, err)

			assert.NotEmpty(t, res.User.ID)
			assert.Equal(t, "new@indyzai.com", res.User.Email)
			assert.Equal(t, tt.wantRole, res.User.Role)
			assert.Equal(t, tt.wantPerms, res.User.Permissions)
			assert.Equal(t, "token-"+res.User.ID, res.Token)

			require.Len(t, issuer.issued, 1)
			assert.Equal(t, res.User.ID, issuer.issued[0].ID)
			assert.Equal(t, tt.wantPerms, issuer.issued[0].Permissions)
		})
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup@indyzai.com", "Passw0rd!", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "DUP@indyzai.com", "Other0rd!", "")
	assert.ErrorIs(t, err, ErrUserExists)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_Register_IssuerFailure(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	svc := NewService(store, &stubIssuer{err: errors.New("no key")}, WithBcryptCost(bcrypt.MinCost))

	_, err := svc.Register(context.Background(), "a@indyzai.com", "Passw0rd!", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to issue token")
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	reg, err := svc.Register(ctx, "login@indyzai.com", "Passw0rd!", "")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "login@indyzai.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost@indyzai.com", "Passw0rd!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("success", func(t *testing.T) {
		res, err := svc.Login(ctx, "login@indyzai.com", "Passw0rd!")
		require.NoError(t, err)
		assert.Equal(t, reg.User, res.User)
		assert.Equal(t, "token-"+reg.User.ID, res.Token)

		stored, err := svc.store.ByID(ctx, reg.User.ID)
		require.NoError(t, err)
		assert.Equal(t, now, stored.LastLogin)
	})
}

func TestService_Seed(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	svc, _ := newTestService(t, WithLogger(observability.NewLoggerFromZap(zap.New(core))))
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx, DefaultSeeds()))
	// Seeding twice is a no-op.
	require.NoError(t, svc.Seed(ctx, DefaultSeeds()))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	admin, err := svc.Login(ctx, "admin@indyzai.com", "Admin123!")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.User.Role)
	assert.Equal(t, []string{"read", "write", "delete", "admin"}, admin.User.Permissions)

	user, err := svc.Login(ctx, "user@indyzai.com", "User123!")
	require.NoError(t, err)
	assert.Equal(t, "user", user.User.Role)
	assert.Equal(t, []string{"read", "write"}, user.User.Permissions)

	assert.Equal(t, 2, logs.FilterMessage("default users initialized").Len())
}

func TestService_GetAndList(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Seed(ctx, DefaultSeeds()))

	all, err := svc.List(ctx)
	require.NoError(t, err)

	got, err := svc.Get(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, all[0], got)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_UpdatePermissions(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "p@indyzai.com", "Passw0rd!", "")
	require.NoError(t, err)

	require.NoError(t, svc.UpdatePermissions(ctx, reg.User.ID, []string{"read", "billing", "read"}))
	got, err := svc.Get(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "billing"}, got.Permissions)

	require.NoError(t, svc.UpdatePermissions(ctx, reg.User.ID, []string{}))
	got, err = svc.Get(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Permissions)
	assert.NotNil(t, got.Permissions)

	assert.ErrorIs(t, svc.UpdatePermissions(ctx, "missing", nil), ErrUserNotFound)
}

func TestService_DeleteAs(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Seed(ctx, DefaultSeeds()))

	admin, err := svc.Login(ctx, "admin@indyzai.com", "Admin123!")
	require.NoError(t, err)
	user, err := svc.Login(ctx, "user@indyzai.com", "User123!")
	require.NoError(t, err)

	actor := &auth.Identity{ID: admin.User.ID, Role: "admin"}

	t.Run("self delete is refused and the account remains", func(t *testing.T) {
		err := svc.DeleteAs(ctx, actor, admin.User.ID)
		assert.ErrorIs(t, err, ErrSelfDelete)

		_, err = svc.Get(ctx, admin.User.ID)
		assert.NoError(t, err)
	})

	t.Run("other account", func(t *testing.T) {
		require.NoError(t, svc.DeleteAs(ctx, actor, user.User.ID))
		_, err := svc.Get(ctx, user.User.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = svc.Login(ctx, "user@indyzai.com", "User123!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("missing account", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteAs(ctx, actor, "missing"), ErrUserNotFound)
	})
}

func TestService_Stats(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Seed(ctx, DefaultSeeds()))
	_, err := svc.Register(ctx, "m@indyzai.com", "Passw0rd!", "moderator")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"admin": 1, "user": 1, "moderator": 1}, stats.ByRole)
}
