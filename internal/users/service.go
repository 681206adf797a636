package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/authz"
	"github.com/indyzai/api-gateway/internal/observability"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  Public `json:"user"`
	Token string `json:"token"`
}

// Seed describes an account created at startup.
type Seed struct {
	Email       string
	Password    string
	Role        string
	Permissions []string
}

// DefaultSeeds returns the accounts available on a fresh gateway.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Email:       "admin@indyzai.com",
			Password:    "Admin123!",
			Role:        authz.RoleAdmin,
			Permissions: authz.PermissionsForRole(authz.RoleAdmin),
		},
		{
			Email:       "user@indyzai.com",
			Password:    "User123!",
			Role:        authz.RoleUser,
			Permissions: authz.PermissionsForRole(authz.RoleUser),
		},
	}
}

// Stats summarizes the user base.
type Stats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"byRole"`
}

// Service implements account operations.
type Service struct {
	store  Store
	tokens auth.TokenIssuer
	cost   int
	clock  func() time.Time
	logger observability.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service storing accounts in store and issuing
// tokens with tokens.
func NewService(store Store, tokens auth.TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		clock:  time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed creates the given accounts, skipping emails that already exist.
func (s *Service) Seed(ctx context.Context, seeds []Seed) error {
	for _, seed := range seeds {
		perms := seed.Permissions
		if perms == nil {
			perms = authz.PermissionsForRole(seed.Role)
		}
		_, err := s.create(ctx, seed.Email, seed.Password, seed.Role, perms)
		if err != nil && !errors.Is(err, ErrUserExists) {
			return fmt.Errorf("seed %s: %w", seed.Email, err)
		}
	}

	emails := make([]string, len(seeds))
	for i, seed := range seeds {
		emails[i] = seed.Email
	}
	s.logger.Info("default users initialized",
		observability.Int("user_count", len(seeds)),
		observability.Strings("emails", emails),
	)
	return nil
}

// Register creates an account with the default permissions of role and
// returns it with a fresh token.
func (s *Service) Register(ctx context.Context, email, password, role string) (*AuthResult, error) {
	if role == "" {
		role = authz.RoleUser
	}

	u, err := s.create(ctx, email, password, role, authz.PermissionsForRole(role))
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("user registered",
		observability.String("user_id", u.ID),
		observability.String("email", u.Email),
		observability.String("role", u.Role),
	)
	return s.authResult(u)
}

// Login checks credentials and returns the account with a fresh token.
// Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.store.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	u.LastLogin = s.clock()
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("user logged in",
		observability.String("user_id", u.ID),
		observability.String("email", u.Email),
		observability.String("role", u.Role),
	)
	return s.authResult(u)
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, id string) (Public, error) {
	u, err := s.store.ByID(ctx, id)
	if err != nil {
		return Public{}, err
	}
	return u.Public(), nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]Public, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Public, len(all))
	for i, u := range all {
		out[i] = u.Public()
	}
	return out, nil
}

// UpdatePermissions replaces the permission set of id. Tokens issued
// before the change keep the old set until they expire.
func (s *Service) UpdatePermissions(ctx context.Context, id string, permissions []string) error {
	u, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}

	u.Permissions = dedupe(permissions)
	if err := s.store.Update(ctx, u); err != nil {
		return err
	}

	s.logger.WithContext(ctx).Info("user permissions updated",
		observability.String("user_id", id),
		observability.Strings("permissions", u.Permissions),
	)
	return nil
}

// Delete removes the account with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithContext(ctx).Info("user deleted", observability.String("user_id", id))
	return nil
}

// DeleteAs removes id on behalf of actor. An actor cannot delete their own
// account.
func (s *Service) DeleteAs(ctx context.Context, actor *auth.Identity, id string) error {
	if actor != nil && actor.ID == id {
		return ErrSelfDelete
	}
	return s.Delete(ctx, id)
}

// Stats counts accounts per role.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(all), ByRole: make(map[string]int)}
	for _, u := range all {
		stats.ByRole[u.Role]++
	}
	return stats, nil
}

func (s *Service) create(ctx context.Context, email, password, role string, perms []string) (User, error) {
	if _, err := s.store.ByEmail(ctx, email); err == nil {
		return User{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Permissions:  dedupe(perms),
		CreatedAt:    s.clock(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) authResult(u User) (*AuthResult, error) {
	token, err := s.tokens.IssueToken(u.Identity())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{User: u.Public(), Token: token}, nil
}

// dedupe returns perms without duplicates, keeping first occurrences.
func dedupe(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
