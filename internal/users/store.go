package users

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store persists users.
type Store interface {
	Create(ctx context.Context, u User) error
	ByEmail(ctx context.Context, email string) (User, error)
	ByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a process-local Store. Emails are matched
// case-insensitively.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return ErrUserExists
	}
	s.byID[u.ID] = u.clone()
	s.byEmail[key] = u.ID
	return nil
}

// ByEmail implements Store.
func (s *MemoryStore) ByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id].clone(), nil
}

// ByID implements Store.
func (s *MemoryStore) ByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u.clone(), nil
}

// List implements Store. Users are ordered by creation time, then email.
func (s *MemoryStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// Update implements Store. The email of a user cannot change.
func (s *MemoryStore) Update(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	u.Email = existing.Email
	s.byID[u.ID] = u.clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, emailKey(u.Email))
	return nil
}
