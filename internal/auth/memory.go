package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and by the API server when no
// database is configured.
type MemStore struct {
	mu     sync.RWMutex
	users  map[string]User
	tokens map[string]RefreshToken
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[string]User),
		tokens: make(map[string]RefreshToken),
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Users(ctx context.Context) UserStore                 { return (*memUsers)(m) }
func (m *MemStore) RefreshTokens(ctx context.Context) RefreshTokenStore { return (*memTokens)(m) }

type memUsers MemStore

func (s *memUsers) Create(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrAlreadyExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUsers) Find(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *memUsers) FindByConfirmToken(ctx context.Context, tokenHash string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tokenHash == "" {
		return User{}, ErrNotFound
	}
	for _, u := range s.users {
		if u.ConfirmTokenHash == tokenHash {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *memUsers) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = StatusActive
	u.ConfirmTokenHash = ""
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *memUsers) UpdateMetadata(ctx context.Context, id string, meta UserMetadata) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Metadata = meta
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

type memTokens MemStore

func (s *memTokens) Create(ctx context.Context, t RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.ID]; ok {
		return ErrAlreadyExists
	}
	s.tokens[t.ID] = t
	return nil
}

func (s *memTokens) Find(ctx context.Context, id string) (RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return t, nil
}

func (s *memTokens) MarkRevoked(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.Revoked = true
	s.tokens[id] = t
	return nil
}

func (s *memTokens) MarkRevokedByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			s.tokens[id] = t
		}
	}
	return nil
}

func (s *memTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}
