package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshToken is one stored refresh credential.
type RefreshToken struct {
	Subject   string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
}

// RefreshStore persists issued refresh tokens so redemption can be
// checked against the server, not just the signature. A token missing
// from the store, revoked, or past expiry cannot be redeemed.
type RefreshStore interface {
	Save(ctx context.Context, subject, token string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

// MemoryRefreshStore keeps refresh tokens in a mutex-guarded map.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
}

// NewMemoryRefreshStore creates an empty store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{tokens: make(map[string]RefreshToken)}
}

// Save stores a refresh token.
func (s *MemoryRefreshStore) Save(ctx context.Context, subject, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = RefreshToken{Subject: subject, Token: token, ExpiresAt: expiresAt}
	return nil
}

// Lookup returns the stored token, or nil when unknown.
func (s *MemoryRefreshStore) Lookup(ctx context.Context, token string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Revoke marks a token revoked. Unknown tokens are a no-op.
func (s *MemoryRefreshStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		t.Revoked = true
		s.tokens[token] = t
	}
	return nil
}
