package session

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrEmptyToken is returned by Set when the token is blank.
	ErrEmptyToken = errors.New("empty access token")
	// ErrBackendUnavailable wraps failures of remote store backends.
	ErrBackendUnavailable = errors.New("token store backend unavailable")
)

// Store is the single source of truth for the current access token.
type Store interface {
	// Get returns the current token. ok is false when no token is held.
	Get(ctx context.Context) (token string, ok bool, err error)
	// Set replaces the current token.
	Set(ctx context.Context, token string) error
	// Clear removes the token, signalling a logged-out state.
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the current token.
func (s *MemoryStore) Get(context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != "", nil
}

// Set replaces the current token.
func (s *MemoryStore) Set(_ context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear drops the current token. Clearing an empty store is a no-op.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
