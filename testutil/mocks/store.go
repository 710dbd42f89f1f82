package mocks

import (
	"context"
	"sync"

	"github.com/sanchez314c/agent-chat/llm/credentials"
)

// SpyStore is an in-memory credential store that counts calls and can be
// told to fail.
type SpyStore struct {
	mu      sync.Mutex
	secrets map[string]string
	gets    int
	sets    int
	deletes int
	err     error
}

// NewSpyStore creates an empty store.
func NewSpyStore() *SpyStore {
	return &SpyStore{secrets: make(map[string]string)}
}

// WithSecret seeds a credential.
func (s *SpyStore) WithSecret(providerID, secret string) *SpyStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[providerID] = secret
	return s
}

// WithError makes every call return err.
func (s *SpyStore) WithError(err error) *SpyStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Get implements credentials.Store.
func (s *SpyStore) Get(_ context.Context, providerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.secrets[providerID]
	if !ok {
		return "", credentials.ErrNotFound
	}
	return v, nil
}

// Set implements credentials.Store.
func (s *SpyStore) Set(_ context.Context, providerID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.err != nil {
		return s.err
	}
	s.secrets[providerID] = secret
	return nil
}

// Delete implements credentials.Store.
func (s *SpyStore) Delete(_ context.Context, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.err != nil {
		return s.err
	}
	delete(s.secrets, providerID)
	return nil
}

// Gets returns how many times Get was called.
func (s *SpyStore) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// Sets returns how many times Set was called.
func (s *SpyStore) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// Deletes returns how many times Delete was called.
func (s *SpyStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}
