package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps secrets in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

// Get returns the secret for providerID.
func (s *MemoryStore) Get(_ context.Context, providerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[providerID]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set stores secret for providerID.
func (s *MemoryStore) Set(_ context.Context, providerID, secret string) error {
	if err := validate(providerID, secret); err != nil {
		return err
	}
	s.mu.Lock()
	s.secrets[providerID] = secret
	s.mu.Unlock()
	return nil
}

// Delete removes the secret. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, providerID string) error {
	s.mu.Lock()
	delete(s.secrets, providerID)
	s.mu.Unlock()
	return nil
}
