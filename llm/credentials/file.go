package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps secrets in a single JSON file. The whole document is
// rewritten on every change via a temp file and rename.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	secrets map[string]string
	closed  bool
}

type fileDocument struct {
	Credentials map[string]string `json:"credentials"`
}

// NewFileStore opens or creates the store at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("credential file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	s := &FileStore{path: path, secrets: make(map[string]string)}
	if err := s.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load credentials from disk: %w", err)
	}
	return s, nil
}

func (s *FileStore) loadFromDisk() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Credentials != nil {
		s.secrets = doc.Credentials
	}
	return nil
}

func (s *FileStore) saveToDisk() error {
	data, err := json.MarshalIndent(fileDocument{Credentials: s.secrets}, "", "  ")
	if err != nil {
		return err
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}

// Get returns the secret for providerID.
func (s *FileStore) Get(_ context.Context, providerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	secret, ok := s.secrets[providerID]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set stores secret and persists the file.
func (s *FileStore) Set(_ context.Context, providerID, secret string) error {
	if err := validate(providerID, secret); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	prev, had := s.secrets[providerID]
	s.secrets[providerID] = secret
	if err := s.saveToDisk(); err != nil {
		if had {
			s.secrets[providerID] = prev
		} else {
			delete(s.secrets, providerID)
		}
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

// Delete removes the secret and persists the file.
func (s *FileStore) Delete(_ context.Context, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.secrets[providerID]; !ok {
		return nil
	}
	delete(s.secrets, providerID)
	return s.saveToDisk()
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
