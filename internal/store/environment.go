package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EnvironmentStore holds the shared setting description and its lock flag.
// The lock suppresses automatic updates from transcript analysis; manual
// edits that pass an explicit lock value always go through.
type EnvironmentStore struct {
	path string
	mu   sync.Mutex
}

func NewEnvironmentStore(dir string) (*EnvironmentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir environment store: %w", err)
	}
	return &EnvironmentStore{path: filepath.Join(dir, "environment.json")}, nil
}

func (s *EnvironmentStore) Get() (Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// IsLocked reports whether automatic environment updates are suppressed.
func (s *EnvironmentStore) IsLocked() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return false, err
	}
	return env.Locked, nil
}

// Update applies a new description and optionally toggles the lock, as one
// critical section. The description is dropped when the stored record is
// locked, unless the caller passes an explicit lock value in the same call
// (the manual-override path). A nil locked leaves the flag untouched.
func (s *EnvironmentStore) Update(description string, locked *bool) (Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return Environment{}, err
	}

	if description != "" && (!env.Locked || locked != nil) {
		env.Description = description
	}
	if locked != nil {
		env.Locked = *locked
	}

	if err := writeRecord(s.path, env); err != nil {
		return Environment{}, fmt.Errorf("save environment: %w", err)
	}
	return env, nil
}

func (s *EnvironmentStore) load() (Environment, error) {
	env := Environment{Description: DefaultEnvironmentDescription}
	if _, err := readRecord(s.path, &env); err != nil {
		return Environment{}, err
	}
	return env, nil
}
