package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type styleRecord struct {
	StyleText string `json:"style_text"`
}

// StyleStore holds the global style directive applied to every generated
// image.
type StyleStore struct {
	path string
	mu   sync.Mutex
}

func NewStyleStore(dir string) (*StyleStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir style store: %w", err)
	}
	return &StyleStore{path: filepath.Join(dir, "style.json")}, nil
}

func (s *StyleStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := styleRecord{StyleText: DefaultStyle}
	if _, err := readRecord(s.path, &record); err != nil {
		return "", err
	}
	return record.StyleText, nil
}

func (s *StyleStore) Update(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeRecord(s.path, styleRecord{StyleText: text}); err != nil {
		return fmt.Errorf("save style: %w", err)
	}
	return nil
}

// Reset restores the default style directive and returns it.
func (s *StyleStore) Reset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeRecord(s.path, styleRecord{StyleText: DefaultStyle}); err != nil {
		return "", fmt.Errorf("save style: %w", err)
	}
	return DefaultStyle, nil
}
