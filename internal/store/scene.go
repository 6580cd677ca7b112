package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SceneStore holds the most recently composed scene prompt, which the next
// composition reads back as continuity context.
type SceneStore struct {
	path string
	mu   sync.Mutex
}

func NewSceneStore(dir string) (*SceneStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir scene store: %w", err)
	}
	return &SceneStore{path: filepath.Join(dir, "scene.json")}, nil
}

func (s *SceneStore) Get() (ScenePrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *SceneStore) LastPrompt() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, err := s.load()
	if err != nil {
		return "", err
	}
	return scene.LastPrompt, nil
}

func (s *SceneStore) Update(prompt string) (ScenePrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(prompt)
}

func (s *SceneStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.save("")
	return err
}

func (s *SceneStore) save(prompt string) (ScenePrompt, error) {
	scene := ScenePrompt{LastPrompt: prompt, Timestamp: time.Now().Unix()}
	if err := writeRecord(s.path, scene); err != nil {
		return ScenePrompt{}, fmt.Errorf("save scene prompt: %w", err)
	}
	return scene, nil
}

func (s *SceneStore) load() (ScenePrompt, error) {
	var scene ScenePrompt
	if _, err := readRecord(s.path, &scene); err != nil {
		return ScenePrompt{}, err
	}
	return scene, nil
}
