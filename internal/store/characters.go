package store

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// CharacterStore manages the character directory and the image files the
// characters own. Image references are URL paths under /character_images/.
type CharacterStore struct {
	dir string
	mu  sync.Mutex
}

func NewCharacterStore(dir string) (*CharacterStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir character images: %w", err)
	}
	return &CharacterStore{dir: dir}, nil
}

// Upsert adds or replaces the character stored under id and returns the full
// directory. An existing image reference is preserved when the incoming
// record carries none, so re-saving a character never detaches its portrait.
func (s *CharacterStore) Upsert(id string, ch Character) (map[string]Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	characters, err := s.load()
	if err != nil {
		return nil, err
	}

	if ch.ImageURL == "" {
		if existing, ok := characters[id]; ok {
			ch.ImageURL = existing.ImageURL
		}
	}
	characters[id] = ch

	if err := writeRecord(s.filePath(), characters); err != nil {
		return nil, fmt.Errorf("save characters: %w", err)
	}
	return characters, nil
}

func (s *CharacterStore) Get(id string) (Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	characters, err := s.load()
	if err != nil {
		return Character{}, err
	}
	ch, ok := characters[id]
	if !ok {
		return Character{}, fmt.Errorf("character %q: %w", id, ErrNotFound)
	}
	return ch, nil
}

// All returns the full character directory keyed by id.
func (s *CharacterStore) All() (map[string]Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// List returns the characters ordered by id. A character with no name is
// presented under its id so downstream prompts always have something to call
// it.
func (s *CharacterStore) List() ([]Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	characters, err := s.load()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(characters))
	for id := range characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]Character, 0, len(ids))
	for _, id := range ids {
		ch := characters[id]
		if ch.Name == "" {
			ch.Name = id
		}
		result = append(result, ch)
	}
	return result, nil
}

// Remove deletes the character stored under id, reporting whether it existed.
// The character's image file is deleted as well; a failed image cleanup is
// logged and does not fail the removal.
func (s *CharacterStore) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	characters, err := s.load()
	if err != nil {
		return false, err
	}
	ch, ok := characters[id]
	if !ok {
		return false, nil
	}

	if ch.ImageURL != "" {
		imagePath := s.ImagePath(strings.TrimPrefix(ch.ImageURL, "/character_images/"))
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			log.Printf("warning: remove character image %s: %v", imagePath, err)
		}
	}

	delete(characters, id)
	if err := writeRecord(s.filePath(), characters); err != nil {
		return false, fmt.Errorf("save characters: %w", err)
	}
	return true, nil
}

// SaveImage stores an uploaded portrait for an existing character under a
// unique filename and records the new image reference on the character. It
// returns the URL path the image is served under.
func (s *CharacterStore) SaveImage(id, filename string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	characters, err := s.load()
	if err != nil {
		return "", err
	}
	ch, ok := characters[id]
	if !ok {
		return "", fmt.Errorf("character %q: %w", id, ErrNotFound)
	}

	name := uuid.NewString() + "_" + sanitizeFilename(filename)
	path := s.ImagePath(name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}

	ch.ImageURL = "/character_images/" + name
	characters[id] = ch
	if err := writeRecord(s.filePath(), characters); err != nil {
		return "", fmt.Errorf("save characters: %w", err)
	}
	return ch.ImageURL, nil
}

// ImagePath resolves a stored image filename to its path on disk.
func (s *CharacterStore) ImagePath(filename string) string {
	return filepath.Join(s.dir, "images", filepath.Base(filename))
}

func (s *CharacterStore) filePath() string {
	return filepath.Join(s.dir, "characters.json")
}

func (s *CharacterStore) load() (map[string]Character, error) {
	characters := make(map[string]Character)
	if _, err := readRecord(s.filePath(), &characters); err != nil {
		return nil, err
	}
	return characters, nil
}

func sanitizeFilename(filename string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(filepath.Base(filename), "_")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "upload.png"
	}
	return cleaned
}
