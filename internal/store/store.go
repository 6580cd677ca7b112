// Package store holds the process-wide singleton game state: the character
// directory, the shared environment description, the last scene prompt, and
// the global style directive. Each store owns one mutex and runs its whole
// load-mutate-save sequence inside it, so concurrent pipeline runs and manual
// edits can never interleave a read and a write and lose an update.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultEnvironmentDescription seeds a fresh environment store.
const DefaultEnvironmentDescription = "A generic fantasy setting with no specific details yet."

// DefaultStyle seeds a fresh style store and is the reset target.
const DefaultStyle = "Art style: fantasy oil painting. Color palette: vibrant and rich. Lighting: dramatic with strong shadows and highlights. Composition: balanced and cinematic. Level of detail: high with carefully rendered textures."

type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

type Environment struct {
	Description string `json:"description"`
	Locked      bool   `json:"locked"`
}

type ScenePrompt struct {
	LastPrompt string `json:"last_prompt"`
	Timestamp  int64  `json:"timestamp"`
}

// readRecord loads a JSON record into v. A missing file is not an error; it
// reports found=false and leaves v untouched so callers keep their defaults.
func readRecord(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// writeRecord replaces the record at path atomically: the new content lands
// in a sibling temp file first and is renamed over the old record, so readers
// never observe a partially written file.
func writeRecord(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
