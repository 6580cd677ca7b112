// Package journal records what happened during a play session: every
// completed pipeline run appends one scene event (transcript, prompt, image)
// to the current session's durable record. Records are whole JSON files,
// rewritten on every append, with the images copied into a per-session area
// so they outlive cache eviction.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested session record does not exist.
var ErrNotFound = errors.New("session not found")

type SceneEvent struct {
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt"`
	ImagePath  string `json:"image_path"`
}

type Session struct {
	ID        string       `json:"session_id"`
	StartTime string       `json:"start_time"`
	Events    []SceneEvent `json:"events"`
}

type SessionSummary struct {
	ID         string `json:"session_id"`
	StartTime  string `json:"start_time"`
	EventCount int    `json:"event_count"`
}

// Journal tracks the current session and appends scene events to it. Session
// lifecycle and appends serialize under one mutex; the in-memory event list
// is the source of truth for the current session, so a corrupted record on
// disk is rebuilt rather than trusted.
type Journal struct {
	dir       string
	imagesDir string

	mu        sync.Mutex
	currentID string
	startTime string
	events    []SceneEvent
	lastKey   int64
}

func New(dir string) (*Journal, error) {
	imagesDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir session history: %w", err)
	}
	return &Journal{dir: dir, imagesDir: imagesDir}, nil
}

// CurrentSessionID returns the active session id, starting a new session if
// none is active.
func (j *Journal) CurrentSessionID() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentID != "" {
		return j.currentID, nil
	}
	return j.start()
}

// ActiveSessionID returns the active session id without starting one; it is
// empty when no event has arrived yet.
func (j *Journal) ActiveSessionID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.currentID
}

// StartNewSession begins a fresh session: a time-ordered unique id, its own
// image sub-area, and an empty record persisted before any event arrives.
func (j *Journal) StartNewSession() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.start()
}

// AppendSceneEvent copies the image at sourceImagePath into the current
// session's image area, appends a scene event referencing the copy, and
// rewrites the session record. The returned path is the URL path the copied
// image is served under. A failed image copy aborts the append.
func (j *Journal) AppendSceneEvent(transcript, prompt, sourceImagePath string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentID == "" {
		if _, err := j.start(); err != nil {
			return "", err
		}
	}

	name := fmt.Sprintf("image_%d.png", j.nextKey())
	if err := copyFile(sourceImagePath, filepath.Join(j.imagesDir, j.currentID, name)); err != nil {
		return "", fmt.Errorf("copy image into session history: %w", err)
	}

	imagePath := "/session_images/" + j.currentID + "/" + name
	j.events = append(j.events, SceneEvent{
		Type:       "scene",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Transcript: transcript,
		Prompt:     prompt,
		ImagePath:  imagePath,
	})

	if err := j.persist(); err != nil {
		return "", err
	}
	return imagePath, nil
}

// ListSessions returns a summary of every recorded session, newest first.
// Unreadable records are logged and skipped.
func (j *Journal) ListSessions() ([]SessionSummary, error) {
	paths, err := filepath.Glob(filepath.Join(j.dir, "session_*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan session history: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(paths))
	for _, path := range paths {
		var session Session
		data, err := os.ReadFile(path)
		if err == nil {
			err = json.Unmarshal(data, &session)
		}
		if err != nil {
			log.Printf("warning: read session file %s: %v", path, err)
			continue
		}
		summaries = append(summaries, SessionSummary{
			ID:         session.ID,
			StartTime:  session.StartTime,
			EventCount: len(session.Events),
		})
	}

	sort.Slice(summaries, func(i, k int) bool {
		return summaries[i].StartTime > summaries[k].StartTime
	})
	return summaries, nil
}

func (j *Journal) GetSession(id string) (Session, error) {
	data, err := os.ReadFile(j.SessionFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
		}
		return Session{}, fmt.Errorf("read session %q: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("parse session %q: %w", id, err)
	}
	return session, nil
}

// SessionFilePath resolves a session id to its record on disk.
func (j *Journal) SessionFilePath(id string) string {
	return filepath.Join(j.dir, "session_"+id+".json")
}

// ImagePath resolves a session-scoped image filename to its path on disk.
func (j *Journal) ImagePath(sessionID, filename string) string {
	return filepath.Join(j.imagesDir, filepath.Base(sessionID), filepath.Base(filename))
}

// ImagesDir returns the root of the per-session image areas.
func (j *Journal) ImagesDir() string {
	return j.imagesDir
}

// start must be called with the journal mutex held.
func (j *Journal) start() (string, error) {
	id := time.Now().UTC().Format("20060102_150405") + "_" + uuid.NewString()[:8]

	if err := os.MkdirAll(filepath.Join(j.imagesDir, id), 0o755); err != nil {
		return "", fmt.Errorf("mkdir session images: %w", err)
	}

	record := Session{
		ID:        id,
		StartTime: time.Now().UTC().Format(time.RFC3339),
		Events:    []SceneEvent{},
	}
	if err := writeSession(j.SessionFilePath(id), record); err != nil {
		return "", err
	}

	j.currentID = id
	j.startTime = record.StartTime
	j.events = []SceneEvent{}
	log.Printf("started session %s", id)
	return id, nil
}

// persist rewrites the current session record from the in-memory event list.
// A record that no longer parses on disk is rebuilt around the same session
// id; the new event is never dropped.
func (j *Journal) persist() error {
	record := Session{ID: j.currentID, StartTime: j.startTime, Events: j.events}

	if data, err := os.ReadFile(j.SessionFilePath(j.currentID)); err == nil {
		var existing Session
		if err := json.Unmarshal(data, &existing); err == nil && existing.StartTime != "" {
			record.StartTime = existing.StartTime
		} else if err != nil {
			log.Printf("warning: session record %s is corrupt, rebuilding", j.currentID)
		}
	}

	return writeSession(j.SessionFilePath(j.currentID), record)
}

func (j *Journal) nextKey() int64 {
	key := time.Now().UnixNano()
	if key <= j.lastKey {
		key = j.lastKey + 1
	}
	j.lastKey = key
	return key
}

func writeSession(path string, record Session) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session record: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
