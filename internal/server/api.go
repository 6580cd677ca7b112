package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pbram/livescene/internal/journal"
	"github.com/pbram/livescene/internal/pipeline"
	"github.com/pbram/livescene/internal/store"
)

const (
	maxAudioUploadBytes = 16 << 20
	maxImageUploadBytes = 8 << 20
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func registerAPIRoutes(mux *http.ServeMux, hub *Hub, deps Deps) {
	mux.HandleFunc("POST /upload_audio", func(w http.ResponseWriter, r *http.Request) {
		if deps.Pipeline == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "pipeline not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxAudioUploadBytes)
		file, _, err := r.FormFile("audio")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "missing audio file")
			return
		}
		defer func() { _ = file.Close() }()

		audio, err := io.ReadAll(file)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read audio: %v", err))
			return
		}

		// A disconnecting uploader must not cancel a run already in flight.
		outcome := deps.Pipeline.Run(context.WithoutCancel(r.Context()), audio)
		writeOutcome(w, outcome)
	})

	mux.HandleFunc("GET /api/characters", func(w http.ResponseWriter, r *http.Request) {
		characters, err := deps.Characters.All()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list characters: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, characters)
	})

	mux.HandleFunc("GET /api/characters/{id}", func(w http.ResponseWriter, r *http.Request) {
		character, err := deps.Characters.Get(r.PathValue("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "character not found")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get character: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, character)
	})

	mux.HandleFunc("POST /api/characters/{id}", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			ImageURL    string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if payload.Name == "" || payload.Description == "" {
			writeJSONError(w, http.StatusBadRequest, "name and description are required")
			return
		}

		characters, err := deps.Characters.Upsert(r.PathValue("id"), store.Character{
			Name:        payload.Name,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
		})
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("save character: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, characters)
	})

	mux.HandleFunc("POST /api/characters/{id}/image", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "missing image file")
			return
		}
		defer func() { _ = file.Close() }()

		imageURL, err := deps.Characters.SaveImage(r.PathValue("id"), header.Filename, file)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "character not found")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("save character image: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"image_url": imageURL})
	})

	mux.HandleFunc("DELETE /api/characters/{id}", func(w http.ResponseWriter, r *http.Request) {
		removed, err := deps.Characters.Remove(r.PathValue("id"))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("delete character: %v", err))
			return
		}
		if !removed {
			writeJSONError(w, http.StatusNotFound, "character not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "character deleted"})
	})

	mux.HandleFunc("GET /api/environment", func(w http.ResponseWriter, r *http.Request) {
		env, err := deps.Environment.Get()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get environment: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, env)
	})

	mux.HandleFunc("POST /api/environment", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Description string `json:"description"`
			Locked      *bool  `json:"locked"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if payload.Description == "" && payload.Locked == nil {
			writeJSONError(w, http.StatusBadRequest, "description or locked is required")
			return
		}

		env, err := deps.Environment.Update(payload.Description, payload.Locked)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("save environment: %v", err))
			return
		}

		// Broadcast the stored description, which may differ from the
		// submitted one when the lock suppressed it.
		hub.EnvironmentChanged(env.Description)
		writeJSON(w, http.StatusOK, env)
	})

	mux.HandleFunc("GET /api/scene_prompt", func(w http.ResponseWriter, r *http.Request) {
		prompt, err := deps.Scene.LastPrompt()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get scene prompt: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
	})

	mux.HandleFunc("DELETE /api/scene_prompt", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Scene.Clear(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("clear scene prompt: %v", err))
			return
		}
		hub.ScenePromptReady("")
		writeJSON(w, http.StatusOK, map[string]string{"prompt": ""})
	})

	mux.HandleFunc("GET /api/style", func(w http.ResponseWriter, r *http.Request) {
		style, err := deps.Style.Get()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get style: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"style_text": style})
	})

	mux.HandleFunc("POST /api/style", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			StyleText string `json:"style_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if payload.StyleText == "" {
			writeJSONError(w, http.StatusBadRequest, "style_text is required")
			return
		}

		if err := deps.Style.Update(payload.StyleText); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("save style: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"style_text": payload.StyleText})
	})

	mux.HandleFunc("POST /api/style/reset", func(w http.ResponseWriter, r *http.Request) {
		style, err := deps.Style.Reset()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("reset style: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"style_text": style})
	})

	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := deps.Sessions.ListSessions()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		session, err := deps.Sessions.GetSession(sessionID)
		if err != nil {
			if errors.Is(err, journal.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "session not found")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, session)
	})

	mux.HandleFunc("GET /scene_images/{file}", func(w http.ResponseWriter, r *http.Request) {
		serveImage(w, r, deps.Cache.PathOf(r.PathValue("file")))
	})

	mux.HandleFunc("GET /session_images/{id}/{file}", func(w http.ResponseWriter, r *http.Request) {
		serveImage(w, r, deps.Sessions.ImagePath(r.PathValue("id"), r.PathValue("file")))
	})

	mux.HandleFunc("GET /character_images/{file}", func(w http.ResponseWriter, r *http.Request) {
		serveImage(w, r, deps.Characters.ImagePath(r.PathValue("file")))
	})
}

func writeOutcome(w http.ResponseWriter, outcome pipeline.Outcome) {
	switch outcome.Status {
	case pipeline.StatusDone:
		writeJSON(w, http.StatusOK, map[string]any{"status": outcome.Status, "image_url": outcome.ImageURL})
	case pipeline.StatusNoContent, pipeline.StatusNoScene:
		writeJSON(w, http.StatusOK, map[string]any{"status": outcome.Status})
	case pipeline.StatusTranscriptionFailed:
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("transcription failed: %v", outcome.Err))
	case pipeline.StatusImageGenFailed:
		writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("image generation failed: %v", outcome.Err))
	case pipeline.StatusCacheFailed:
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("image caching failed: %v", outcome.Err))
	default:
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("unexpected pipeline status %q", outcome.Status))
	}
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func serveImage(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "image not found")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSONError(w, http.StatusNotFound, "image not found")
		return
	}

	// Image filenames are never reused (increasing keys, uuid prefixes), so
	// a stored name's bytes never change.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
