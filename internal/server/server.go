// Package server exposes the live-scene web app: the REST API, the
// websocket event stream, and the static UI.
package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/pbram/livescene/internal/imagecache"
	"github.com/pbram/livescene/internal/journal"
	"github.com/pbram/livescene/internal/pipeline"
	"github.com/pbram/livescene/internal/store"
)

// PipelineRunner turns one uploaded audio chunk into a pipeline outcome.
type PipelineRunner interface {
	Run(ctx context.Context, audio []byte) pipeline.Outcome
}

// SessionBrowser is the read side of the session journal.
type SessionBrowser interface {
	ListSessions() ([]journal.SessionSummary, error)
	GetSession(id string) (journal.Session, error)
	ImagePath(sessionID, filename string) string
}

// Deps collects everything the HTTP layer serves or mutates. Pipeline may
// be nil when no transcription backend is configured; the stores, cache,
// and sessions browser are required.
type Deps struct {
	Pipeline    PipelineRunner
	Characters  *store.CharacterStore
	Environment *store.EnvironmentStore
	Scene       *store.SceneStore
	Style       *store.StyleStore
	Cache       *imagecache.Cache
	Sessions    SessionBrowser
}

// Handler builds the full HTTP handler: websocket endpoint, API routes,
// image routes, and the embedded frontend with SPA-style fallback.
func Handler(staticFS fs.FS, hub *Hub, deps Deps) (http.Handler, error) {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, deps)
	registerAPIRoutes(mux, hub, deps)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux, nil
}

// Serve blocks, serving the app on addr.
func Serve(addr string, staticFS fs.FS, hub *Hub, deps Deps) error {
	handler, err := Handler(staticFS, hub, deps)
	if err != nil {
		return err
	}

	log.Printf("web UI at http://%s", addr)
	return http.ListenAndServe(addr, handler)
}

// serveSPA serves static assets, falling back to index.html for paths
// without a file extension so client-side routing works.
func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Dynamic routes never fall through to the frontend.
		if r.URL.Path == "/ws" || r.URL.Path == "/upload_audio" ||
			strings.HasPrefix(r.URL.Path, "/api/") ||
			strings.HasPrefix(r.URL.Path, "/scene_images/") ||
			strings.HasPrefix(r.URL.Path, "/session_images/") ||
			strings.HasPrefix(r.URL.Path, "/character_images/") {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/index.html"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
