// Package archive mirrors completed session records to a Google Drive
// folder so they survive the host.
package archive

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/pbram/livescene/internal/journal"
)

// Syncer uploads session records to one Drive folder, one file per session.
// Uploads are keyed by session id in memory, so a record already pushed in
// this process is updated rather than duplicated.
type Syncer struct {
	service  *drive.Service
	folderID string
	journal  *journal.Journal
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string, jnl *journal.Journal) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Syncer{
		service:  svc,
		folderID: folderID,
		journal:  jnl,
		fileIDs:  make(map[string]string),
	}, nil
}

// SyncSessions uploads every completed session record. The active session is
// skipped while it is still being written to; it is picked up once a new
// session replaces it. Per-session failures are logged and retried on the
// next run.
func (s *Syncer) SyncSessions() error {
	summaries, err := s.journal.ListSessions()
	if err != nil {
		return err
	}
	active := s.journal.ActiveSessionID()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, summary := range summaries {
		if summary.ID == active {
			continue
		}
		if err := s.syncSession(summary.ID); err != nil {
			log.Printf("warning: archive session %s: %v", summary.ID, err)
		}
	}
	return nil
}

// syncSession must be called with the syncer mutex held.
func (s *Syncer) syncSession(id string) error {
	f, err := os.Open(s.journal.SessionFilePath(id))
	if err != nil {
		return fmt.Errorf("open session record: %w", err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[id]; ok {
		if _, err := s.service.Files.Update(fileID, &drive.File{}).Media(f).Do(); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := s.service.Files.Create(&drive.File{
		Name:     "livescene-session-" + id + ".json",
		MimeType: "application/json",
		Parents:  []string{s.folderID},
	}).Media(f).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[id] = doc.Id
	return nil
}

// Schedule runs SyncSessions on the given cron expression ("@every 10m"
// style descriptors included) and starts the runner. The caller stops the
// returned runner on shutdown.
func (s *Syncer) Schedule(schedule string) (*cron.Cron, error) {
	runner := cron.New()
	if _, err := runner.AddFunc(schedule, func() {
		if err := s.SyncSessions(); err != nil {
			log.Printf("warning: session archive: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("parse archive schedule: %w", err)
	}
	runner.Start()
	return runner, nil
}
