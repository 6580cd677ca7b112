package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pbram/livescene/internal/analyzer"
	"github.com/pbram/livescene/internal/archive"
	"github.com/pbram/livescene/internal/composer"
	"github.com/pbram/livescene/internal/config"
	"github.com/pbram/livescene/internal/imagecache"
	"github.com/pbram/livescene/internal/imagegen"
	"github.com/pbram/livescene/internal/journal"
	"github.com/pbram/livescene/internal/llm"
	"github.com/pbram/livescene/internal/pipeline"
	"github.com/pbram/livescene/internal/server"
	"github.com/pbram/livescene/internal/store"
	"github.com/pbram/livescene/internal/transcribe"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	log.Println("livescene: starting")

	_ = godotenv.Load()

	cfg, warnings, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, warning := range warnings {
		log.Printf("warning: %s", warning)
	}

	characters, err := store.NewCharacterStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("character store init failed: %v", err)
	}
	environment, err := store.NewEnvironmentStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("environment store init failed: %v", err)
	}
	scene, err := store.NewSceneStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("scene store init failed: %v", err)
	}
	style, err := store.NewStyleStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("style store init failed: %v", err)
	}
	cache, err := imagecache.New(filepath.Join(cfg.DataDir, "scene_images"), cfg.CacheSize)
	if err != nil {
		log.Fatalf("image cache init failed: %v", err)
	}
	sessions, err := journal.New(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		log.Fatalf("session journal init failed: %v", err)
	}

	hub := server.NewHub()

	deps := pipeline.Deps{
		Sink:               hub,
		Characters:         characters,
		Environment:        environment,
		Scene:              scene,
		Style:              style,
		Cache:              cache,
		Journal:            sessions,
		StageTimeout:       cfg.ParsedStageTimeout(),
		MinTranscriptChars: cfg.MinTranscriptChars,
	}

	if cfg.DeepgramAPIKey != "" {
		transcriber, err := transcribe.NewDeepgram(cfg.DeepgramAPIKey, cfg.TranscribeModel, cfg.Language)
		if err != nil {
			log.Printf("warning: deepgram client unavailable, transcription disabled: %v", err)
		} else {
			deps.Transcriber = transcriber
		}
	}

	if provider, model, err := llm.ParseModel(cfg.TextModel); err == nil {
		if key := cfg.KeyForProvider(provider); key != "" {
			client, err := llm.NewClient(provider, key, model)
			if err != nil {
				log.Printf("warning: text model unavailable, scene analysis disabled: %v", err)
			} else {
				deps.Analyzer = analyzer.New(client)
				deps.Composer = composer.New(client)
			}
		}
	}

	if provider, model, err := llm.ParseModel(cfg.ImageModel); err == nil {
		if key := cfg.KeyForProvider(provider); key != "" {
			generator, err := imagegen.NewGenerator(provider, key, model)
			if err != nil {
				log.Printf("warning: image model unavailable, image generation disabled: %v", err)
			} else {
				deps.Generator = generator
			}
		}
	}

	coordinator := pipeline.NewCoordinator(deps)

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	handler, err := server.Handler(assets, hub, server.Deps{
		Pipeline:    coordinator,
		Characters:  characters,
		Environment: environment,
		Scene:       scene,
		Style:       style,
		Cache:       cache,
		Sessions:    sessions,
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := archive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID, sessions)
		if syncErr != nil {
			log.Printf("warning: session archive disabled: %v", syncErr)
		} else if runner, schedErr := syncer.Schedule(cfg.ArchiveSchedule); schedErr != nil {
			log.Printf("warning: session archive disabled: %v", schedErr)
		} else {
			defer runner.Stop()
			log.Printf("session archive enabled (%s)", cfg.ArchiveSchedule)
		}
	}

	log.Printf("livescene: web UI on http://127.0.0.1%s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("livescene: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}
