// Package pipeline runs one recorded audio chunk end to end: transcription,
// environment analysis, scene composition, image generation, caching, and
// journaling.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pbram/livescene/internal/imagecache"
	"github.com/pbram/livescene/internal/journal"
	"github.com/pbram/livescene/internal/store"
)

type Status string

const (
	StatusDone                Status = "done"
	StatusNoContent           Status = "no_content"
	StatusNoScene             Status = "no_scene"
	StatusTranscriptionFailed Status = "transcription_failed"
	StatusImageGenFailed      Status = "image_generation_failed"
	StatusCacheFailed         Status = "cache_failed"
)

// Outcome is the terminal result of one pipeline run. ImageURL is set only
// for StatusDone; Err only for the three failure statuses.
type Outcome struct {
	Status   Status
	ImageURL string
	Err      error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type EnvironmentAnalyzer interface {
	Analyze(ctx context.Context, current, previousPrompt, transcript string) (description string, updated bool, err error)
}

type SceneComposer interface {
	Compose(ctx context.Context, transcript string, characters []store.Character, environment, previousPrompt, style string) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NotificationSink receives best-effort pushes as a run progresses. Delivery
// problems are the sink's to handle; the pipeline never waits on it.
type NotificationSink interface {
	EnvironmentChanged(description string)
	ScenePromptReady(prompt string)
	ImageReady(imageURL string)
}

const (
	defaultStageTimeout       = 60 * time.Second
	defaultMinTranscriptChars = 3
)

// commonEnglishWords is a cheap language guard: a transcript containing none
// of these is treated as noise rather than speech worth illustrating.
var commonEnglishWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "is": {}, "are": {}, "and": {},
}

// Deps wires a Coordinator. The stores, cache, and journal are required; the
// external collaborators may be nil, in which case their stage degrades:
// analysis is skipped, composition resolves to no scene, and transcription
// and generation resolve to their failure outcome.
type Deps struct {
	Transcriber Transcriber
	Analyzer    EnvironmentAnalyzer
	Composer    SceneComposer
	Generator   ImageGenerator
	Sink        NotificationSink

	Characters  *store.CharacterStore
	Environment *store.EnvironmentStore
	Scene       *store.SceneStore
	Style       *store.StyleStore
	Cache       *imagecache.Cache
	Journal     *journal.Journal

	StageTimeout       time.Duration
	MinTranscriptChars int
}

type Coordinator struct {
	deps Deps
}

func NewCoordinator(deps Deps) *Coordinator {
	if deps.StageTimeout <= 0 {
		deps.StageTimeout = defaultStageTimeout
	}
	if deps.MinTranscriptChars <= 0 {
		deps.MinTranscriptChars = defaultMinTranscriptChars
	}
	return &Coordinator{deps: deps}
}

// Run processes one audio chunk to a terminal outcome. It is safe to call
// concurrently; each store serializes its own updates, and no stage is
// retried.
func (c *Coordinator) Run(ctx context.Context, audio []byte) Outcome {
	transcript, err := c.transcribe(ctx, audio)
	if err != nil {
		log.Printf("warning: transcription failed: %v", err)
		return Outcome{Status: StatusTranscriptionFailed, Err: err}
	}
	if !usableTranscript(transcript, c.deps.MinTranscriptChars) {
		return Outcome{Status: StatusNoContent}
	}

	c.analyzeEnvironment(ctx, transcript)

	prompt, ok := c.composeScene(ctx, transcript)
	if !ok {
		return Outcome{Status: StatusNoScene}
	}

	source, err := c.generateImage(ctx, prompt)
	if err != nil {
		log.Printf("warning: image generation failed: %v", err)
		return Outcome{Status: StatusImageGenFailed, Err: err}
	}

	filename, err := c.cacheImage(ctx, source)
	if err != nil {
		log.Printf("warning: cache image: %v", err)
		return Outcome{Status: StatusCacheFailed, Err: err}
	}
	imageURL := "/scene_images/" + filename

	// History is best-effort once the viewer-facing image exists.
	if _, err := c.deps.Journal.AppendSceneEvent(transcript, prompt, c.deps.Cache.PathOf(filename)); err != nil {
		log.Printf("warning: record scene event: %v", err)
	}

	if c.deps.Sink != nil {
		c.deps.Sink.ImageReady(imageURL)
	}

	log.Printf("pipeline: new scene image %s", imageURL)
	return Outcome{Status: StatusDone, ImageURL: imageURL}
}

func (c *Coordinator) transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.deps.Transcriber == nil {
		return "", fmt.Errorf("transcriber not configured")
	}

	ctx, cancel := c.stageContext(ctx)
	defer cancel()

	transcript, err := c.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(transcript), nil
}

// analyzeEnvironment updates the shared environment description when the
// transcript shows the setting changed. Failures here never stop the run.
func (c *Coordinator) analyzeEnvironment(ctx context.Context, transcript string) {
	if c.deps.Analyzer == nil {
		return
	}

	env, err := c.deps.Environment.Get()
	if err != nil {
		log.Printf("warning: read environment: %v", err)
		return
	}
	if env.Locked {
		return
	}

	previousPrompt := c.previousPrompt()

	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	description, updated, err := c.deps.Analyzer.Analyze(stageCtx, env.Description, previousPrompt, transcript)
	if err != nil {
		log.Printf("warning: environment analysis failed: %v", err)
		return
	}
	if !updated {
		return
	}

	// The store re-checks the lock, so a lock taken mid-analysis still wins.
	if _, err := c.deps.Environment.Update(description, nil); err != nil {
		log.Printf("warning: store environment update: %v", err)
		return
	}
	if c.deps.Sink != nil {
		c.deps.Sink.EnvironmentChanged(description)
	}
}

func (c *Coordinator) composeScene(ctx context.Context, transcript string) (string, bool) {
	if c.deps.Composer == nil {
		log.Printf("warning: scene composer not configured")
		return "", false
	}

	characters, err := c.deps.Characters.List()
	if err != nil {
		log.Printf("warning: list characters: %v", err)
	}
	// Randomize ordering so no character is favored by position in the prompt.
	rand.Shuffle(len(characters), func(i, j int) {
		characters[i], characters[j] = characters[j], characters[i]
	})

	env, err := c.deps.Environment.Get()
	if err != nil {
		log.Printf("warning: read environment: %v", err)
	}
	style, err := c.deps.Style.Get()
	if err != nil {
		log.Printf("warning: read style: %v", err)
	}
	previousPrompt := c.previousPrompt()

	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	prompt, err := c.deps.Composer.Compose(stageCtx, transcript, characters, env.Description, previousPrompt, style)
	if err != nil {
		log.Printf("warning: scene composition failed: %v", err)
		return "", false
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", false
	}

	if _, err := c.deps.Scene.Update(prompt); err != nil {
		log.Printf("warning: store scene prompt: %v", err)
	}
	if c.deps.Sink != nil {
		c.deps.Sink.ScenePromptReady(prompt)
	}
	return prompt, true
}

func (c *Coordinator) generateImage(ctx context.Context, prompt string) (string, error) {
	if c.deps.Generator == nil {
		return "", fmt.Errorf("image generator not configured")
	}

	ctx, cancel := c.stageContext(ctx)
	defer cancel()
	return c.deps.Generator.Generate(ctx, prompt)
}

func (c *Coordinator) cacheImage(ctx context.Context, source string) (string, error) {
	ctx, cancel := c.stageContext(ctx)
	defer cancel()
	return c.deps.Cache.Insert(ctx, source)
}

// stageContext bounds one external call. A timed-out stage resolves exactly
// like a failed one.
func (c *Coordinator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.deps.StageTimeout)
}

func (c *Coordinator) previousPrompt() string {
	prompt, err := c.deps.Scene.LastPrompt()
	if err != nil {
		log.Printf("warning: read scene prompt: %v", err)
		return ""
	}
	return prompt
}

func usableTranscript(transcript string, minChars int) bool {
	if len(transcript) < minChars {
		return false
	}
	for _, word := range strings.Fields(strings.ToLower(transcript)) {
		if _, ok := commonEnglishWords[word]; ok {
			return true
		}
	}
	return false
}
