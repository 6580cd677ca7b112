package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type EnvironmentUpdateEvent struct {
	Event
	Description string `json:"description"`
}

type ScenePromptUpdateEvent struct {
	Event
	Prompt string `json:"prompt"`
}

type NewImageEvent struct {
	Event
	ImageURL string `json:"image_url"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
