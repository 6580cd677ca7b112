package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventSerialization(t *testing.T) {
	events := []any{
		EnvironmentUpdateEvent{Event: newEvent("environment_update", time.Unix(1, 0)), Description: "a tavern"},
		ScenePromptUpdateEvent{Event: newEvent("scene_prompt_update", time.Unix(1, 0)), Prompt: "a duel"},
		NewImageEvent{Event: newEvent("new_image", time.Unix(1, 0)), ImageURL: "/scene_images/scene_1.png"},
		ConnectionEvent{Event: newEvent("connection", time.Unix(1, 0)), Connected: true},
	}

	for _, event := range events {
		b, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var payload map[string]any
		if err := json.Unmarshal(b, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if payload["type"] == nil {
			t.Fatalf("missing type in payload: %s", string(b))
		}
		if payload["version"] == nil {
			t.Fatalf("missing version in payload: %s", string(b))
		}
		if payload["timestamp"] == nil {
			t.Fatalf("missing timestamp in payload: %s", string(b))
		}
	}
}
