package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, deps Deps) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		for _, payload := range snapshotEvents(deps) {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})
}

// snapshotEvents is the state a fresh client needs before live events make
// sense: the newest cached image if any, the environment, and the last
// scene prompt if one exists.
func snapshotEvents(deps Deps) [][]byte {
	events := make([]any, 0, 4)
	events = append(events, ConnectionEvent{
		Event:     newEvent("connection", time.Now().UTC()),
		Connected: true,
	})

	if deps.Cache != nil {
		if latest, ok := deps.Cache.Latest(); ok {
			events = append(events, NewImageEvent{
				Event:    newEvent("new_image", time.Now().UTC()),
				ImageURL: "/scene_images/" + latest,
			})
		}
	}
	if deps.Environment != nil {
		env, err := deps.Environment.Get()
		if err != nil {
			log.Printf("warning: environment snapshot: %v", err)
		} else {
			events = append(events, EnvironmentUpdateEvent{
				Event:       newEvent("environment_update", time.Now().UTC()),
				Description: env.Description,
			})
		}
	}
	if deps.Scene != nil {
		prompt, err := deps.Scene.LastPrompt()
		if err != nil {
			log.Printf("warning: scene prompt snapshot: %v", err)
		} else if prompt != "" {
			events = append(events, ScenePromptUpdateEvent{
				Event:  newEvent("scene_prompt_update", time.Now().UTC()),
				Prompt: prompt,
			})
		}
	}

	payloads := make([][]byte, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("event marshal error: %v", err)
			continue
		}
		payloads = append(payloads, payload)
	}
	return payloads
}
