package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub fans events out to connected WebSocket clients. Sends never block: a
// client that cannot keep up just misses messages. The hub doubles as the
// pipeline's notification sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) EnvironmentChanged(description string) {
	h.broadcastEvent(EnvironmentUpdateEvent{
		Event:       newEvent("environment_update", time.Now().UTC()),
		Description: description,
	})
}

func (h *Hub) ScenePromptReady(prompt string) {
	h.broadcastEvent(ScenePromptUpdateEvent{
		Event:  newEvent("scene_prompt_update", time.Now().UTC()),
		Prompt: prompt,
	})
}

func (h *Hub) ImageReady(imageURL string) {
	h.broadcastEvent(NewImageEvent{
		Event:    newEvent("new_image", time.Now().UTC()),
		ImageURL: imageURL,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
