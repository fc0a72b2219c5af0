// Package realtime relays canonical run messages to WebSocket clients.
// Clients subscribe to run topics; the hub fans each published envelope
// out to subscribed clients and drops any client that cannot keep up.
package realtime

import (
	"sync"

	"github.com/shaneholloman/automaker/internal/session"
	realtimeTypes "github.com/shaneholloman/automaker/pkg/realtime"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID()] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()

	if ok {
		client.Close()
	}
}

// Publish delivers the envelope to every client subscribed to the topic.
// A client whose outbound queue is full is unregistered.
func (h *Hub) Publish(topic string, msg realtimeTypes.ServerEnvelope) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.IsSubscribed(topic) {
			continue
		}
		if client.Queue(msg) {
			continue
		}
		h.Unregister(client.ID())
	}
}

// AttachRun pumps a run's watcher into the hub until the run's stream
// closes. Watchers are best-effort copies, so a hub that falls behind
// loses messages rather than stalling the run.
func (h *Hub) AttachRun(runID string, recv *session.Receiver) {
	go func() {
		defer recv.Close()
		topic := TopicRun(runID)
		for msg := range recv.C {
			h.Publish(topic, realtimeTypes.ServerEnvelope{
				Type:    realtimeTypes.ServerMessageTypeEvent,
				Topic:   topic,
				Payload: msg,
			})
		}
	}()
}

func (h *Hub) Subscribe(clientID string, topics []string) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.Subscribe(topics)
	return true
}

func (h *Hub) Unsubscribe(clientID string, topics []string) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.Unsubscribe(topics)
	return true
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
