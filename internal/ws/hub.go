// Package ws pushes live floor state to the terminal's UI clients: table
// and order snapshots as they change, plus operator-facing push failures.
package ws

import (
	"encoding/json"
	"sync"
)

// Topics a UI client can subscribe to.
const (
	TopicTables = "tables"
	TopicOrders = "orders"
	TopicKOTs   = "kots"
	TopicErrors = "errors"
)

// Event is a WebSocket message to be broadcast.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// topicEvent routes an event to one topic's room.
type topicEvent struct {
	Topic string
	Event Event
}

// Hub maintains the set of active UI clients and broadcasts events to the
// rooms they subscribed to.
type Hub struct {
	// Registered clients by topic
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *topicEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			for _, topic := range client.topics {
				if h.rooms[topic] == nil {
					h.rooms[topic] = make(map[*Client]bool)
				}
				h.rooms[topic][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropClient(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Topic]

			// Marshal once per event
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full; drop it entirely.
					h.dropClient(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropClient removes a client from every room it joined. Caller holds h.mu.
func (h *Hub) dropClient(client *Client) {
	removed := false
	for _, topic := range client.topics {
		clients, ok := h.rooms[topic]
		if !ok {
			continue
		}
		if _, exists := clients[client]; exists {
			delete(clients, client)
			removed = true
			if len(clients) == 0 {
				delete(h.rooms, topic)
			}
		}
	}
	if removed {
		close(client.send)
	}
}

// Broadcast sends an event to all clients subscribed to a topic.
func (h *Hub) Broadcast(topic string, event Event) {
	h.broadcast <- &topicEvent{Topic: topic, Event: event}
}

// BroadcastJSON marshals payload and broadcasts it under the given type.
func (h *Hub) BroadcastJSON(topic, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.Broadcast(topic, Event{Type: eventType, Payload: raw})
	return nil
}
