package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Change event types mirror the database operations the router demuxes on.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent is one row change on a published table. New carries the row
// after insert/update; Old carries the row before update/delete.
type ChangeEvent struct {
	Table string         `json:"table"`
	Type  string         `json:"type"`
	New   map[string]any `json:"new,omitempty"`
	Old   map[string]any `json:"old,omitempty"`
}

// Row returns the row the event should be matched against: the new row for
// inserts and updates, the old row for deletes.
func (e ChangeEvent) Row() map[string]any {
	if e.Type == EventDelete {
		return e.Old
	}
	return e.New
}

// Client represents a single websocket client connection.
// We keep it minimal here; the actual network conn is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active user connections and broadcasts change events to them.
type Hub struct {
	mu              sync.RWMutex
	userIdToClients map[string]map[Client]struct{}
}

var hubInstance *Hub
var once sync.Once

// GetHub returns a singleton hub instance.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = &Hub{
			userIdToClients: make(map[string]map[Client]struct{}),
		}
	})
	return hubInstance
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userIdToClients[userID]; !ok {
		h.userIdToClients[userID] = make(map[Client]struct{})
	}
	h.userIdToClients[userID][client] = struct{}{}
}

// Unregister removes a client; if user has no more clients, cleans up map.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.userIdToClients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userIdToClients, userID)
		}
	}
}

// Disconnect tears down every connection registered for a user. Used on
// sign-out.
func (h *Hub) Disconnect(userID string) {
	h.mu.Lock()
	clients := h.userIdToClients[userID]
	delete(h.userIdToClients, userID)
	h.mu.Unlock()

	for c := range clients {
		c.Close()
	}
}

// Broadcast sends a raw message to all clients of a user.
func (h *Hub) Broadcast(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.userIdToClients[userID]
	for c := range clients {
		if ok := c.Send(message); !ok {
			// client write failed; let the handler clean it up on its side
		}
	}
}

// Publish serializes a change event and broadcasts it to each listed user.
func (h *Hub) Publish(userIDs []string, evt ChangeEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Println("realtime: marshal change event:", err)
		return
	}
	for _, userID := range userIDs {
		h.Broadcast(userID, payload)
	}
}
