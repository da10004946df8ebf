package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client is one authenticated socket connection on one namespace.
type Client struct {
	ID        string
	UserID    string
	TenantID  string
	Namespace string

	send chan []byte
}

func NewClient(namespace, userID, tenantID string, buffer int) *Client {
	return &Client{
		ID:        uuid.NewString(),
		UserID:    userID,
		TenantID:  tenantID,
		Namespace: namespace,
		send:      make(chan []byte, buffer),
	}
}

// Send queues a frame without blocking. A full buffer drops the frame.
func (c *Client) Send(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		log.Warn().Str("client_id", c.ID).Str("namespace", c.Namespace).Msg("client send buffer full, dropping frame")
		return false
	}
}

// Outbox is read by the connection's writer.
func (c *Client) Outbox() <-chan []byte { return c.send }

// Hub tracks room membership for the sockets connected to this instance.
// It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client // namespace/room -> client id -> client
	joined map[string][]string           // client id -> room keys
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		joined: make(map[string][]string),
	}
}

func roomKey(namespace, room string) string { return namespace + "/" + room }

func (h *Hub) Join(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range rooms {
		key := roomKey(c.Namespace, room)
		members, ok := h.rooms[key]
		if !ok {
			members = make(map[string]*Client)
			h.rooms[key] = members
		}
		if _, dup := members[c.ID]; !dup {
			members[c.ID] = c
			h.joined[c.ID] = append(h.joined[c.ID], key)
		}
	}
}

// Leave removes c from every room it joined. Empty rooms are dropped.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range h.joined[c.ID] {
		members := h.rooms[key]
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	delete(h.joined, c.ID)
}

// Broadcast queues frame on every client in any of rooms, once per client,
// and returns how many clients accepted it.
func (h *Hub) Broadcast(namespace string, rooms []string, frame []byte) int {
	h.mu.RLock()
	targets := make(map[string]*Client)
	for _, room := range rooms {
		for id, c := range h.rooms[roomKey(namespace, room)] {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(frame) {
			delivered++
		}
	}
	return delivered
}

// Publish delivers env to local clients. Rooms with no members are a no-op.
func (h *Hub) Publish(_ context.Context, env Envelope) error {
	frame, err := encodeFrame(env.Event, env.Data)
	if err != nil {
		return err
	}
	n := h.Broadcast(env.Namespace, []string{env.Room}, frame)
	log.Debug().Str("namespace", env.Namespace).Str("room", env.Room).Str("event", env.Event).Int("delivered", n).Msg("realtime event")
	return nil
}

func (h *Hub) RoomSize(namespace, room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(namespace, room)])
}
