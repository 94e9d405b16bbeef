package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Hub tracks live clients and their room memberships and fans events out to them.
// Sends never block: a client whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]*Room
	closed  bool

	dropped atomic.Int64
	logger  *zerolog.Logger
}

// NewHub creates a new hub. logger may be nil.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]*Room),
		logger:  logger,
	}
}

// Run blocks until ctx is done, then closes every client's event channel.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]*Room)
}

// Register adds a client. It reports false if the hub is already shut down,
// in which case the client's event channel is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.close()
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// Unregister removes a client from every room and closes its event channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	h.leaveAll(c)
	delete(h.clients, c)
	c.close()
}

// Join drops any previous memberships of c and subscribes it to the room of
// userID and, for admins, to the admin room. It returns the rooms joined.
func (h *Hub) Join(c *Client, userID string, isAdmin bool) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return nil
	}
	h.leaveAll(c)

	var joined []string
	if userID != "" {
		joined = append(joined, h.join(c, UserRoom(userID)))
	}
	if isAdmin {
		joined = append(joined, h.join(c, AdminRoom))
	}
	return joined
}

func (h *Hub) join(c *Client, name string) string {
	room, ok := h.rooms[name]
	if !ok {
		room = NewRoom(name)
		h.rooms[name] = room
	}
	room.AddClient(c)
	c.rooms[name] = struct{}{}
	return name
}

func (h *Hub) leaveAll(c *Client) {
	for name := range c.rooms {
		if room, ok := h.rooms[name]; ok {
			room.RemoveClient(c)
			if room.Empty() {
				delete(h.rooms, name)
			}
		}
		delete(c.rooms, name)
	}
}

// Emit delivers ev to every member of room.
func (h *Hub) Emit(room string, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[room]
	if !ok {
		return
	}
	routed := *ev
	routed.Room = room
	if dropped := r.Broadcast(&routed); dropped > 0 {
		h.dropped.Add(int64(dropped))
		h.logger.Debug().Str("room", room).Str("event", ev.Kind.String()).Int("dropped", dropped).Msg("slow clients skipped")
	}
}

// EmitAll delivers ev to every registered client.
func (h *Hub) EmitAll(ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.Events <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Send delivers ev to a single client.
func (h *Hub) Send(c *Client, ev *Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[room]; ok {
		return r.Len()
	}
	return 0
}

// Dropped returns how many deliveries were skipped because a client was too slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
