package websocket

import (
	"sync"
)

// Hub is the subscription table: which connections listen on which room.
// Rooms exist while they have members.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.clients[c] = make(map[string]struct{})
	}
	h.mu.Unlock()
}

// remove drops c and all of its subscriptions
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.clients[c] {
		h.leave(c, room)
	}
	delete(h.clients, c)
}

func (h *Hub) Subscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.clients[c]
	if !ok {
		return
	}
	rooms[room] = struct{}{}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, room string) {
	h.mu.Lock()
	h.leave(c, room)
	h.mu.Unlock()
}

// leave requires h.mu held
func (h *Hub) leave(c *Client, room string) {
	if rooms, ok := h.clients[c]; ok {
		delete(rooms, room)
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// SubscribeMembers subscribes every member of from to room, e.g. all
// connections of a user to a conversation.
func (h *Hub) SubscribeMembers(from, room string) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[from]))
	for c := range h.rooms[from] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.Subscribe(c, room)
	}
	return len(members)
}

// IsSubscribed reports whether c is a member of room
func (h *Hub) IsSubscribed(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[room][c]
	return ok
}

// Emit sends event to the union of rooms, skipping except. Each connection
// receives it at most once. It returns the number of connections reached.
func (h *Hub) Emit(rooms []string, except *Client, event string, data interface{}) int {
	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if c != except {
				targets[c] = struct{}{}
			}
		}
	}
	h.mu.RUnlock()

	return deliver(targets, event, data)
}

// Broadcast sends event to every connection but except
func (h *Hub) Broadcast(except *Client, event string, data interface{}) int {
	h.mu.RLock()
	targets := make(map[*Client]struct{}, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	return deliver(targets, event, data)
}

func deliver(targets map[*Client]struct{}, event string, data interface{}) int {
	n := 0
	for c := range targets {
		if c.Emit(event, data) {
			n++
		}
	}
	return n
}

// Len is the number of connected clients
// snapshot lists every connection currently in the table
func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
