package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

var (
	ErrClientGone = errors.New("client is not connected")
	ErrSlowClient = errors.New("client send buffer full")
)

// Hub multiplexes events over rooms of sockets. All fan-out happens under one
// lock, so every member of a room observes emits in the same order and a
// socket receives exactly the emits made while it was joined.
type Hub struct {
	clients  map[string]*Client            // clientID -> client
	rooms    map[string]map[string]*Client // room key -> clientID -> client
	registry *Registry
	mu       sync.Mutex
}

func NewHub(registry *Registry) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		registry: registry,
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register adds the client and joins it to its personal room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.rooms == nil {
		client.rooms = make(map[string]struct{})
	}
	h.clients[client.ID] = client
	h.registry.Register(client.UserID(), client.ID)
	h.joinLocked(client, domain.UserRoom(client.UserID()))

	l := log.L()
	l.Debug().
		Str(log.FieldSocketID, client.ID).
		Str(log.FieldUserID, client.UserID()).
		Msg("client registered")
}

// Unregister removes the client from every room and the registry and closes
// its send buffer. Safe to call more than once.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) bool {
	if cur, ok := h.clients[client.ID]; !ok || cur != client {
		return false
	}
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	delete(h.clients, client.ID)
	h.registry.Unregister(client.ID)
	close(client.send)

	l := log.L()
	l.Debug().Str(log.FieldSocketID, client.ID).Msg("client unregistered")
	return true
}

// Join adds the client to room. It fails for clients no longer registered.
func (h *Hub) Join(client *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	h.joinLocked(client, room)
	return true
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[client.ID] = client
	client.rooms[room] = struct{}{}
}

// Leave removes the client from room and reports whether it was a member.
func (h *Hub) Leave(client *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(client, room)
}

func (h *Hub) leaveLocked(client *Client, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[client.ID]; !ok {
		return false
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	delete(client.rooms, room)
	return true
}

func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.rooms[room][client.ID]
	return ok
}

func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

// EmitToRoom sends the event to every socket in room and returns how many
// received it.
func (h *Hub) EmitToRoom(room, event string, payload interface{}) (int, error) {
	return h.EmitToRoomExcept(room, event, payload, "")
}

// EmitToRoomExcept is EmitToRoom skipping one socket.
func (h *Hub) EmitToRoomExcept(room, event string, payload interface{}, exceptID string) (int, error) {
	data, err := encode(event, payload)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, client := range h.rooms[room] {
		if id == exceptID {
			continue
		}
		if h.deliverLocked(client, data) {
			delivered++
		}
	}
	return delivered, nil
}

// EmitToUser sends to every device of the user through its personal room.
func (h *Hub) EmitToUser(userID, event string, payload interface{}) (int, error) {
	return h.EmitToRoom(domain.UserRoom(userID), event, payload)
}

// Send replies to a single client.
func (h *Hub) Send(client *Client, event string, payload interface{}) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return ErrClientGone
	}
	if !h.deliverLocked(client, data) {
		return ErrSlowClient
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		h.removeLocked(client)
	}
}

// deliverLocked never blocks: a client whose buffer is full is evicted.
func (h *Hub) deliverLocked(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		return true
	default:
		l := log.Ctx(client.Context())
		l.Warn().Msg("send buffer full, evicting client")
		h.removeLocked(client)
		return false
	}
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(domain.OutboundEvent{Type: event, Data: payload})
}
