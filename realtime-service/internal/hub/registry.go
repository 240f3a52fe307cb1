package hub

import "sync"

// Registry tracks live sockets per user, independent of room membership.
type Registry struct {
	mu      sync.RWMutex
	users   map[string]map[string]struct{} // userID -> socketIDs
	sockets map[string]string              // socketID -> userID
}

func NewRegistry() *Registry {
	return &Registry{
		users:   make(map[string]map[string]struct{}),
		sockets: make(map[string]string),
	}
}

// Register records socketID under userID. Registering the same socket again
// is a no-op; a socket re-registered under another user moves.
func (r *Registry) Register(userID, socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sockets[socketID]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(socketID)
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[socketID] = struct{}{}
	r.sockets[socketID] = userID
}

// Unregister removes the socket and returns the user it belonged to. The user
// entry goes away with its last socket.
func (r *Registry) Unregister(socketID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(socketID)
}

func (r *Registry) removeLocked(socketID string) (string, bool) {
	userID, ok := r.sockets[socketID]
	if !ok {
		return "", false
	}
	delete(r.sockets, socketID)
	if set, ok := r.users[userID]; ok {
		delete(set, socketID)
		if len(set) == 0 {
			delete(r.users, userID)
		}
	}
	return userID, true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Connections returns the number of live sockets of the user.
func (r *Registry) Connections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// OnlineUsers returns the number of distinct connected users.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
