package relay

import (
	"sort"
	"sync"
)

// Registry maps a user id to its single registered connection. The lock is
// held only for the map operation itself.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register stores conn under its user id and returns the connection it
// replaced, if any. The swap is atomic: two connections are never registered
// for the same user.
func (r *Registry) Register(conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	superseded := r.connections[conn.UserId]
	r.connections[conn.UserId] = conn

	if superseded == conn {
		return nil
	}

	return superseded
}

// Unregister removes conn only if it is still the registered connection for
// its user. It reports whether an entry was removed.
func (r *Registry) Unregister(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.connections[conn.UserId]
	if !ok || current != conn {
		return false
	}

	delete(r.connections, conn.UserId)

	return true
}

func (r *Registry) Get(userId string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[userId]

	return conn, ok
}

func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}

	return connections
}

// UserIds returns the registered user ids in sorted order.
func (r *Registry) UserIds() []string {
	r.mu.RLock()
	userIds := make([]string, 0, len(r.connections))
	for userId := range r.connections {
		userIds = append(userIds, userId)
	}
	r.mu.RUnlock()

	sort.Strings(userIds)

	return userIds
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}
