package runtime

import (
	"sync"

	"syncx/contract"
)

// Registry maps users to their live connections. A user may hold several
// connections at once, one per device; a connection belongs to one user.
// It starts empty and is owned by whoever created it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]contract.Connection // user -> connection id -> connection
	owners   map[string]string                         // connection id -> user
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[string]contract.Connection),
		owners:   make(map[string]string),
	}
}

// Bind records conn for userID. Binding a connection already owned by
// another user moves it.
func (r *Registry) Bind(userID string, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.owners[conn.ID()]; ok && previous != userID {
		r.drop(previous, conn.ID())
	}
	conns, ok := r.sessions[userID]
	if !ok {
		conns = make(map[string]contract.Connection)
		r.sessions[userID] = conns
	}
	conns[conn.ID()] = conn
	r.owners[conn.ID()] = userID
}

// Unbind removes conn and reports its owner and how many connections the
// owner still has. Unbinding an unknown connection is a no-op with ok false.
func (r *Registry) Unbind(conn contract.Connection) (string, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[conn.ID()]
	if !ok {
		return "", 0, false
	}
	r.drop(userID, conn.ID())
	return userID, len(r.sessions[userID]), true
}

func (r *Registry) drop(userID, connID string) {
	delete(r.owners, connID)
	conns := r.sessions[userID]
	delete(conns, connID)
	// No empty sets left behind
	if len(conns) == 0 {
		delete(r.sessions, userID)
	}
}

// ConnectionsFor resolves user ids to their live connections. Users without
// a binding are skipped.
func (r *Registry) ConnectionsFor(userIDs ...string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(userIDs))
	var res []contract.Connection
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		for _, conn := range r.sessions[userID] {
			res = append(res, conn)
		}
	}
	return res
}

func (r *Registry) Connections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]contract.Connection, 0, len(r.owners))
	for _, conns := range r.sessions {
		for _, conn := range conns {
			res = append(res, conn)
		}
	}
	return res
}

// Count returns the number of live connections of userID.
func (r *Registry) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}

// Users lists every user with at least one binding.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		res = append(res, userID)
	}
	return res
}

// Close drops every binding and returns the connections that were live.
func (r *Registry) Close() []contract.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []contract.Connection
	for _, conns := range r.sessions {
		for _, conn := range conns {
			res = append(res, conn)
		}
	}
	r.sessions = make(map[string]map[string]contract.Connection)
	r.owners = make(map[string]string)
	return res
}
