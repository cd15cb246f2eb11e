package runtime

import (
	"slices"
	"sync"

	"syncx/contract"
)

// Presence derives the online set from the registry: a user is online
// while it holds at least one binding. Connect and Disconnect serialize the
// binding change and the online mark so the set always converges to the
// bound users, whatever the interleaving of connects and disconnects.
type Presence struct {
	mu       sync.Mutex
	registry *Registry
	online   map[string]struct{}
}

func NewPresence(registry *Registry) *Presence {
	return &Presence{registry: registry, online: make(map[string]struct{})}
}

// MarkOnline reports whether the user was not online before.
func (p *Presence) MarkOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markOnline(userID)
}

// MarkOffline reports whether the user was online before.
func (p *Presence) MarkOffline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markOffline(userID)
}

func (p *Presence) markOnline(userID string) bool {
	if _, ok := p.online[userID]; ok {
		return false
	}
	p.online[userID] = struct{}{}
	return true
}

func (p *Presence) markOffline(userID string) bool {
	if _, ok := p.online[userID]; !ok {
		return false
	}
	delete(p.online, userID)
	return true
}

// Publish receives an online set while the presence lock is held, so
// successive sets reach connections in the order they were produced.
// It must not block.
type Publish func(online []string)

// Connect binds conn, marks its user online and hands the resulting online
// set to publish when it is not nil. The set is also returned.
func (p *Presence) Connect(userID string, conn contract.Connection, publish Publish) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registry.Bind(userID, conn)
	p.markOnline(userID)
	online := p.snapshot()
	if publish != nil {
		publish(online)
	}
	return online
}

// Disconnect unbinds conn. The user goes offline once its last connection is
// gone, in which case changed is true and snapshot is the set handed to
// publish.
func (p *Presence) Disconnect(conn contract.Connection, publish Publish) (userID string, snapshot []string, changed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, remaining, ok := p.registry.Unbind(conn)
	if !ok {
		return "", nil, false
	}
	if remaining > 0 {
		return userID, nil, false
	}
	changed = p.markOffline(userID)
	snapshot = p.snapshot()
	if changed && publish != nil {
		publish(snapshot)
	}
	return userID, snapshot, changed
}

// Snapshot returns the online user ids, sorted.
func (p *Presence) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Presence) snapshot() []string {
	res := make([]string, 0, len(p.online))
	for userID := range p.online {
		res = append(res, userID)
	}
	slices.Sort(res)
	return res
}

// Reset drops every binding and forgets every online user. It returns the
// connections that were live so the caller can close them.
func (p *Presence) Reset() []contract.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = make(map[string]struct{})
	return p.registry.Close()
}
