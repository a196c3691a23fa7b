// Package presence tracks which users currently have an active connection.
// The registry is the authority for routing decisions ("is this recipient
// reachable right now"); the durable is_online flag on the user row exists
// for display only. State is process-local and volatile: a restart means
// everyone is offline until they reconnect.
package presence

import (
	"sync"

	"github.com/jisero/internal/event"
	"github.com/jisero/internal/model"
)

// Conn is the transport handle bound to a user. Send must not block;
// it reports false when the event could not be queued.
type Conn interface {
	Send(ev event.Outgoing) bool
	Close()
}

type entry struct {
	conn    Conn
	summary model.UserSummary
}

// Registry is a mutex-guarded bidirectional userID<->connection map.
// Registering a user who already has a binding evicts the prior one
// (last-write-wins, reconnect replaces a stale connection).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]entry
	byConn map[Conn]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]entry),
		byConn: make(map[Conn]string),
	}
}

// Register binds the user to conn and returns the previously bound
// connection, if any. Closing the evicted handle is the caller's concern.
// A conn re-registering under a new identity releases its old binding first,
// so the prior user cannot linger online behind a dead mapping.
func (r *Registry) Register(u model.UserSummary, conn Conn) (evicted Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prevID, ok := r.byConn[conn]; ok && prevID != u.ID {
		if cur, ok := r.byUser[prevID]; ok && cur.conn == conn {
			delete(r.byUser, prevID)
		}
	}
	if prev, ok := r.byUser[u.ID]; ok && prev.conn != conn {
		delete(r.byConn, prev.conn)
		evicted = prev.conn
	}
	r.byUser[u.ID] = entry{conn: conn, summary: u}
	r.byConn[conn] = u.ID
	return evicted
}

// UserFor returns the user currently bound to conn.
func (r *Registry) UserFor(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[conn]
	return id, ok
}

// Unregister removes the binding for conn. It returns the user it was bound
// to and whether that user is now offline. An unknown handle is a silent
// no-op (disconnection races); so is a handle that was already evicted by a
// newer registration — the user stays online in that case.
func (r *Registry) Unregister(conn Conn) (userID string, nowOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	if cur, ok := r.byUser[userID]; ok && cur.conn == conn {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

// IsOnline reports whether the user has an active registered connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// Get returns the connection currently serving userID.
func (r *Registry) Get(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Send pushes an event to the user's connection, if present.
func (r *Registry) Send(userID string, ev event.Outgoing) bool {
	conn, ok := r.Get(userID)
	if !ok {
		return false
	}
	return conn.Send(ev)
}

// Snapshot returns summaries of all currently registered users.
func (r *Registry) Snapshot() []model.UserSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.UserSummary, 0, len(r.byUser))
	for _, e := range r.byUser {
		out = append(out, e.summary)
	}
	return out
}

// Broadcast sends ev to every registered connection except exceptUserID.
func (r *Registry) Broadcast(ev event.Outgoing, exceptUserID string) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.byUser))
	for id, e := range r.byUser {
		if id == exceptUserID {
			continue
		}
		conns = append(conns, e.conn)
	}
	r.mu.RUnlock()

	// Send outside the lock; Conn.Send is non-blocking.
	for _, c := range conns {
		c.Send(ev)
	}
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
