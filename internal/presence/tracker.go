package presence

import (
	"errors"
	"sync"

	"courier/internal/message"
)

var ErrUnknownIdentity = errors.New("unknown identity")

// Directory answers whether an identity key is registered.
type Directory interface {
	Exists(key string) bool
}

// Tracker binds identities to live connections. The reverse index lets a
// disconnect find its identity without scanning every binding.
type Tracker struct {
	directory Directory
	byKey     map[string]message.Conn // identity key -> conn
	byConn    map[string]string       // conn ID -> identity key
	mu        sync.RWMutex
}

func NewTracker(directory Directory) *Tracker {
	return &Tracker{
		directory: directory,
		byKey:     make(map[string]message.Conn),
		byConn:    make(map[string]string),
	}
}

// Bind marks key online on conn. A previous connection for key becomes stale
// and a previous identity on conn goes offline.
func (t *Tracker) Bind(key string, conn message.Conn) error {
	if !t.directory.Exists(key) {
		return ErrUnknownIdentity
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prevKey, ok := t.byConn[conn.ID()]; ok && prevKey != key {
		delete(t.byKey, prevKey)
	}
	if prev, ok := t.byKey[key]; ok && prev.ID() != conn.ID() {
		delete(t.byConn, prev.ID())
	}

	t.byKey[key] = conn
	t.byConn[conn.ID()] = key
	return nil
}

// Unbind takes whichever identity is bound to conn offline. It reports the
// key, or false when conn was never bound or has been superseded.
func (t *Tracker) Unbind(conn message.Conn) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.byConn[conn.ID()]
	if !ok {
		return "", false
	}

	delete(t.byConn, conn.ID())
	delete(t.byKey, key)
	return key, true
}

func (t *Tracker) IsReachable(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byKey[key]
	return ok
}

func (t *Tracker) HandleFor(key string) (message.Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.byKey[key]
	return conn, ok
}

func (t *Tracker) Online() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byKey)
}
