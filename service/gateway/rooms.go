package gateway

import (
	"sync"
)

// Rooms tracks which connections subscribe to which conversation rooms,
// plus the reverse index needed to tear everything down on disconnect
// without trusting clients to leave explicitly.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]*Client  // conversation -> conn_id -> client
	byConn map[string]map[string]struct{} // conn_id -> set of conversations
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[string]*Client),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join subscribes the connection; joining twice is a no-op. Authorization
// is the caller's job and happens before this mutation, never during.
func (r *Rooms) Join(c *Client, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.byRoom[conversationID]
	if m == nil {
		m = make(map[string]*Client)
		r.byRoom[conversationID] = m
	}
	m[c.ConnID] = c

	idx := r.byConn[c.ConnID]
	if idx == nil {
		idx = make(map[string]struct{})
		r.byConn[c.ConnID] = idx
	}
	idx[conversationID] = struct{}{}
}

// Leave removes the subscription from both indexes; idempotent.
func (r *Rooms) Leave(connID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, conversationID)
}

func (r *Rooms) leaveLocked(connID, conversationID string) {
	if m := r.byRoom[conversationID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byRoom, conversationID)
		}
	}
	if idx := r.byConn[connID]; idx != nil {
		delete(idx, conversationID)
		if len(idx) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// DropConn walks the reverse index and removes the connection from every
// room it joined, returning those rooms. This is the only disconnect path
// that guarantees zero orphaned subscriptions.
func (r *Rooms) DropConn(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.byConn[connID]
	if len(idx) == 0 {
		delete(r.byConn, connID)
		return nil
	}
	out := make([]string, 0, len(idx))
	for conv := range idx {
		out = append(out, conv)
	}
	for _, conv := range out {
		r.leaveLocked(connID, conv)
	}
	return out
}

func (r *Rooms) IsMember(connID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[conversationID]
	if m == nil {
		return false
	}
	_, ok := m[connID]
	return ok
}

// Subscribers returns the room's current subscriber connections.
func (r *Rooms) Subscribers(conversationID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[conversationID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// RoomsOf lists the conversations a connection currently subscribes to.
func (r *Rooms) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.byConn[connID]
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, 0, len(idx))
	for conv := range idx {
		out = append(out, conv)
	}
	return out
}
