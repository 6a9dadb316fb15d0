package gateway

import (
	"sync"
)

// Registry is the process-wide presence state: identity -> live clients.
// An identity is online iff its client set is non-empty; the transition
// in either direction is decided under the same lock as the mutation so
// it can be broadcast exactly once.
type Registry struct {
	mu         sync.RWMutex
	byConn     map[string]*Client
	byIdentity map[string]map[string]*Client // identity -> conn_id -> client
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:     make(map[string]*Client),
		byIdentity: make(map[string]map[string]*Client),
	}
}

// Register adds the client to its identity's device set and reports
// whether this brought the identity online. Registering the same conn id
// twice is a no-op.
func (r *Registry) Register(c *Client) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[c.ConnID]; exists {
		return false
	}
	r.byConn[c.ConnID] = c

	m := r.byIdentity[c.Identity.ID]
	if m == nil {
		m = make(map[string]*Client)
		r.byIdentity[c.Identity.ID] = m
	}
	wasEmpty := len(m) == 0
	m[c.ConnID] = c
	return wasEmpty
}

// Deregister removes the connection and reports whether its identity
// went offline. Unknown conn ids are a no-op (idempotent).
func (r *Registry) Deregister(connID string) (c *Client, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)

	if m := r.byIdentity[c.Identity.ID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byIdentity, c.Identity.ID)
			return c, true
		}
	}
	return c, false
}

func (r *Registry) Client(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

func (r *Registry) IsOnline(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identityID]) > 0
}

// ListByIdentity returns every live client of one identity (its devices).
func (r *Registry) ListByIdentity(identityID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byIdentity[identityID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// ListAll returns every live client across identities.
func (r *Registry) ListAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}

// Snapshot returns one Identity per online identity, for the
// online_snapshot frame delivered to a newly admitted connection.
func (r *Registry) Snapshot() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.byIdentity))
	for _, m := range r.byIdentity {
		for _, c := range m {
			out = append(out, c.Identity)
			break
		}
	}
	return out
}
