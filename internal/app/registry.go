package app

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/core"
	"github.com/dialoq/hotline/internal/domain"
)

type connEntry struct {
	conn       core.SignalConnection
	partyID    domain.CustomerID
	role       domain.Role
	identified bool
}

// Registry maps live transport connections to their optional identity.
// It owns nothing but the mapping; the adapter owns the sockets.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnID]*connEntry)}
}

// Register adds a fresh, unidentified connection and returns its handle.
func (r *Registry) Register(conn core.SignalConnection) core.ConnID {
	id := core.ConnID(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{conn: conn}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection registered")
	return id
}

// AttachIdentity binds a party id and role to a connection. Last write wins;
// unknown handles are a no-op.
func (r *Registry) AttachIdentity(id core.ConnID, partyID domain.CustomerID, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	e.partyID = partyID
	e.role = role
	e.identified = true
	log.Info().Str("module", "app.registry").Str("conn", string(id)).
		Str("party", string(partyID)).Str("role", role.String()).Msg("identity attached")
}

// Identity returns the party bound to a connection, if any.
func (r *Registry) Identity(id core.ConnID) (domain.CustomerID, domain.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || !e.identified {
		return "", domain.RoleCaller, false
	}
	return e.partyID, e.role, true
}

// Conn returns the live transport for a handle.
func (r *Registry) Conn(id core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Remove forgets a connection. Idempotent on unknown handles.
func (r *Registry) Remove(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection removed")
}

// ConnSnap is a point-in-time view of one live connection.
type ConnSnap struct {
	ID   core.ConnID
	Conn core.SignalConnection
}

// All snapshots every live connection, identified or not.
func (r *Registry) All() []ConnSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnSnap, 0, len(r.conns))
	for id, e := range r.conns {
		out = append(out, ConnSnap{ID: id, Conn: e.conn})
	}
	return out
}

// Count reports the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
