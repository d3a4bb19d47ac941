package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/core"
	"github.com/dialoq/hotline/internal/domain"
)

type presenceEntry struct {
	conn core.ConnID
	role domain.Role
}

// Presence maps a party id to its current live connection and role.
// At most one entry per party; a later registration overwrites the
// earlier one without notifying the superseded connection.
type Presence struct {
	mu      sync.RWMutex
	byParty map[domain.CustomerID]presenceEntry
}

func NewPresence() *Presence {
	return &Presence{byParty: make(map[domain.CustomerID]presenceEntry)}
}

// Set binds a party to a connection, overwriting any prior entry.
func (p *Presence) Set(partyID domain.CustomerID, conn core.ConnID, role domain.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.byParty[partyID]; ok && prev.conn != conn {
		log.Warn().Str("module", "app.presence").Str("party", string(partyID)).
			Str("old_conn", string(prev.conn)).Str("new_conn", string(conn)).
			Msg("presence overwritten, superseded session not notified")
	}
	p.byParty[partyID] = presenceEntry{conn: conn, role: role}
}

// Lookup resolves a party to its live connection.
func (p *Presence) Lookup(partyID domain.CustomerID) (core.ConnID, domain.Role, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byParty[partyID]
	if !ok {
		return "", domain.RoleCaller, false
	}
	return e.conn, e.role, true
}

// ByRole snapshots the connections of every party holding the given role.
func (p *Presence) ByRole(role domain.Role) []core.ConnID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.ConnID, 0, len(p.byParty))
	for _, e := range p.byParty {
		if e.role == role {
			out = append(out, e.conn)
		}
	}
	return out
}

// RemoveConn drops the entries still owned by conn and returns the parties
// that went offline. An entry overwritten by a newer connection stays put.
func (p *Presence) RemoveConn(conn core.ConnID) []domain.CustomerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var gone []domain.CustomerID
	for partyID, e := range p.byParty {
		if e.conn == conn {
			delete(p.byParty, partyID)
			gone = append(gone, partyID)
		}
	}
	return gone
}
