package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/domain"
)

// SessionState is the live lifecycle state of a call session.
type SessionState int

const (
	// StateInitiated means the call is ringing; the responder is not known yet.
	StateInitiated SessionState = iota
	// StateActive means a responder accepted and the parties are negotiating.
	StateActive
)

// Session is the relay's bookkeeping for one in-flight call.
type Session struct {
	CallID    string
	Initiator domain.CustomerID
	Responder domain.CustomerID // empty until accepted
	State     SessionState
}

// Counterpart resolves the participant that is not party, if any.
func (s Session) Counterpart(party domain.CustomerID) (domain.CustomerID, bool) {
	switch party {
	case s.Initiator:
		if s.Responder == "" {
			return "", false
		}
		return s.Responder, true
	case s.Responder:
		return s.Initiator, true
	}
	return "", false
}

// Involves reports whether party is a resolved participant of the session.
func (s Session) Involves(party domain.CustomerID) bool {
	return party == s.Initiator || (s.Responder != "" && party == s.Responder)
}

// CallTable holds every in-flight call session, keyed by the caller-supplied
// call id. Ids are unique only by convention; a reused id overwrites.
type CallTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewCallTable() *CallTable {
	return &CallTable{sessions: make(map[string]*Session)}
}

// Create registers a new session in state initiated.
func (t *CallTable) Create(callID string, initiator domain.CustomerID) Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[callID]; ok {
		log.Warn().Str("module", "app.calls").Str("call", callID).Msg("call id reused, prior session overwritten")
	}
	s := &Session{CallID: callID, Initiator: initiator, State: StateInitiated}
	t.sessions[callID] = s
	return *s
}

// Get returns a snapshot of the session, if present.
func (t *CallTable) Get(callID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SetResponder records the accepting party. First acceptance wins: if a
// responder is already set the call is left untouched and false is returned.
func (t *CallTable) SetResponder(callID string, party domain.CustomerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[callID]
	if !ok {
		return false
	}
	if s.Responder != "" {
		return false
	}
	s.Responder = party
	s.State = StateActive
	return true
}

// Remove drops a session. Idempotent: removing an unknown id is a no-op.
func (t *CallTable) Remove(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, callID)
}

// FindByParty returns the first session involving party. Linear scan;
// the set of concurrently active calls is small.
func (t *CallTable) FindByParty(party domain.CustomerID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.sessions {
		if s.Involves(party) {
			return *s, true
		}
	}
	return Session{}, false
}

// ByParty snapshots every session involving party, for disconnect cleanup.
func (t *CallTable) ByParty(party domain.CustomerID) []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Session
	for _, s := range t.sessions {
		if s.Involves(party) {
			out = append(out, *s)
		}
	}
	return out
}

// Count reports the number of in-flight sessions.
func (t *CallTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
