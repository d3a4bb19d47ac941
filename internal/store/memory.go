package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dialoq/hotline/internal/domain"
	"github.com/rs/zerolog/log"
)

// MemoryStore keeps the roster and call history in process memory.
// Good enough for development and tests; state is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	parties   map[domain.CustomerID]*domain.Party
	calls     map[int]*domain.CallRecord
	nextParty int
	nextCall  int
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		parties:   make(map[domain.CustomerID]*domain.Party),
		calls:     make(map[int]*domain.CallRecord),
		nextParty: 1,
		nextCall:  1,
	}
	for _, sp := range seedRoster {
		p, err := domain.NewParty(sp.customerID, sp.name, sp.avatar, sp.operator)
		if err != nil {
			log.Error().Err(err).Str("module", "store.memory").Str("customer", string(sp.customerID)).Msg("bad seed party")
			continue
		}
		p.ID = s.nextParty
		s.nextParty++
		s.parties[p.CustomerID] = p
	}
	log.Info().Str("module", "store.memory").Int("parties", len(s.parties)).Msg("memory store seeded")
	return s
}

func (s *MemoryStore) FindParty(_ context.Context, id domain.CustomerID) (*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[id]
	if !ok {
		return nil, ErrPartyNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateParty(_ context.Context, p *domain.Party) (*domain.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parties[p.CustomerID]; ok {
		return nil, ErrDuplicateID
	}
	cp := *p
	cp.ID = s.nextParty
	s.nextParty++
	s.parties[cp.CustomerID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id domain.CustomerID, status domain.Status) (*domain.Party, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parties[id]
	if !ok {
		return nil, ErrPartyNotFound
	}
	p.Status = status
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListParties(_ context.Context) ([]*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(*domain.Party) bool { return true }), nil
}

func (s *MemoryStore) ListOperators(_ context.Context) ([]*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(p *domain.Party) bool { return p.Operator }), nil
}

func (s *MemoryStore) ListCustomers(_ context.Context) ([]*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(p *domain.Party) bool { return !p.Operator }), nil
}

func (s *MemoryStore) listLocked(keep func(*domain.Party) bool) []*domain.Party {
	out := make([]*domain.Party, 0, len(s.parties))
	for _, p := range s.parties {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) CreateCall(_ context.Context, caller, receiver domain.CustomerID, status domain.CallStatus) (*domain.CallRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &domain.CallRecord{
		ID:         s.nextCall,
		CallerID:   caller,
		ReceiverID: receiver,
		Status:     status,
		StartedAt:  time.Now(),
	}
	s.nextCall++
	s.calls[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetCall(_ context.Context, id int) (*domain.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.calls[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpdateCall(_ context.Context, id int, status domain.CallStatus, endedAt *time.Time, duration int) (*domain.CallRecord, error) {
	if !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	rec.Status = status
	if endedAt != nil {
		rec.EndedAt = endedAt
	}
	if duration > 0 {
		rec.Duration = duration
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ListCallsForParty(_ context.Context, id domain.CustomerID) ([]*domain.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.CallRecord, 0)
	for _, rec := range s.calls {
		if rec.CallerID == id || rec.ReceiverID == id {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ActiveCallForParty(_ context.Context, id domain.CustomerID) (*domain.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.calls {
		if (rec.CallerID == id || rec.ReceiverID == id) && rec.Status.Live() {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrCallNotFound
}

func (s *MemoryStore) Close() error { return nil }
