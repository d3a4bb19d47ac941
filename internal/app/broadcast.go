package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/core"
	"github.com/dialoq/hotline/internal/domain"
)

// PresencePayload is the body of every presence_update event.
type PresencePayload struct {
	PartyID domain.CustomerID `json:"party_id"`
	Status  domain.Status     `json:"status"`
}

// Broadcaster fans availability changes out to every connected party,
// registered or not. No filtering by role or relevance.
type Broadcaster struct {
	Registry *Registry
	Policy   Policy
}

func NewBroadcaster(reg *Registry, pol Policy) *Broadcaster {
	return &Broadcaster{Registry: reg, Policy: pol}
}

// PresenceChanged announces a party's new status to all live connections.
func (b *Broadcaster) PresenceChanged(partyID domain.CustomerID, status domain.Status) {
	frame, err := core.Encode(core.KindPresenceUpdate, PresencePayload{PartyID: partyID, Status: status})
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Msg("encode presence update")
		return
	}
	sent, dropped := b.send(frame)
	log.Debug().Str("module", "app.broadcast").Str("party", string(partyID)).
		Str("status", string(status)).Int("sent", sent).Int("dropped", dropped).Msg("presence broadcast")
}

func (b *Broadcaster) send(frame core.Frame) (sent, dropped int) {
	for _, snap := range b.Registry.All() {
		err := snap.Conn.TrySend(frame)
		if err == nil {
			sent++
			continue
		}
		dropped++
		if b.Policy == nil {
			continue
		}
		switch b.Policy.OnBackPressure(snap.ID) {
		case KickConn:
			log.Warn().Str("module", "app.broadcast").Str("conn", string(snap.ID)).Msg("kicking slow consumer")
			snap.Conn.Close()
		case NoAction, DropFrame:
		}
	}
	return sent, dropped
}
