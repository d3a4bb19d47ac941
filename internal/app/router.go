package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dialoq/hotline/internal/core"
	"github.com/dialoq/hotline/internal/domain"
	"github.com/dialoq/hotline/internal/store"
)

// RegistrationPayload announces an operator taking its seat.
type RegistrationPayload struct {
	OperatorID domain.CustomerID `json:"operator_id"`
}

// StatusPayload is an ordinary party declaring itself and its status.
type StatusPayload struct {
	PartyID domain.CustomerID `json:"party_id"`
	Status  domain.Status     `json:"status"`
}

// PartyRef names a party inside a call payload.
type PartyRef struct {
	ID     domain.CustomerID `json:"id"`
	Name   string            `json:"name,omitempty"`
	Avatar string            `json:"avatar,omitempty"`
}

// CallInitiatePayload starts a call. Receiver is only present when an
// operator dials a known party directly.
type CallInitiatePayload struct {
	CallID   string    `json:"call_id"`
	Caller   PartyRef  `json:"caller"`
	Receiver *PartyRef `json:"receiver,omitempty"`
}

// CallControlPayload drives accept/decline/end for an existing call.
type CallControlPayload struct {
	CallID string `json:"call_id"`
}

// negotiationRef is the only part of a session-negotiation payload the
// router reads. Everything else stays opaque.
type negotiationRef struct {
	CallID string `json:"call_id"`
}

// Router decides, for each inbound signaling message, which live
// connections receive it. It owns all mutations of the registry, the
// presence index and the call table; payloads are forwarded unmodified.
type Router struct {
	Registry  *Registry
	Presence  *Presence
	Calls     *CallTable
	Store     store.Store
	Broadcast *Broadcaster
	Limiter   *CallRateLimiter
}

// Registration handles an operator identifying itself. The presence change
// is announced to everyone.
func (r *Router) Registration(ctx context.Context, conn core.ConnID, data []byte) {
	var p RegistrationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OperatorID == "" {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(conn)).Msg("bad registration payload")
		r.errorTo(conn, "bad_payload")
		return
	}

	r.identify(conn, p.OperatorID, domain.RoleOperator)
	r.persistStatus(ctx, p.OperatorID, domain.StatusAvailable)
	r.Broadcast.PresenceChanged(p.OperatorID, domain.StatusAvailable)
	log.Info().Str("module", "app.router").Str("operator", string(p.OperatorID)).Msg("operator registered")
}

// PresenceUpdate handles an ordinary party declaring its status.
func (r *Router) PresenceUpdate(ctx context.Context, conn core.ConnID, data []byte) {
	var p StatusPayload
	if err := json.Unmarshal(data, &p); err != nil || p.PartyID == "" {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(conn)).Msg("bad presence payload")
		r.errorTo(conn, "bad_payload")
		return
	}
	if !p.Status.Valid() {
		r.errorTo(conn, "unknown_status")
		return
	}

	// A connection's role is fixed by its first identifying message;
	// a plain status update never promotes it.
	role := domain.RoleCaller
	if _, prev, ok := r.Registry.Identity(conn); ok {
		role = prev
	}
	r.identify(conn, p.PartyID, role)
	r.persistStatus(ctx, p.PartyID, p.Status)
	r.Broadcast.PresenceChanged(p.PartyID, p.Status)
}

// CallInitiate creates the call session and rings the counterpart side.
// A caller without an explicit target rings every operator, because it has
// no visibility into which operator is free; an operator always targets a
// known party directly.
func (r *Router) CallInitiate(ctx context.Context, conn core.ConnID, data []byte, raw core.Frame) {
	var p CallInitiatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Caller.ID == "" {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(conn)).Msg("bad call_initiate payload")
		r.errorTo(conn, "bad_payload")
		return
	}

	sender, role, identified := r.Registry.Identity(conn)
	if !identified {
		// Call initiation may be the first identifying message.
		sender, role = p.Caller.ID, domain.RoleCaller
		r.identify(conn, sender, role)
	} else if sender != p.Caller.ID {
		log.Warn().Str("module", "app.router").Str("conn", string(conn)).
			Str("identity", string(sender)).Str("claimed", string(p.Caller.ID)).
			Msg("call_initiate caller does not match connection identity")
	}

	if r.Limiter != nil && !r.Limiter.Allow(sender) {
		log.Warn().Str("module", "app.router").Str("party", string(sender)).Msg("call_initiate rate limited")
		r.errorTo(conn, "too_many_calls")
		return
	}

	r.Calls.Create(p.CallID, sender)

	switch {
	case p.Receiver != nil && p.Receiver.ID != "":
		if !r.sendToParty(p.Receiver.ID, raw) {
			log.Warn().Str("module", "app.router").Str("call", p.CallID).
				Str("target", string(p.Receiver.ID)).Msg("call_initiate target offline, dropped")
		}
	case role == domain.RoleCaller:
		n := r.ringOperators(raw)
		log.Info().Str("module", "app.router").Str("call", p.CallID).
			Str("caller", string(sender)).Int("operators", n).Msg("call ringing operators")
	default:
		log.Warn().Str("module", "app.router").Str("call", p.CallID).Msg("operator call_initiate without target, dropped")
	}
}

// CallAccept resolves the responder (first acceptance wins), forwards the
// acceptance to the counterpart and lets every other operator dismiss its
// own ringing view.
func (r *Router) CallAccept(ctx context.Context, conn core.ConnID, data []byte, raw core.Frame) {
	p, sess, sender, ok := r.controlPrelude(conn, data, "call_accept")
	if !ok {
		return
	}

	if r.Calls.SetResponder(p.CallID, sender) {
		sess, _ = r.Calls.Get(p.CallID)
	}
	other, resolved := sess.Counterpart(sender)
	if !resolved {
		log.Warn().Str("module", "app.router").Str("call", p.CallID).
			Str("party", string(sender)).Msg("call_accept from non-participant, dropped")
		return
	}
	r.sendToParty(other, raw)
	r.notifyOperators(raw, r.exclusions(conn, other)...)
}

// CallDecline forwards the decline to the other side and removes the session.
func (r *Router) CallDecline(ctx context.Context, conn core.ConnID, data []byte, raw core.Frame) {
	r.terminate(conn, data, raw, "call_decline")
}

// CallEnd forwards the hang-up to the other side and removes the session.
func (r *Router) CallEnd(ctx context.Context, conn core.ConnID, data []byte, raw core.Frame) {
	r.terminate(conn, data, raw, "call_end")
}

func (r *Router) terminate(conn core.ConnID, data []byte, raw core.Frame, what string) {
	p, sess, sender, ok := r.controlPrelude(conn, data, what)
	if !ok {
		return
	}

	// The "other side" relative to the sender: a decline can come from an
	// operator that never became the responder, so membership is not required.
	other := sess.Initiator
	if sender == sess.Initiator {
		other = sess.Responder
	}
	if other != "" {
		r.sendToParty(other, raw)
	}
	r.notifyOperators(raw, r.exclusions(conn, other)...)
	r.Calls.Remove(p.CallID)
	log.Info().Str("module", "app.router").Str("call", p.CallID).Str("by", string(sender)).Msg(what)
}

// Negotiation relays an opaque offer/answer/candidate blob to the one other
// participant. Requires an accepted call; never goes to operators as a group.
func (r *Router) Negotiation(ctx context.Context, conn core.ConnID, kind core.Kind, data []byte, raw core.Frame) {
	var ref negotiationRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.CallID == "" {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(conn)).Str("kind", string(kind)).Msg("bad negotiation payload")
		r.errorTo(conn, "bad_payload")
		return
	}

	sess, ok := r.Calls.Get(ref.CallID)
	if !ok || sess.State != StateActive {
		log.Warn().Str("module", "app.router").Str("call", ref.CallID).Str("kind", string(kind)).Msg("negotiation for unknown or unaccepted call, dropped")
		return
	}
	sender, _, ok := r.Registry.Identity(conn)
	if !ok {
		log.Warn().Str("module", "app.router").Str("conn", string(conn)).Msg("negotiation from unidentified connection, dropped")
		return
	}
	other, ok := sess.Counterpart(sender)
	if !ok {
		log.Warn().Str("module", "app.router").Str("call", ref.CallID).Str("party", string(sender)).Msg("negotiation from non-participant, dropped")
		return
	}
	r.sendToParty(other, raw)
}

// OnDisconnect cascades a closed connection through all three tables:
// presence goes offline (broadcast once per party), and every call the
// party was in is removed with a synthesized call_end to the survivor.
func (r *Router) OnDisconnect(ctx context.Context, conn core.ConnID) {
	r.Registry.Remove(conn)

	for _, partyID := range r.Presence.RemoveConn(conn) {
		r.persistStatus(ctx, partyID, domain.StatusOffline)
		r.Broadcast.PresenceChanged(partyID, domain.StatusOffline)

		for _, sess := range r.Calls.ByParty(partyID) {
			r.Calls.Remove(sess.CallID)
			frame, err := core.Encode(core.KindCallEnd, CallControlPayload{CallID: sess.CallID})
			if err != nil {
				log.Error().Err(err).Str("module", "app.router").Msg("encode synthesized call_end")
				continue
			}
			other, resolved := sess.Counterpart(partyID)
			if resolved {
				r.sendToParty(other, frame)
			}
			r.notifyOperators(frame, r.exclusions(conn, other)...)
			log.Info().Str("module", "app.router").Str("call", sess.CallID).
				Str("party", string(partyID)).Msg("call removed on disconnect")
		}
	}
}

// identify binds a party to its connection in both tables. A later
// registration for the same party id overwrites the earlier one.
func (r *Router) identify(conn core.ConnID, partyID domain.CustomerID, role domain.Role) {
	r.Registry.AttachIdentity(conn, partyID, role)
	r.Presence.Set(partyID, conn, role)
}

// persistStatus pushes a status change into the durable store. Failures are
// reported and ignored: presence correctness never depends on persistence.
func (r *Router) persistStatus(ctx context.Context, partyID domain.CustomerID, status domain.Status) {
	if r.Store == nil {
		return
	}
	if _, err := r.Store.SetStatus(ctx, partyID, status); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("party", string(partyID)).
			Str("status", string(status)).Msg("store status update failed")
	}
}

// controlPrelude is the shared front half of accept/decline/end: parse the
// call id, find the session, find the sender identity. Misses are dropped
// with a local diagnostic only — they usually just lost a race.
func (r *Router) controlPrelude(conn core.ConnID, data []byte, what string) (CallControlPayload, Session, domain.CustomerID, bool) {
	var p CallControlPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(conn)).Msgf("bad %s payload", what)
		r.errorTo(conn, "bad_payload")
		return p, Session{}, "", false
	}
	sess, ok := r.Calls.Get(p.CallID)
	if !ok {
		log.Warn().Str("module", "app.router").Str("call", p.CallID).Msgf("%s for unknown call, dropped", what)
		return p, Session{}, "", false
	}
	sender, _, ok := r.Registry.Identity(conn)
	if !ok {
		log.Warn().Str("module", "app.router").Str("conn", string(conn)).Msgf("%s from unidentified connection, dropped", what)
		return p, Session{}, "", false
	}
	return p, sess, sender, true
}

// sendTo delivers a frame to one connection handle.
func (r *Router) sendTo(conn core.ConnID, frame core.Frame) bool {
	c, ok := r.Registry.Conn(conn)
	if !ok {
		return false
	}
	if err := c.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("conn", string(conn)).Msg("send failed")
		return false
	}
	return true
}

// sendToParty resolves a party through the presence index and delivers.
func (r *Router) sendToParty(partyID domain.CustomerID, frame core.Frame) bool {
	conn, _, ok := r.Presence.Lookup(partyID)
	if !ok {
		log.Warn().Str("module", "app.router").Str("party", string(partyID)).Msg("party offline, dropped")
		return false
	}
	return r.sendTo(conn, frame)
}

// ringOperators fans a frame out to every operator connection.
func (r *Router) ringOperators(frame core.Frame) int {
	n := 0
	for _, conn := range r.Presence.ByRole(domain.RoleOperator) {
		if r.sendTo(conn, frame) {
			n++
		}
	}
	return n
}

// notifyOperators keeps every operator's view consistent on call state
// transitions, excluding the given connections (typically the sender).
func (r *Router) notifyOperators(frame core.Frame, exclude ...core.ConnID) {
	for _, conn := range r.Presence.ByRole(domain.RoleOperator) {
		skip := false
		for _, ex := range exclude {
			if conn == ex {
				skip = true
				break
			}
		}
		if !skip {
			r.sendTo(conn, frame)
		}
	}
}

// exclusions collects the connections already covered by a direct forward,
// so operator notification does not deliver the same frame twice.
func (r *Router) exclusions(sender core.ConnID, other domain.CustomerID) []core.ConnID {
	out := []core.ConnID{sender}
	if other == "" {
		return out
	}
	if conn, _, ok := r.Presence.Lookup(other); ok {
		out = append(out, conn)
	}
	return out
}

// errorTo sends a local error notice to one sender. It never mutates state.
func (r *Router) errorTo(conn core.ConnID, code string) {
	b, err := json.Marshal(map[string]any{"type": "error", "error": code})
	if err != nil {
		return
	}
	r.sendTo(conn, core.Frame(b))
}
