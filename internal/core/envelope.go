package core

import "encoding/json"

// Kind identifies a signaling message on the wire.
type Kind string

const (
	KindRegistration     Kind = "registration"
	KindPresenceUpdate   Kind = "presence_update"
	KindCallInitiate     Kind = "call_initiate"
	KindCallAccept       Kind = "call_accept"
	KindCallDecline      Kind = "call_decline"
	KindCallEnd          Kind = "call_end"
	KindSessionOffer     Kind = "session_offer"
	KindSessionAnswer    Kind = "session_answer"
	KindSessionCandidate Kind = "session_candidate"
	KindError            Kind = "error"
)

// Negotiation reports whether k carries an opaque session-negotiation blob.
// Those payloads are relayed verbatim and never decoded past the envelope.
func (k Kind) Negotiation() bool {
	switch k {
	case KindSessionOffer, KindSessionAnswer, KindSessionCandidate:
		return true
	}
	return false
}

// Envelope is the symmetric inbound/outbound message frame.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound envelope into a Frame.
func Encode(kind Kind, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Data: raw})
}
