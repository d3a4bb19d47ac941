package domain

import "time"

// CallStatus is the durable history status of a call record.
// Distinct from the relay's live session state: records outlive connections.
type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
	CallDeclined  CallStatus = "declined"
)

func (s CallStatus) Valid() bool {
	switch s {
	case CallInitiated, CallRinging, CallConnected, CallEnded, CallDeclined:
		return true
	}
	return false
}

// Live reports whether a record still describes an in-progress call.
func (s CallStatus) Live() bool {
	switch s {
	case CallInitiated, CallRinging, CallConnected:
		return true
	}
	return false
}

// CallRecord is the durable history row for one call. It is never consulted
// for live routing decisions.
type CallRecord struct {
	ID         int        `json:"id"`
	CallerID   CustomerID `json:"caller_id"`
	ReceiverID CustomerID `json:"receiver_id"`
	Status     CallStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Duration   int        `json:"duration,omitempty"` // seconds
}
