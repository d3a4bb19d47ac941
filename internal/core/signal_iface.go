package core

import "errors"

// Frame is a raw outbound payload, already encoded for the wire.
type Frame []byte

// ConnID identifies one live transport session for its whole lifetime.
type ConnID string

// ErrBackpressure is returned by TrySend when the peer's send buffer is full.
var ErrBackpressure = errors.New("backpressure")

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
