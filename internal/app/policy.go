package app

import "github.com/dialoq/hotline/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickConn
)

// Policy decides what to do with a connection that cannot keep up with
// the broadcast stream.
type Policy interface {
	OnBackPressure(conn core.ConnID) BackpressureAction
}

// SimplePolicy drops the frame and keeps the connection. Presence updates
// are repeated often enough that a missed one heals itself.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(conn core.ConnID) BackpressureAction {
	return DropFrame
}
