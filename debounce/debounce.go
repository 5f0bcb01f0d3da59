// Package debounce filters repeated button triggers in software.
package debounce

import "time"

// Window is the quiet period enforced between accepted presses.
const Window = 200 * time.Millisecond

// Gate admits at most one trigger per window. Timestamps are milliseconds
// on a 32 bit clock; differences are taken modulo 2^32 so the gate keeps
// working when the clock wraps.
type Gate struct {
	window uint32
	last   uint32
}

func New(window time.Duration) *Gate {
	return &Gate{window: uint32(window / time.Millisecond)}
}

// Init sets the epoch baseline. Triggers within one window of nowMs are
// rejected, as if a press had just been accepted.
func (g *Gate) Init(nowMs uint32) {
	g.last = nowMs
}

// Admit reports whether a trigger at nowMs is outside the window of the last
// admitted one, and records it if so.
func (g *Gate) Admit(nowMs uint32) bool {
	if nowMs-g.last < g.window {
		return false
	}
	g.last = nowMs
	return true
}

// Clock turns wall time into milliseconds since its epoch.
type Clock struct {
	epoch time.Time
}

func NewClock(epoch time.Time) Clock {
	return Clock{epoch: epoch}
}

func (c Clock) Millis(t time.Time) uint32 {
	return uint32(t.Sub(c.epoch).Milliseconds())
}
