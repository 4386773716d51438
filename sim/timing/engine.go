// Package timing provides the discrete event engine that advances simulated
// time.
package timing

import (
	"github.com/sarchlab/busvip/sim/hooking"
)

// A TimeTeller tells the current simulated time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// An EventScheduler accepts events to handle in the future.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine handles the scheduled events in time order. Hooks attached to
// an engine are invoked around every event.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run handles events until none is left or a handler fails.
	Run() error

	// Pause blocks the engine before its next event. It is safe to call
	// from another goroutine.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}
