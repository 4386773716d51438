package timing

import (
	"github.com/sarchlab/busvip/sim/hooking"
	"github.com/sarchlab/busvip/sim/id"
)

// VTimeInSec is a point in simulated time, in seconds.
type VTimeInSec float64

// An Event is scheduled on an engine and handled at its time.
type Event interface {
	Time() VTimeInSec
	Handler() Handler

	// IsSecondary tells if the event runs after all the primary events
	// of the same time. The signal kernel settles its time steps with
	// secondary events.
	IsSecondary() bool
}

// A Handler handles the events scheduled for it.
type Handler interface {
	Handle(e Event) error
}

var (
	// HookPosBeforeEvent is invoked right before an event is handled. The
	// hook item is the event.
	HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

	// HookPosAfterEvent is invoked right after an event is handled.
	HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
)

// EventBase implements Event. Concrete events embed it.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates a primary event at t.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      id.Generate(),
		time:    t,
		handler: handler,
	}
}

// NewSecondaryEventBase creates a secondary event at t.
func NewSecondaryEventBase(t VTimeInSec, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true

	return e
}

// Time returns when the event happens.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler of the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary tells if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}
