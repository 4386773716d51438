package timing

import (
	"reflect"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/hooking"
)

// A SerialEngine handles events one at a time, in time order. At equal
// times the primary events run before the secondary ones, and events of the
// same kind run in the order they were scheduled.
//
// Schedule may only be called from handlers or before Run. CurrentTime,
// Pause and Continue may be called from any goroutine.
type SerialEngine struct {
	hooking.HookableBase

	primary   EventQueue
	secondary EventQueue

	nowLock sync.RWMutex
	now     VTimeInSec

	// gate is held while an event is handled and while the engine is
	// paused.
	gate      sync.Mutex
	pauseLock sync.Mutex
	paused    bool

	running sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		primary:   NewEventQueue(),
		secondary: NewEventQueue(),
	}
}

// Schedule adds an event. Scheduling an event earlier than the current
// time panics.
func (e *SerialEngine) Schedule(evt Event) {
	mustNotBeInThePast(evt, e.CurrentTime())

	if evt.IsSecondary() {
		e.secondary.Push(evt)
		return
	}

	e.primary.Push(evt)
}

// CurrentTime returns the time of the event being handled, or of the last
// handled event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	e.nowLock.RLock()
	defer e.nowLock.RUnlock()

	return e.now
}

func (e *SerialEngine) setNow(t VTimeInSec) {
	e.nowLock.Lock()
	e.now = t
	e.nowLock.Unlock()
}

// Run handles events until none is left. It stops at the first handler
// error and returns it.
func (e *SerialEngine) Run() error {
	e.running.Lock()
	defer e.running.Unlock()

	for {
		evt := e.next()
		if evt == nil {
			return nil
		}

		if err := e.handle(evt); err != nil {
			return err
		}
	}
}

func (e *SerialEngine) handle(evt Event) error {
	e.gate.Lock()
	defer e.gate.Unlock()

	mustNotBeInThePast(evt, e.CurrentTime())
	e.setNow(evt.Time())

	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

// next pops the earliest event, preferring primary events at equal times.
// It returns nil when both queues are empty.
func (e *SerialEngine) next() Event {
	switch {
	case e.primary.Len() == 0 && e.secondary.Len() == 0:
		return nil
	case e.primary.Len() == 0:
		return e.secondary.Pop()
	case e.secondary.Len() == 0:
		return e.primary.Pop()
	case e.primary.Peek().Time() <= e.secondary.Peek().Time():
		return e.primary.Pop()
	}

	return e.secondary.Pop()
}

// Pause blocks the engine before its next event. Pausing a paused engine
// does nothing.
func (e *SerialEngine) Pause() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if !e.paused {
		e.gate.Lock()
		e.paused = true
	}
}

// Continue resumes a paused engine.
func (e *SerialEngine) Continue() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if e.paused {
		e.paused = false
		e.gate.Unlock()
	}
}

func mustNotBeInThePast(evt Event, now VTimeInSec) {
	if evt.Time() < now {
		log.Panicf("timing: event %s at %.10f is earlier than now (%.10f)",
			reflect.TypeOf(evt), float64(evt.Time()), float64(now))
	}
}
