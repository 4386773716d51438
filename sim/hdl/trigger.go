package hdl

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/timing"
)

// A Trigger is something a process can wait for.
type Trigger interface {
	fmt.Stringer

	arm(w waiter)
}

type edgeKind int

const (
	edgeRising edgeKind = iota
	edgeFalling
	edgeAny
)

type edgeTrigger struct {
	s    *Signal
	kind edgeKind
}

// RisingEdge fires when the lowest bit of the signal goes from 0 to 1.
func RisingEdge(s *Signal) Trigger {
	return edgeTrigger{s: s, kind: edgeRising}
}

// FallingEdge fires when the lowest bit of the signal goes from 1 to 0.
func FallingEdge(s *Signal) Trigger {
	return edgeTrigger{s: s, kind: edgeFalling}
}

// Edge fires when the signal changes its value.
func Edge(s *Signal) Trigger {
	return edgeTrigger{s: s, kind: edgeAny}
}

func (t edgeTrigger) arm(w waiter) {
	switch t.kind {
	case edgeRising:
		t.s.riseWaiters = append(t.s.riseWaiters, w)
	case edgeFalling:
		t.s.fallWaiters = append(t.s.fallWaiters, w)
	default:
		t.s.changeWaiters = append(t.s.changeWaiters, w)
	}
}

func (t edgeTrigger) String() string {
	switch t.kind {
	case edgeRising:
		return "RisingEdge(" + t.s.name + ")"
	case edgeFalling:
		return "FallingEdge(" + t.s.name + ")"
	default:
		return "Edge(" + t.s.name + ")"
	}
}

type readOnlyTrigger struct{}

// ReadOnly fires at the settle point of the time step: after all the delta
// cycles, before the next timed event. If awaited during the read-only
// phase it fires at the settle point of the next time step.
func ReadOnly() Trigger {
	return readOnlyTrigger{}
}

func (readOnlyTrigger) arm(w waiter) {
	w.p.k.readOnly = append(w.p.k.readOnly, w)
}

func (readOnlyTrigger) String() string {
	return "ReadOnly"
}

type timerTrigger struct {
	d timing.VTimeInSec
}

// Timer fires after the given amount of simulated time.
func Timer(d timing.VTimeInSec) Trigger {
	if d <= 0 {
		log.Panicf("hdl: timer duration must be positive, got %g", d)
	}

	return timerTrigger{d: d}
}

func (t timerTrigger) arm(w waiter) {
	k := w.p.k
	evt := &timerEvent{
		EventBase: timing.NewEventBase(k.CurrentTime()+t.d, k),
		w:         w,
	}
	k.schedule(evt)
}

func (t timerTrigger) String() string {
	return fmt.Sprintf("Timer(%g)", t.d)
}

type joinTrigger struct {
	p *Process
}

// Join fires when the process returns.
func Join(p *Process) Trigger {
	return joinTrigger{p: p}
}

func (t joinTrigger) arm(w waiter) {
	if t.p.done {
		w.wake()
		return
	}

	t.p.joiners = append(t.p.joiners, w)
}

func (t joinTrigger) String() string {
	return "Join(" + t.p.name + ")"
}

// ClockCycles waits for n rising edges of the clock signal.
func ClockCycles(p *Process, clk *Signal, n int) {
	for i := 0; i < n; i++ {
		p.Await(RisingEdge(clk))
	}
}
