package hdl

import (
	"github.com/sarchlab/busvip/sim/timing"
)

// A Clock toggles a signal at a fixed frequency. The first rising edge
// happens half a period after the clock starts.
type Clock struct {
	k       *Kernel
	sig     *Signal
	freq    timing.Freq
	start   timing.VTimeInSec
	toggles uint64
	running bool
}

type toggleEvent struct {
	*timing.EventBase
}

// NewClock creates a clock that drives the signal.
func NewClock(sig *Signal, freq timing.Freq) *Clock {
	c := &Clock{
		k:    sig.k,
		sig:  sig,
		freq: freq,
	}
	sig.k.clocks = append(sig.k.clocks, c)

	return c
}

// Name returns the name of the clock signal.
func (c *Clock) Name() string {
	return c.sig.name
}

// Signal returns the driven signal.
func (c *Clock) Signal() *Signal {
	return c.sig
}

// Freq returns the frequency of the clock.
func (c *Clock) Freq() timing.Freq {
	return c.freq
}

// Start starts toggling the signal from 0.
func (c *Clock) Start() {
	if c.running {
		return
	}

	c.running = true
	c.start = c.k.CurrentTime()
	c.toggles = 0
	c.sig.SetImmediate(0)
	c.scheduleToggle()
}

// Stop stops toggling. The signal keeps its last value.
func (c *Clock) Stop() {
	c.running = false
}

// RisingEdgeTime returns the time of the n-th rising edge, counting from 0.
func (c *Clock) RisingEdgeTime(n uint64) timing.VTimeInSec {
	return c.start + timing.VTimeInSec(2*n+1)*c.freq.HalfPeriod()
}

func (c *Clock) scheduleToggle() {
	t := c.start + timing.VTimeInSec(c.toggles+1)*c.freq.HalfPeriod()
	c.k.schedule(&toggleEvent{timing.NewEventBase(t, c)})
}

// Handle toggles the clock signal.
func (c *Clock) Handle(_ timing.Event) error {
	if !c.running || c.k.finished {
		return nil
	}

	c.toggles++
	c.sig.Set(c.toggles % 2)
	c.scheduleToggle()

	return nil
}
