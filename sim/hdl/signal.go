package hdl

import (
	log "github.com/sirupsen/logrus"
)

// A Signal is a named wire of up to 64 bits.
//
// Writes through Set are scheduled: they become visible to Get when the
// current delta cycle ends. The last write of a delta cycle wins.
type Signal struct {
	k     *Kernel
	name  string
	width int
	mask  uint64

	value   uint64
	next    uint64
	pending bool

	riseWaiters   []waiter
	fallWaiters   []waiter
	changeWaiters []waiter
}

func newSignal(k *Kernel, name string, width int) *Signal {
	if width < 1 || width > 64 {
		log.Panicf("hdl: signal %s has invalid width %d", name, width)
	}

	mask := ^uint64(0)
	if width < 64 {
		mask = 1<<uint(width) - 1
	}

	return &Signal{
		k:     k,
		name:  name,
		width: width,
		mask:  mask,
	}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Kernel returns the kernel that owns the signal.
func (s *Signal) Kernel() *Kernel {
	return s.k
}

// Width returns the number of bits of the signal.
func (s *Signal) Width() int {
	return s.width
}

// Mask returns a value with all the bits of the signal set.
func (s *Signal) Mask() uint64 {
	return s.mask
}

// Get returns the settled value of the signal.
func (s *Signal) Get() uint64 {
	return s.value
}

// IsHigh tells if the lowest bit of the settled value is 1.
func (s *Signal) IsHigh() bool {
	return s.value&1 == 1
}

// Set schedules a new value. Bits beyond the width are dropped. Writing in
// the read-only phase panics.
func (s *Signal) Set(v uint64) {
	if s.k.inReadOnly {
		log.Panicf("hdl: signal %s written in the read-only phase", s.name)
	}

	s.next = v & s.mask

	if !s.pending {
		s.pending = true
		s.k.pending = append(s.k.pending, s)
	}

	s.k.scheduleStep()
}

// SetImmediate changes the settled value right away without waking any
// process. It is meant for initialization before the simulation runs.
func (s *Signal) SetImmediate(v uint64) {
	s.value = v & s.mask
	s.next = s.value
}

func (s *Signal) apply() {
	s.pending = false

	old := s.value
	if old == s.next {
		return
	}

	s.value = s.next
	s.k.signalChanged(s, old, s.value)
	s.notify(old, s.value)
}

func (s *Signal) notify(old, new uint64) {
	wakeAll(&s.changeWaiters)

	switch {
	case old&1 == 0 && new&1 == 1:
		wakeAll(&s.riseWaiters)
	case old&1 == 1 && new&1 == 0:
		wakeAll(&s.fallWaiters)
	}
}

func wakeAll(list *[]waiter) {
	waiters := *list
	*list = nil

	for _, w := range waiters {
		w.wake()
	}
}
