package hdl

import (
	"github.com/sarchlab/busvip/sim/hooking"
	"github.com/sarchlab/busvip/sim/timing"
)

// A WaveRecorder is a hook that records signal changes.
type WaveRecorder struct {
	only    map[string]bool
	changes []Change
}

// NewWaveRecorder creates a recorder. If signals are given, only their
// changes are recorded.
func NewWaveRecorder(signals ...*Signal) *WaveRecorder {
	r := &WaveRecorder{}

	if len(signals) > 0 {
		r.only = make(map[string]bool)
		for _, s := range signals {
			r.only[s.name] = true
		}
	}

	return r
}

// Func records a signal change.
func (r *WaveRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosSignalChange {
		return
	}

	c := ctx.Detail.(Change)
	if r.only != nil && !r.only[c.Signal] {
		return
	}

	r.changes = append(r.changes, c)
}

// Changes returns all the recorded changes in time order.
func (r *WaveRecorder) Changes() []Change {
	return r.changes
}

// Of returns the recorded changes of one signal.
func (r *WaveRecorder) Of(name string) []Change {
	var changes []Change

	for _, c := range r.changes {
		if c.Signal == name {
			changes = append(changes, c)
		}
	}

	return changes
}

// ValueAt returns the value the signal settled to at time t, given its
// initial value.
func (r *WaveRecorder) ValueAt(name string, t timing.VTimeInSec, initial uint64) uint64 {
	v := initial

	for _, c := range r.changes {
		if c.Time > t {
			break
		}

		if c.Signal == name {
			v = c.New
		}
	}

	return v
}
