// Package hdl provides a signal-level simulation kernel on top of the timing
// engine.
//
// A time step runs in three phases. First the primary timed events of the
// step are handled (clock toggles, timers). Then delta cycles run until no
// signal changes and no process is runnable: scheduled signal writes are
// applied together, and the processes sensitive to the changes run. Last,
// the read-only phase resumes the processes waiting for the settle point;
// signal writes are not allowed in that phase.
//
// Processes are goroutines, but only one of them runs at any time. The
// kernel hands control to a process and waits until the process suspends on
// a trigger or returns.
package hdl

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/hooking"
	"github.com/sarchlab/busvip/sim/timing"
)

// maxDeltaCycles bounds the number of delta cycles in one time step.
const maxDeltaCycles = 10000

var (
	// ErrStalled is returned by Run when the simulation runs out of events
	// before the main process returns.
	ErrStalled = errors.New("hdl: simulation stalled before main process finished")

	// ErrDeadline is returned by Run when the deadline is reached before the
	// main process returns.
	ErrDeadline = errors.New("hdl: simulation deadline reached")
)

// HookPosSignalChange is triggered when a signal changes its settled value.
// The hook item is the *Signal and the detail is a Change.
var HookPosSignalChange = &hooking.HookPos{Name: "SignalChange"}

// Change describes one settled value change of a signal.
type Change struct {
	Time   timing.VTimeInSec
	Signal string
	Old    uint64
	New    uint64
}

// A Kernel owns the signals and processes of a simulated design.
type Kernel struct {
	*hooking.HookableBase

	engine timing.Engine

	signals   []*Signal
	pending   []*Signal
	runnable  []*Process
	readOnly  []waiter
	processes []*Process
	clocks    []*Clock

	current *Process
	yield   chan struct{}

	stepScheduled bool
	stepTime      timing.VTimeInSec
	inStep        bool
	inReadOnly    bool
	deltaCount    int

	deadline    timing.VTimeInSec
	deadlineHit bool

	mainProc *Process
	finished bool
	ran      bool
	failure  error
}

// NewKernel creates a kernel that advances time with the given engine.
func NewKernel(engine timing.Engine) *Kernel {
	return &Kernel{
		HookableBase: hooking.NewHookableBase(),
		engine:       engine,
		yield:        make(chan struct{}),
	}
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return "Kernel"
}

// Engine returns the engine that drives the kernel.
func (k *Kernel) Engine() timing.Engine {
	return k.engine
}

// CurrentTime returns the current simulated time.
func (k *Kernel) CurrentTime() timing.VTimeInSec {
	return k.engine.CurrentTime()
}

// SetDeadline drops every event later than t. A run that has not finished
// by then returns ErrDeadline. Zero means no deadline.
func (k *Kernel) SetDeadline(t timing.VTimeInSec) {
	k.deadline = t
}

// NewSignal creates a signal of the given bit width, initialized to 0.
func (k *Kernel) NewSignal(name string, width int) *Signal {
	s := newSignal(k, name, width)
	k.signals = append(k.signals, s)

	return s
}

// Signals returns all the signals created by the kernel.
func (k *Kernel) Signals() []*Signal {
	return k.signals
}

// InReadOnly tells if the kernel is in the read-only phase of a time step.
func (k *Kernel) InReadOnly() bool {
	return k.inReadOnly
}

// Finished tells if the simulation has ended, either because the main
// process returned or because a process failed.
func (k *Kernel) Finished() bool {
	return k.finished
}

// Run forks main as a process and runs the simulation until main returns.
// Processes still alive at that point are terminated and clocks are
// stopped. Run returns the error of the first process that failed.
func (k *Kernel) Run(main ProcessFunc) error {
	if k.ran {
		log.Panic("hdl: a kernel can only run once")
	}

	k.ran = true
	k.mainProc = k.Fork("main", main)

	err := k.engine.Run()

	k.shutdown()

	switch {
	case err != nil:
		return err
	case k.failure != nil:
		return k.failure
	case !k.mainProc.done && k.deadlineHit:
		return ErrDeadline
	case !k.mainProc.done:
		return ErrStalled
	}

	return nil
}

// Handle handles the kernel's own events.
func (k *Kernel) Handle(e timing.Event) error {
	switch e := e.(type) {
	case *stepEvent:
		k.step()
	case *timerEvent:
		if !k.finished {
			e.w.wake()
		}
	default:
		log.Panicf("hdl: kernel cannot handle event %T", e)
	}

	return nil
}

func (k *Kernel) schedule(evt timing.Event) {
	if k.deadline > 0 && evt.Time() > k.deadline {
		k.deadlineHit = true
		return
	}

	k.engine.Schedule(evt)
}

type stepEvent struct {
	*timing.EventBase
}

type timerEvent struct {
	*timing.EventBase
	w waiter
}

func (k *Kernel) scheduleStep() {
	if k.inStep || k.finished {
		return
	}

	now := k.engine.CurrentTime()
	if k.stepScheduled && k.stepTime == now {
		return
	}

	k.stepScheduled = true
	k.stepTime = now
	k.schedule(&stepEvent{timing.NewSecondaryEventBase(now, k)})
}

func (k *Kernel) step() {
	k.stepScheduled = false
	if k.finished {
		return
	}

	k.inStep = true
	k.deltaCount = 0

	defer func() { k.inStep = false }()

	for !k.finished {
		if len(k.runnable) > 0 {
			k.runRunnable()
			continue
		}

		if !k.applyPending() {
			break
		}
	}

	if k.finished {
		k.flushPending()
		return
	}

	k.settle()
}

// flushPending applies the writes left by the last processes to run, so
// that the settled values after Run include them. Waiters are not resumed
// once the kernel has finished.
func (k *Kernel) flushPending() {
	for k.applyPending() {
	}
}

func (k *Kernel) applyPending() bool {
	if len(k.pending) == 0 {
		return false
	}

	k.deltaCount++
	if k.deltaCount > maxDeltaCycles {
		log.Panicf("hdl: more than %d delta cycles at %.10f, "+
			"combinational loop?", maxDeltaCycles, k.CurrentTime())
	}

	sigs := k.pending
	k.pending = nil

	for _, s := range sigs {
		s.apply()
	}

	return true
}

func (k *Kernel) settle() {
	k.inReadOnly = true
	defer func() { k.inReadOnly = false }()

	waiters := k.readOnly
	k.readOnly = nil

	for _, w := range waiters {
		w.wake()
	}

	k.runRunnable()
}

func (k *Kernel) signalChanged(s *Signal, old, new uint64) {
	if k.NumHooks() == 0 {
		return
	}

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    HookPosSignalChange,
		Item:   s,
		Detail: Change{
			Time:   k.CurrentTime(),
			Signal: s.name,
			Old:    old,
			New:    new,
		},
	})
}

func (k *Kernel) makeRunnable(p *Process) {
	if k.finished {
		return
	}

	k.runnable = append(k.runnable, p)
	k.scheduleStep()
}

func (k *Kernel) runRunnable() {
	for len(k.runnable) > 0 && !k.finished {
		p := k.runnable[0]
		k.runnable = k.runnable[1:]
		k.resume(p)
	}
}

func (k *Kernel) resume(p *Process) {
	if p.done {
		return
	}

	k.current = p
	p.resume <- struct{}{}
	<-k.yield
	k.current = nil
}

func (k *Kernel) processFinished(p *Process, err error) {
	p.done = true
	p.err = err

	for _, w := range p.joiners {
		w.wake()
	}

	p.joiners = nil

	if err != nil && k.failure == nil {
		k.failure = fmt.Errorf("hdl: process %s failed: %w", p.name, err)
		k.finished = true
	}

	if p == k.mainProc {
		k.finished = true
	}
}

func (k *Kernel) shutdown() {
	k.finished = true

	for _, c := range k.clocks {
		c.running = false
	}

	for _, p := range k.processes {
		close(p.kill)
		<-p.exited
	}
}
