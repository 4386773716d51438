package hdl

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/timing"
)

// ProcessFunc is the body of a process.
type ProcessFunc func(p *Process) error

var errKilled = errors.New("hdl: process killed")

// A Process is a cooperative thread of the simulation. A process runs in
// zero simulated time between two awaits.
type Process struct {
	k    *Kernel
	name string

	resume chan struct{}
	kill   chan struct{}
	exited chan struct{}

	seq     uint64
	fired   Trigger
	done    bool
	killed  bool
	err     error
	joiners []waiter
}

// Fork creates a process. The process starts running in the current time
// step, after the processes that are already runnable.
func (k *Kernel) Fork(name string, fn ProcessFunc) *Process {
	p := &Process{
		k:      k,
		name:   name,
		resume: make(chan struct{}),
		kill:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	k.processes = append(k.processes, p)

	go p.run(fn)

	k.makeRunnable(p)

	return p
}

func (p *Process) run(fn ProcessFunc) {
	defer close(p.exited)

	select {
	case <-p.resume:
	case <-p.kill:
		return
	}

	err := p.call(fn)
	if p.killed || errors.Is(err, errKilled) {
		return
	}

	p.k.processFinished(p, err)
	p.k.yield <- struct{}{}
}

func (p *Process) call(fn ProcessFunc) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		switch v := r.(type) {
		case *log.Entry:
			err = fmt.Errorf("panic: %s", v.Message)
		case error:
			if errors.Is(v, errKilled) {
				err = errKilled
				return
			}

			err = fmt.Errorf("panic: %w", v)
		default:
			err = fmt.Errorf("panic: %v", v)
		}
	}()

	return fn(p)
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

// Kernel returns the kernel that runs the process.
func (p *Process) Kernel() *Kernel {
	return p.k
}

// Now returns the current simulated time.
func (p *Process) Now() timing.VTimeInSec {
	return p.k.CurrentTime()
}

// Done tells if the process has returned.
func (p *Process) Done() bool {
	return p.done
}

// Err returns the error the process returned with.
func (p *Process) Err() error {
	return p.err
}

// Await suspends the process until the first of the triggers fires and
// returns that trigger.
func (p *Process) Await(triggers ...Trigger) Trigger {
	p.mustBeRunning()

	if len(triggers) == 0 {
		log.Panicf("hdl: process %s awaits nothing", p.name)
	}

	p.fired = nil
	for _, t := range triggers {
		t.arm(waiter{p: p, seq: p.seq, t: t})
	}

	p.suspend()

	return p.fired
}

// Join waits until the other process returns and returns its error.
func (p *Process) Join(other *Process) error {
	if !other.done {
		p.Await(Join(other))
	}

	return other.err
}

func (p *Process) mustBeRunning() {
	if p.k.current != p {
		log.Panicf("hdl: process %s is not the running process", p.name)
	}
}

func (p *Process) suspend() {
	if p.k.finished {
		p.killed = true
		panic(errKilled)
	}

	p.k.yield <- struct{}{}

	select {
	case <-p.resume:
	case <-p.kill:
		p.killed = true
		panic(errKilled)
	}
}

// waiter is a process parked on a trigger. A process parked on several
// triggers is woken once; the other waiters become stale.
type waiter struct {
	p   *Process
	seq uint64
	t   Trigger
}

func (w waiter) stale() bool {
	return w.p.done || w.p.seq != w.seq
}

func (w waiter) wake() bool {
	if w.stale() {
		return false
	}

	w.p.seq++
	w.p.fired = w.t
	w.p.k.makeRunnable(w.p)

	return true
}

// Watch forks a process that calls fn once and then again every time one of
// the signals changes. It models combinational logic.
func (k *Kernel) Watch(name string, fn func(), sigs ...*Signal) *Process {
	if len(sigs) == 0 {
		log.Panicf("hdl: watch %s has no signals", name)
	}

	triggers := make([]Trigger, 0, len(sigs))
	for _, s := range sigs {
		triggers = append(triggers, Edge(s))
	}

	return k.Fork(name, func(p *Process) error {
		for {
			fn()
			p.Await(triggers...)
		}
	})
}
