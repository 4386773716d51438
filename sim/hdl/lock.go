package hdl

import (
	log "github.com/sirupsen/logrus"
)

// A Lock is a mutual exclusion lock between processes. Waiting processes
// acquire the lock in the order they asked for it.
type Lock struct {
	name    string
	owner   *Process
	waiters []waiter
}

type lockTrigger struct {
	l *Lock
}

func (t lockTrigger) arm(w waiter) {
	t.l.waiters = append(t.l.waiters, w)
}

func (t lockTrigger) String() string {
	return "Lock(" + t.l.name + ")"
}

// NewLock creates a Lock.
func NewLock(name string) *Lock {
	return &Lock{name: name}
}

// Name returns the name of the lock.
func (l *Lock) Name() string {
	return l.name
}

// Locked tells if a process holds the lock.
func (l *Lock) Locked() bool {
	return l.owner != nil
}

// Owner returns the process that holds the lock, or nil.
func (l *Lock) Owner() *Process {
	return l.owner
}

// NumWaiting returns the number of processes waiting for the lock.
func (l *Lock) NumWaiting() int {
	n := 0

	for _, w := range l.waiters {
		if !w.stale() {
			n++
		}
	}

	return n
}

// Acquire takes the lock, suspending the process until the lock is free.
// The lock is not reentrant.
func (l *Lock) Acquire(p *Process) {
	p.mustBeRunning()

	if l.owner == nil {
		l.owner = p
		return
	}

	if l.owner == p {
		log.Panicf("hdl: process %s acquires lock %s twice", p.name, l.name)
	}

	p.Await(lockTrigger{l: l})
}

// Release gives the lock to the longest waiting process, or frees it.
// Only the owner can release the lock.
func (l *Lock) Release(p *Process) {
	if l.owner != p {
		log.Panicf("hdl: process %s releases lock %s it does not hold",
			p.name, l.name)
	}

	for len(l.waiters) > 0 {
		w := l.waiters[0]
		l.waiters = l.waiters[1:]

		if w.stale() {
			continue
		}

		l.owner = w.p
		w.wake()

		return
	}

	l.owner = nil
}
