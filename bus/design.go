// Package bus binds the signals of a design under test to the logical roles
// of a bus protocol, and defines the transactions that bus drivers carry.
package bus

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/hdl"
)

// A Design is an instance of a design under test. It owns the signals that
// the testbench can reach.
type Design struct {
	name    string
	k       *hdl.Kernel
	signals map[string]*hdl.Signal
}

// NewDesign creates an empty design whose signals live in the kernel.
func NewDesign(k *hdl.Kernel, name string) *Design {
	return &Design{
		name:    name,
		k:       k,
		signals: make(map[string]*hdl.Signal),
	}
}

// Name returns the name of the design.
func (d *Design) Name() string {
	return d.name
}

// Kernel returns the kernel that simulates the design.
func (d *Design) Kernel() *hdl.Kernel {
	return d.k
}

// AddSignal creates a signal in the design. Adding a signal twice panics.
func (d *Design) AddSignal(name string, width int) *hdl.Signal {
	if _, found := d.signals[name]; found {
		log.Panicf("bus: design %s already has signal %s", d.name, name)
	}

	s := d.k.NewSignal(d.name+"."+name, width)
	d.signals[name] = s

	return s
}

// Signal looks up a signal by its name in the design.
func (d *Design) Signal(name string) (*hdl.Signal, bool) {
	s, ok := d.signals[name]
	return s, ok
}

// Signals returns the names of all the signals, sorted.
func (d *Design) Signals() []string {
	names := make([]string, 0, len(d.signals))
	for n := range d.signals {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
