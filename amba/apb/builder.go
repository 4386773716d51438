package apb

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/sim/hdl"
	"github.com/sarchlab/busvip/sim/hooking"
)

// Builder can build APB drivers.
type Builder struct {
	design      *bus.Design
	clock       *hdl.Signal
	bindOptions []bus.BindOption
	logger      log.FieldLogger
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithDesign sets the design whose signals the driver drives.
func (b Builder) WithDesign(d *bus.Design) Builder {
	b.design = d
	return b
}

// WithClock sets the clock the driver is synchronous to.
func (b Builder) WithClock(clk *hdl.Signal) Builder {
	b.clock = clk
	return b
}

// WithBindOptions customizes how the signals are found in the design.
func (b Builder) WithBindOptions(opts ...bus.BindOption) Builder {
	b.bindOptions = append(b.bindOptions, opts...)
	return b
}

// WithLogger sets the logger of the driver.
func (b Builder) WithLogger(l log.FieldLogger) Builder {
	b.logger = l
	return b
}

// Build creates a driver for the bus with the given name. The driven
// signals are set to 0.
func (b Builder) Build(name string) (*Driver, error) {
	if b.design == nil || b.clock == nil {
		return nil, errors.New("apb: a design and a clock are required")
	}

	bb, err := bus.Bind(b.design, name,
		MandatorySignals, OptionalSignals, b.bindOptions...)
	if err != nil {
		return nil, fmt.Errorf("apb: cannot build driver %s: %w", name, err)
	}

	logger := b.logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	d := &Driver{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		bus:          bb,
		clk:          b.clock,
		lock:         hdl.NewLock(name + "_busy"),
		caps:         capabilitiesOf(bb),
		logger:       logger.WithField("bus", name),
	}

	d.initSignals()

	return d, nil
}

func capabilitiesOf(b *bus.Bus) Capabilities {
	var c Capabilities

	for _, cr := range capabilityRoles {
		if b.Has(cr.role) {
			c |= cr.c
		}
	}

	return c
}
