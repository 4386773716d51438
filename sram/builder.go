package sram

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/sim/hdl"
	"github.com/sarchlab/busvip/sim/hooking"
)

// Builder can build SRAM drivers.
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
		return nil, errors.New("sram: a design and a clock are required")
	}

	bb, err := bus.Bind(b.design, name,
		MandatorySignals, OptionalSignals, b.bindOptions...)
	if err != nil {
		return nil, fmt.Errorf("sram: cannot build driver %s: %w", name, err)
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
		logger:       logger.WithField("bus", name),
	}

	if bb.Has(CE) {
		d.caps |= CapChipEnable
	}

	for _, role := range []string{ADDR, WE, WDATA} {
		bb.Get(role).SetImmediate(0)
	}

	if d.caps.Has(CapChipEnable) {
		bb.Get(CE).SetImmediate(0)
	}

	return d, nil
}
