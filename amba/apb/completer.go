package apb

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/mem/storage"
	"github.com/sarchlab/busvip/sim/hdl"
)

// WaitStateFunc returns the number of wait states of a transfer.
type WaitStateFunc func(addr uint64, write bool) int

type addrRange struct {
	lo, hi uint64
}

// CompleterBuilder can build APB completers.
type CompleterBuilder struct {
	design      *bus.Design
	clock       *hdl.Signal
	bindOptions []bus.BindOption
	storage     *storage.Storage
	capacity    uint64
	waitStates  WaitStateFunc
	errorRanges []addrRange
	logger      log.FieldLogger
}

// MakeCompleterBuilder returns a new CompleterBuilder.
func MakeCompleterBuilder() CompleterBuilder {
	return CompleterBuilder{
		capacity: 4096,
	}
}

// WithDesign sets the design whose signals the completer responds on.
func (b CompleterBuilder) WithDesign(d *bus.Design) CompleterBuilder {
	b.design = d
	return b
}

// WithClock sets the clock the completer is synchronous to.
func (b CompleterBuilder) WithClock(clk *hdl.Signal) CompleterBuilder {
	b.clock = clk
	return b
}

// WithBindOptions customizes how the signals are found in the design.
func (b CompleterBuilder) WithBindOptions(opts ...bus.BindOption) CompleterBuilder {
	b.bindOptions = append(b.bindOptions, opts...)
	return b
}

// WithStorage sets the storage behind the completer.
func (b CompleterBuilder) WithStorage(s *storage.Storage) CompleterBuilder {
	b.storage = s
	return b
}

// WithNewStorage makes the completer create its own storage.
func (b CompleterBuilder) WithNewStorage(capacity uint64) CompleterBuilder {
	b.capacity = capacity
	return b
}

// WithWaitStates sets the number of wait states of each transfer.
func (b CompleterBuilder) WithWaitStates(f WaitStateFunc) CompleterBuilder {
	b.waitStates = f
	return b
}

// WithErrorRange makes the transfers to addresses in [lo, hi) fail with
// PSLVERR.
func (b CompleterBuilder) WithErrorRange(lo, hi uint64) CompleterBuilder {
	b.errorRanges = append(b.errorRanges, addrRange{lo: lo, hi: hi})
	return b
}

// WithLogger sets the logger of the completer.
func (b CompleterBuilder) WithLogger(l log.FieldLogger) CompleterBuilder {
	b.logger = l
	return b
}

// Build creates the completer and forks its process.
func (b CompleterBuilder) Build(name string) (*Completer, error) {
	if b.design == nil || b.clock == nil {
		return nil, errors.New("apb: a design and a clock are required")
	}

	bb, err := bus.Bind(b.design, name,
		MandatorySignals, OptionalSignals, b.bindOptions...)
	if err != nil {
		return nil, fmt.Errorf("apb: cannot build completer %s: %w", name, err)
	}

	logger := b.logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	c := &Completer{
		name:        name,
		bus:         bb,
		clk:         b.clock,
		storage:     b.storage,
		waitStates:  b.waitStates,
		errorRanges: b.errorRanges,
		wordSize:    (bb.Get(PWDATA).Width() + 7) / 8,
		logger:      logger.WithFields(log.Fields{"bus": name, "model": "completer"}),
	}

	if c.storage == nil {
		c.storage = storage.New(b.capacity)
	}

	for _, role := range []string{PRDATA, PREADY, PSLVERR} {
		bb.Get(role).SetImmediate(0)
	}

	for _, role := range []string{PRUSER, PBUSER} {
		if s := bb.Get(role); s != nil {
			s.SetImmediate(0)
		}
	}

	b.design.Kernel().Fork(name, c.run)

	return c, nil
}

type completerState int

const (
	completerIdle completerState = iota
	completerAccess
)

// A Completer is a registered APB completer backed by a storage. A transfer
// starts when PSEL is high and PENABLE is low at a rising edge, and ends at
// the rising edge at which the completer holds PREADY high. The completer
// then waits for a new setup phase.
type Completer struct {
	name        string
	bus         *bus.Bus
	clk         *hdl.Signal
	storage     *storage.Storage
	waitStates  WaitStateFunc
	errorRanges []addrRange
	wordSize    int
	logger      *log.Entry

	state     completerState
	remaining int
	ready     bool
	failed    bool
	addr      uint64
	write     bool
	wdata     uint64
	strobe    uint64
	prot      uint64
	transfers uint64
}

// Name returns the name of the completer.
func (c *Completer) Name() string {
	return c.name
}

// Storage returns the storage behind the completer.
func (c *Completer) Storage() *storage.Storage {
	return c.storage
}

// Transfers returns the number of completed transfers.
func (c *Completer) Transfers() uint64 {
	return c.transfers
}

// LastProt returns the PPROT value of the last transfer.
func (c *Completer) LastProt() uint64 {
	return c.prot
}

func (c *Completer) sig(role string) *hdl.Signal {
	return c.bus.Get(role)
}

func (c *Completer) run(p *hdl.Process) error {
	for {
		p.Await(hdl.RisingEdge(c.clk))

		switch c.state {
		case completerIdle:
			c.idle()
		case completerAccess:
			c.access()
		}
	}
}

func (c *Completer) idle() {
	if !c.sig(PSEL).IsHigh() || c.sig(PENABLE).IsHigh() {
		return
	}

	c.addr = c.sig(PADDR).Get()
	c.write = c.sig(PWRITE).IsHigh()
	c.wdata = c.sig(PWDATA).Get()
	c.strobe = c.laneMask()

	if s := c.sig(PPROT); s != nil {
		c.prot = s.Get()
	}

	c.remaining = 0
	if c.waitStates != nil {
		c.remaining = c.waitStates(c.addr, c.write)
	}

	c.state = completerAccess
	c.countDown()
}

func (c *Completer) laneMask() uint64 {
	all := uint64(1)<<uint(c.wordSize) - 1

	s := c.sig(PSTRB)
	if s == nil {
		return all
	}

	return s.Get() & all
}

func (c *Completer) access() {
	if !c.ready {
		c.countDown()
		return
	}

	if !c.sig(PSEL).IsHigh() || !c.sig(PENABLE).IsHigh() {
		c.logger.Warn("transfer completed without PSEL and PENABLE")
	}

	if c.write && !c.failed {
		c.commitWrite()
	}

	c.transfers++
	c.ready = false
	c.failed = false
	c.state = completerIdle

	c.sig(PREADY).Set(0)
	c.sig(PSLVERR).Set(0)
}

// countDown raises PREADY once the wait states are over.
func (c *Completer) countDown() {
	if c.remaining > 0 {
		c.remaining--
		c.sig(PREADY).Set(0)

		return
	}

	c.ready = true
	c.failed = c.inErrorRange(c.addr) || !c.inStorage()

	var rdata uint64
	if !c.write && !c.failed {
		rdata = c.readWord()
	}

	if c.failed {
		c.logger.WithField("addr", c.addr).Debug("responding with PSLVERR")
	}

	c.sig(PRDATA).Set(rdata)
	c.sig(PSLVERR).Set(boolToBit(c.failed))
	c.sig(PREADY).Set(1)
}

func (c *Completer) inErrorRange(addr uint64) bool {
	for _, r := range c.errorRanges {
		if addr >= r.lo && addr < r.hi {
			return true
		}
	}

	return false
}

func (c *Completer) wordAddr() uint64 {
	return c.addr - c.addr%uint64(c.wordSize)
}

func (c *Completer) inStorage() bool {
	return c.wordAddr()+uint64(c.wordSize) <= c.storage.Capacity()
}

func (c *Completer) readWord() uint64 {
	v, err := c.storage.ReadWord(c.wordAddr(), c.wordSize)
	if err != nil {
		c.logger.WithError(err).Warn("read failed")
	}

	return v
}

func (c *Completer) commitWrite() {
	err := c.storage.WriteWord(c.wordAddr(), c.wordSize, c.wdata, c.strobe)
	if err != nil {
		c.logger.WithError(err).Warn("write dropped")
	}
}

func boolToBit(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}
