package sram

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/mem/storage"
	"github.com/sarchlab/busvip/sim/hdl"
)

// MemoryBuilder can build SRAM memory models.
type MemoryBuilder struct {
	design      *bus.Design
	clock       *hdl.Signal
	bindOptions []bus.BindOption
	storage     *storage.Storage
	capacity    uint64
	logger      log.FieldLogger
}

// MakeMemoryBuilder returns a new MemoryBuilder.
func MakeMemoryBuilder() MemoryBuilder {
	return MemoryBuilder{
		capacity: 4096,
	}
}

// WithDesign sets the design whose signals the memory responds on.
func (b MemoryBuilder) WithDesign(d *bus.Design) MemoryBuilder {
	b.design = d
	return b
}

// WithClock sets the clock the memory is synchronous to.
func (b MemoryBuilder) WithClock(clk *hdl.Signal) MemoryBuilder {
	b.clock = clk
	return b
}

// WithBindOptions customizes how the signals are found in the design.
func (b MemoryBuilder) WithBindOptions(opts ...bus.BindOption) MemoryBuilder {
	b.bindOptions = append(b.bindOptions, opts...)
	return b
}

// WithStorage sets the storage behind the memory.
func (b MemoryBuilder) WithStorage(s *storage.Storage) MemoryBuilder {
	b.storage = s
	return b
}

// WithNewStorage makes the memory create its own storage with the given
// capacity in bytes.
func (b MemoryBuilder) WithNewStorage(capacity uint64) MemoryBuilder {
	b.capacity = capacity
	return b
}

// WithLogger sets the logger of the memory.
func (b MemoryBuilder) WithLogger(l log.FieldLogger) MemoryBuilder {
	b.logger = l
	return b
}

// Build creates the memory and forks its processes.
func (b MemoryBuilder) Build(name string) (*Memory, error) {
	if b.design == nil || b.clock == nil {
		return nil, errors.New("sram: a design and a clock are required")
	}

	bb, err := bus.Bind(b.design, name,
		MandatorySignals, OptionalSignals, b.bindOptions...)
	if err != nil {
		return nil, fmt.Errorf("sram: cannot build memory %s: %w", name, err)
	}

	logger := b.logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	m := &Memory{
		name:     name,
		bus:      bb,
		clk:      b.clock,
		storage:  b.storage,
		wordSize: (bb.Get(WDATA).Width() + 7) / 8,
		logger:   logger.WithFields(log.Fields{"bus": name, "model": "memory"}),
	}

	if m.storage == nil {
		m.storage = storage.New(b.capacity)
	}

	bb.Get(RDATA).SetImmediate(0)

	k := b.design.Kernel()
	k.Fork(name+".write", m.writePort)

	sensitivity := []*hdl.Signal{bb.Get(ADDR)}
	if bb.Has(CE) {
		sensitivity = append(sensitivity, bb.Get(CE))
	}

	k.Watch(name+".read", m.readPort, sensitivity...)

	return m, nil
}

// A Memory is an SRAM with a word-addressed interface. Writes are
// registered at the rising edge when the memory is selected and WE is not
// zero; bit i of WE enables byte i of the word. A WE of a single bit
// enables the whole word.
type Memory struct {
	name     string
	bus      *bus.Bus
	clk      *hdl.Signal
	storage  *storage.Storage
	wordSize int
	logger   *log.Entry

	writes uint64
}

// Name returns the name of the memory.
func (m *Memory) Name() string {
	return m.name
}

// Storage returns the storage behind the memory.
func (m *Memory) Storage() *storage.Storage {
	return m.storage
}

// Writes returns the number of registered writes.
func (m *Memory) Writes() uint64 {
	return m.writes
}

// Peek returns the word at a word address without going through the bus.
func (m *Memory) Peek(addr uint64) (uint64, error) {
	return m.storage.ReadWord(addr*uint64(m.wordSize), m.wordSize)
}

func (m *Memory) selected() bool {
	ce := m.bus.Get(CE)
	return ce == nil || ce.IsHigh()
}

func (m *Memory) writePort(p *hdl.Process) error {
	for {
		p.Await(hdl.RisingEdge(m.clk))

		we := m.bus.Get(WE)
		if !m.selected() || we.Get() == 0 {
			continue
		}

		lanes := we.Get()
		if we.Width() == 1 {
			lanes = uint64(1)<<uint(m.wordSize) - 1
		}

		addr := m.bus.Get(ADDR).Get()
		err := m.storage.WriteWord(addr*uint64(m.wordSize), m.wordSize,
			m.bus.Get(WDATA).Get(), lanes)
		if err != nil {
			m.logger.WithError(err).Warn("write dropped")
			continue
		}

		m.writes++
		m.readPort()
	}
}

func (m *Memory) readPort() {
	v, err := m.Peek(m.bus.Get(ADDR).Get())
	if err != nil {
		v = 0
	}

	m.bus.Get(RDATA).Set(v)
}
