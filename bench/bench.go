// Package bench builds a small design with an APB completer and an SRAM,
// and checks both drivers with seeded random traffic.
package bench

import (
	"fmt"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/amba/apb"
	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/mem/storage"
	"github.com/sarchlab/busvip/monitoring"
	"github.com/sarchlab/busvip/sim/hdl"
	"github.com/sarchlab/busvip/sim/timing"
	"github.com/sarchlab/busvip/sram"
	"github.com/sarchlab/busvip/tracing"
)

const (
	dataWidth = 32
	addrWidth = 16
)

// Builder can build benches.
type Builder struct {
	config  Config
	logger  log.FieldLogger
	monitor *monitoring.Monitor
	tracers []tracing.Tracer
}

// MakeBuilder returns a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{config: DefaultConfig()}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithLogger sets the logger of the bench and of the components it
// builds.
func (b Builder) WithLogger(l log.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithMonitor registers the engine and the components with a monitor.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithTracer attaches an extra tracer to both drivers.
func (b Builder) WithTracer(t tracing.Tracer) Builder {
	b.tracers = append(b.tracers, t)
	return b
}

// Build creates the design, its models and the drivers.
func (b Builder) Build(name string) (*Bench, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	engine := timing.NewSerialEngine()
	k := hdl.NewKernel(engine)
	clk := k.NewSignal("clk", 1)

	bn := &Bench{
		config:  b.config,
		engine:  engine,
		kernel:  k,
		design:  bus.NewDesign(k, name),
		clock:   hdl.NewClock(clk, b.config.Freq),
		logger:  logger.WithField("bench", name),
		monitor: b.monitor,
	}

	if err := bn.buildAPB(logger); err != nil {
		return nil, err
	}

	if err := bn.buildSRAM(logger); err != nil {
		return nil, err
	}

	bn.events = timing.NewEventLogger(bn.logger)
	engine.AcceptHook(bn.events)

	bn.attachTracers(b.tracers)

	if b.monitor != nil {
		bn.registerWithMonitor()
	}

	return bn, nil
}

// A Bench is a design with an APB completer and an SRAM, driven by the
// transaction drivers.
type Bench struct {
	config  Config
	engine  *timing.SerialEngine
	kernel  *hdl.Kernel
	design  *bus.Design
	clock   *hdl.Clock
	logger  *log.Entry
	monitor *monitoring.Monitor

	apbDriver  *apb.Driver
	completer  *apb.Completer
	sramDriver *sram.Driver
	memory     *sram.Memory

	apbLatency  *tracing.AverageTimeTracer
	sramLatency *tracing.AverageTimeTracer
	apbBusy     *tracing.BusyTimeTracer
	sramBusy    *tracing.BusyTimeTracer
	apbSteps    *tracing.StepCountTracer
	traceDB     *tracing.DBTracer
	traceWriter *tracing.SQLiteTraceWriter
	events      *timing.EventLogger

	report RunReport
	ran    bool
}

// Kernel returns the kernel that runs the design.
func (b *Bench) Kernel() *hdl.Kernel {
	return b.kernel
}

// Design returns the design under test.
func (b *Bench) Design() *bus.Design {
	return b.design
}

// APB returns the APB driver.
func (b *Bench) APB() *apb.Driver {
	return b.apbDriver
}

// Completer returns the APB completer.
func (b *Bench) Completer() *apb.Completer {
	return b.completer
}

// SRAM returns the SRAM driver.
func (b *Bench) SRAM() *sram.Driver {
	return b.sramDriver
}

// Memory returns the SRAM model.
func (b *Bench) Memory() *sram.Memory {
	return b.memory
}

func (b *Bench) buildAPB(logger log.FieldLogger) error {
	d := b.design
	d.AddSignal("apb_PADDR", addrWidth)
	d.AddSignal("apb_PWDATA", dataWidth)
	d.AddSignal("apb_PWRITE", 1)
	d.AddSignal("apb_PRDATA", dataWidth)
	d.AddSignal("apb_PSEL", 1)
	d.AddSignal("apb_PENABLE", 1)
	d.AddSignal("apb_PREADY", 1)
	d.AddSignal("apb_PSLVERR", 1)
	d.AddSignal("apb_PPROT", 3)
	d.AddSignal("apb_PSTRB", dataWidth/8)

	cb := apb.MakeCompleterBuilder().
		WithDesign(d).
		WithClock(b.clock.Signal()).
		WithStorage(storage.New(b.config.APBCapacity)).
		WithLogger(logger)

	if b.config.APBWaitStates > 0 {
		rng := rand.New(rand.NewPCG(b.config.Seed, 0xa9b))
		maxWait := b.config.APBWaitStates
		cb = cb.WithWaitStates(func(uint64, bool) int {
			return rng.IntN(maxWait + 1)
		})
	}

	if b.config.APBErrorBase > 0 {
		cb = cb.WithErrorRange(b.config.APBErrorBase, 1<<addrWidth)
	}

	var err error

	b.completer, err = cb.Build("apb")
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	b.apbDriver, err = apb.MakeBuilder().
		WithDesign(d).
		WithClock(b.clock.Signal()).
		WithLogger(logger).
		Build("apb")
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	return nil
}

func (b *Bench) buildSRAM(logger log.FieldLogger) error {
	d := b.design
	d.AddSignal("sram_ADDR", addrWidth)
	d.AddSignal("sram_WE", dataWidth/8)
	d.AddSignal("sram_WDATA", dataWidth)
	d.AddSignal("sram_RDATA", dataWidth)

	if b.config.SRAMChipEnable {
		d.AddSignal("sram_CE", 1)
	}

	var err error

	b.memory, err = sram.MakeMemoryBuilder().
		WithDesign(d).
		WithClock(b.clock.Signal()).
		WithNewStorage(b.config.SRAMWords * dataWidth / 8).
		WithLogger(logger).
		Build("sram")
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	b.sramDriver, err = sram.MakeBuilder().
		WithDesign(d).
		WithClock(b.clock.Signal()).
		WithLogger(logger).
		Build("sram")
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	return nil
}

func (b *Bench) attachTracers(extra []tracing.Tracer) {
	b.apbLatency = tracing.NewAverageTimeTracer(b.kernel, tracing.KindIs("apb"))
	b.sramLatency = tracing.NewAverageTimeTracer(b.kernel, tracing.KindIs("sram"))
	b.apbBusy = tracing.NewBusyTimeTracer(b.kernel, tracing.KindIs("apb"))
	b.sramBusy = tracing.NewBusyTimeTracer(b.kernel, tracing.KindIs("sram"))
	b.apbSteps = tracing.NewStepCountTracer(tracing.KindIs("apb"))

	tracing.CollectTrace(b.apbDriver, b.apbLatency)
	tracing.CollectTrace(b.apbDriver, b.apbBusy)
	tracing.CollectTrace(b.apbDriver, b.apbSteps)
	tracing.CollectTrace(b.sramDriver, b.sramLatency)
	tracing.CollectTrace(b.sramDriver, b.sramBusy)

	logTracer := tracing.NewLogTracer(b.kernel, b.logger, log.TraceLevel)
	extra = append(extra, logTracer)

	if b.config.TraceDB != "" {
		b.traceWriter = tracing.NewSQLiteTraceWriter(b.config.TraceDB)
		b.traceDB = tracing.NewDBTracer(b.kernel, b.traceWriter)
		extra = append(extra, b.traceDB)
	}

	for _, t := range extra {
		tracing.CollectTrace(b.apbDriver, t)
		tracing.CollectTrace(b.sramDriver, t)
	}
}

func (b *Bench) registerWithMonitor() {
	b.monitor.RegisterEngine(b.engine)
	b.monitor.RegisterComponent(b.apbDriver)
	b.monitor.RegisterComponent(b.completer)
	b.monitor.RegisterComponent(b.sramDriver)
	b.monitor.RegisterComponent(b.memory)
}

// Run starts the clock and runs the traffic until every worker is done.
// A bench can only run once.
func (b *Bench) Run() (RunReport, error) {
	if b.ran {
		return RunReport{}, fmt.Errorf("bench: %s has already run", b.design.Name())
	}

	b.ran = true

	var bar *monitoring.ProgressBar
	if b.monitor != nil {
		total := uint64(2 * b.config.Transactions)
		bar = b.monitor.CreateProgressBar(b.design.Name(), total)
		defer b.monitor.CompleteProgressBar(bar)
	}

	b.kernel.SetDeadline(b.deadline())
	b.clock.Start()

	err := b.kernel.Run(func(p *hdl.Process) error {
		return b.runTraffic(p, bar)
	})

	b.report.SimulatedTime = b.kernel.CurrentTime()
	b.report.Events = b.events.Count()
	b.collectStats()

	if b.traceDB != nil {
		b.traceDB.Terminate()
		b.report.TraceFile = b.traceWriter.Path()

		if cerr := b.traceWriter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("bench: cannot close trace: %w", cerr)
		}
	}

	if err != nil {
		return b.report, fmt.Errorf("bench: simulation failed: %w", err)
	}

	b.logger.WithFields(log.Fields{
		"transactions": b.report.Transactions(),
		"mismatches":   b.report.Mismatches(),
		"time":         float64(b.report.SimulatedTime),
	}).Info("bench done")

	return b.report, nil
}

// deadline bounds the run so that a hung bus cannot stall it forever. APB
// transfers take at most 4+W periods and SRAM accesses take 2.
func (b *Bench) deadline() timing.VTimeInSec {
	n := float64(b.config.Transactions)
	periods := n*float64(4+b.config.APBWaitStates) + 2*n + 100

	return timing.VTimeInSec(periods) * b.config.Freq.Period()
}

func (b *Bench) collectStats() {
	b.report.APB.AverageLatency = b.apbLatency.AverageTime()
	b.report.APB.MaxLatency = b.apbLatency.MaxTime()
	b.report.APB.BusyTime = b.apbBusy.BusyTime()
	b.report.APB.WaitStates = b.apbSteps.StepCount("wait")
	b.report.APB.WaitedTransfers = b.apbSteps.TaskCount("wait")

	b.report.SRAM.AverageLatency = b.sramLatency.AverageTime()
	b.report.SRAM.MaxLatency = b.sramLatency.MaxTime()
	b.report.SRAM.BusyTime = b.sramBusy.BusyTime()
}
