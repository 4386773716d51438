package apb

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/busvip/amba"
	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/sim/hdl"
	"github.com/sarchlab/busvip/sim/timing"
	"github.com/sarchlab/busvip/tracing"
)

const period = timing.VTimeInSec(10e-9)

type testBench struct {
	k         *hdl.Kernel
	design    *bus.Design
	clk       *hdl.Signal
	driver    *Driver
	completer *Completer
}

func addAPBSignals(d *bus.Design, optional bool) {
	d.AddSignal("apb_PADDR", 32)
	d.AddSignal("apb_PWDATA", 32)
	d.AddSignal("apb_PWRITE", 1)
	d.AddSignal("apb_PRDATA", 32)
	d.AddSignal("apb_PSEL", 1)
	d.AddSignal("apb_PENABLE", 1)
	d.AddSignal("apb_PREADY", 1)
	d.AddSignal("apb_PSLVERR", 1)

	if optional {
		d.AddSignal("apb_PPROT", 3)
		d.AddSignal("apb_PSTRB", 4)
	}
}

func newTestBench(optional bool, cb CompleterBuilder) *testBench {
	b := &testBench{}
	b.k = hdl.NewKernel(timing.NewSerialEngine())
	b.clk = b.k.NewSignal("clk", 1)
	hdl.NewClock(b.clk, 100*timing.MHz).Start()

	b.design = bus.NewDesign(b.k, "dut")
	addAPBSignals(b.design, optional)

	var err error
	b.driver, err = MakeBuilder().
		WithDesign(b.design).
		WithClock(b.clk).
		Build("apb")
	Expect(err).NotTo(HaveOccurred())

	b.completer, err = cb.
		WithDesign(b.design).
		WithClock(b.clk).
		Build("apb")
	Expect(err).NotTo(HaveOccurred())

	return b
}

func (b *testBench) expectIdle(p *hdl.Process) {
	p.Await(hdl.ReadOnly())
	Expect(b.driver.Bus().Get(PSEL).Get()).To(BeZero())
	Expect(b.driver.Bus().Get(PENABLE).Get()).To(BeZero())
	Expect(b.driver.State()).To(Equal(StateIdle))
	Expect(b.driver.Busy()).To(BeFalse())
}

type windowTracer struct {
	k       *hdl.Kernel
	starts  map[string]timing.VTimeInSec
	windows [][2]timing.VTimeInSec
}

func (t *windowTracer) StartTask(task tracing.Task) {
	t.starts[task.ID] = t.k.CurrentTime()
}

func (t *windowTracer) StepTask(_ tracing.Task) {}

func (t *windowTracer) EndTask(task tracing.Task) {
	t.windows = append(t.windows,
		[2]timing.VTimeInSec{t.starts[task.ID], t.k.CurrentTime()})
}

var _ = Describe("Driver", func() {
	It("should read back what it writes", func() {
		b := newTestBench(false, MakeCompleterBuilder())

		err := b.k.Run(func(p *hdl.Process) error {
			Expect(b.driver.Write(p, 0x10, 0xdeadbeef)).To(Succeed())
			b.expectIdle(p)

			data, err := b.driver.Read(p, 0x10)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(uint64(0xdeadbeef)))
			b.expectIdle(p)

			rsp, err := b.driver.Transact(p, bus.ReadTxn(0x20))
			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.Valid).To(BeTrue())
			Expect(rsp.Data).To(BeZero())

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(b.driver.Capabilities()).To(BeZero())
		Expect(b.driver.Stats()).To(Equal(Stats{Reads: 2, Writes: 1}))
		Expect(b.completer.Transfers()).To(Equal(uint64(3)))
	})

	It("should not return data for writes", func() {
		b := newTestBench(false, MakeCompleterBuilder())

		err := b.k.Run(func(p *hdl.Process) error {
			rsp, err := b.driver.Transact(p, bus.WriteTxn(0x4, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.Valid).To(BeFalse())

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("should take exactly K extra periods for K wait states",
		func(k int) {
			b := newTestBench(false, MakeCompleterBuilder().
				WithWaitStates(func(uint64, bool) int { return k }))

			var readTime, writeTime timing.VTimeInSec
			err := b.k.Run(func(p *hdl.Process) error {
				p.Await(hdl.RisingEdge(b.clk))

				start := p.Now()
				Expect(b.driver.Write(p, 0x8, 0x1234)).To(Succeed())
				writeTime = p.Now() - start

				start = p.Now()
				data, err := b.driver.Read(p, 0x8)
				readTime = p.Now() - start

				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal(uint64(0x1234)))

				return nil
			})

			Expect(err).NotTo(HaveOccurred())

			expected := timing.VTimeInSec(4+k) * period
			Expect(writeTime).To(BeNumerically("~", expected, 1e-12))
			Expect(readTime).To(BeNumerically("~", expected, 1e-12))
			Expect(b.driver.Stats().WaitStates).To(Equal(uint64(2 * k)))
		},
		Entry("no wait state", 0),
		Entry("one wait state", 1),
		Entry("five wait states", 5),
	)

	It("should fail with a slave error and release the bus", func() {
		b := newTestBench(false, MakeCompleterBuilder().
			WithErrorRange(0x100, 0x200))

		err := b.k.Run(func(p *hdl.Process) error {
			err := b.driver.Write(p, 0x104, 0xab)

			var slaveErr *SlaveError
			Expect(errors.As(err, &slaveErr)).To(BeTrue())
			Expect(errors.Is(err, ErrSlave)).To(BeTrue())
			Expect(*slaveErr).To(Equal(
				SlaveError{Address: 0x104, WriteData: 0xab, Write: true}))
			Expect(err.Error()).To(Equal("apb: slave error, addr: 0x104, wdata: 0xab"))
			b.expectIdle(p)

			_, err = b.driver.Read(p, 0x100)
			Expect(err).To(MatchError("apb: slave error, addr: 0x100"))
			b.expectIdle(p)

			Expect(b.driver.Write(p, 0x200, 0x5)).To(Succeed())

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(b.driver.Stats().Errors).To(Equal(uint64(2)))
	})

	DescribeTable("should leave the bus idle when the run ends on a transfer",
		func(addr uint64, fails bool) {
			b := newTestBench(false, MakeCompleterBuilder().
				WithErrorRange(0x100, 0x200))

			var txnErr error
			err := b.k.Run(func(p *hdl.Process) error {
				txnErr = b.driver.Write(p, addr, 0x5a)
				return nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(txnErr != nil).To(Equal(fails))
			Expect(b.driver.Bus().Get(PSEL).Get()).To(BeZero())
			Expect(b.driver.Bus().Get(PENABLE).Get()).To(BeZero())
			Expect(b.driver.Busy()).To(BeFalse())
		},
		Entry("completed transfer", uint64(0x40), false),
		Entry("slave error", uint64(0x140), true),
	)

	It("should fail beyond the storage of the completer", func() {
		b := newTestBench(false, MakeCompleterBuilder().WithNewStorage(0x100))

		err := b.k.Run(func(p *hdl.Process) error {
			_, err := b.driver.Read(p, 0x100)
			Expect(err).To(MatchError(ErrSlave))

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should serialize concurrent transfers", func() {
		b := newTestBench(false, MakeCompleterBuilder().
			WithWaitStates(func(addr uint64, _ bool) int { return int(addr / 4) }))

		tracer := &windowTracer{k: b.k, starts: make(map[string]timing.VTimeInSec)}
		tracing.CollectTrace(b.driver, tracer)

		err := b.k.Run(func(p *hdl.Process) error {
			var workers []*hdl.Process
			for i := uint64(0); i < 4; i++ {
				addr := i * 4
				workers = append(workers, p.Kernel().Fork(
					fmt.Sprintf("worker%d", i),
					func(w *hdl.Process) error {
						return b.driver.Write(w, addr, 0x100+addr)
					}))
			}

			for _, w := range workers {
				Expect(p.Join(w)).To(Succeed())
			}

			for i := uint64(0); i < 4; i++ {
				data, err := b.driver.Read(p, i*4)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal(0x100 + i*4))
			}

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(tracer.windows).To(HaveLen(8))

		for i := 1; i < len(tracer.windows); i++ {
			Expect(tracer.windows[i][0]).To(
				BeNumerically(">=", tracer.windows[i-1][1]))
		}
	})

	It("should drive the optional signals", func() {
		b := newTestBench(true, MakeCompleterBuilder())
		prot := amba.NewProt(amba.ModePrivileged, amba.SecurityNonSecure,
			amba.TransactionData)

		err := b.k.Run(func(p *hdl.Process) error {
			Expect(b.driver.Write(p, 0x0, 0x11223344)).To(Succeed())
			Expect(b.driver.Write(p, 0x0, 0xaabbccdd,
				WithStrobe(0x3), WithProt(prot))).To(Succeed())

			Expect(b.completer.LastProt()).To(Equal(prot.Bits()))

			data, err := b.driver.Read(p, 0x0)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(uint64(0x1122ccdd)))

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(b.driver.Capabilities()).To(Equal(CapProt | CapStrobe))
		Expect(b.driver.Capabilities().String()).To(Equal("{PPROT,PSTRB}"))
	})

	It("should reject a strobe wider than PSTRB", func() {
		b := newTestBench(true, MakeCompleterBuilder())

		err := b.k.Run(func(p *hdl.Process) error {
			err := b.driver.Write(p, 0x0, 0x1, WithStrobe(0x1f))
			Expect(err).To(MatchError(bus.ErrByteEnableTooWide))

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should not hang when the completer never gets ready", func() {
		b := newTestBench(false, MakeCompleterBuilder().
			WithWaitStates(func(uint64, bool) int { return 1 << 30 }))
		b.k.SetDeadline(1e-6)

		err := b.k.Run(func(p *hdl.Process) error {
			_, err := b.driver.Read(p, 0x0)
			return err
		})

		Expect(err).To(MatchError(hdl.ErrDeadline))
	})

	It("should fail to build without a mandatory signal", func() {
		k := hdl.NewKernel(timing.NewSerialEngine())
		d := bus.NewDesign(k, "dut")
		d.AddSignal("apb_PADDR", 32)

		_, err := MakeBuilder().
			WithDesign(d).
			WithClock(k.NewSignal("clk", 1)).
			Build("apb")

		Expect(err).To(MatchError(bus.ErrMissingSignal))
	})

	It("should fail to build without a clock", func() {
		k := hdl.NewKernel(timing.NewSerialEngine())

		_, err := MakeBuilder().WithDesign(bus.NewDesign(k, "dut")).Build("apb")

		Expect(err).To(HaveOccurred())
	})
})
