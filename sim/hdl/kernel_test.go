package hdl

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/busvip/sim/timing"
)

var _ = Describe("Kernel", func() {
	var (
		k   *Kernel
		clk *Signal
	)

	BeforeEach(func() {
		k = NewKernel(timing.NewSerialEngine())
		clk = k.NewSignal("clk", 1)
	})

	It("should make a write visible after the delta cycle", func() {
		sig := k.NewSignal("a", 8)

		var before, after uint64
		err := k.Run(func(p *Process) error {
			sig.Set(5)
			before = sig.Get()
			p.Await(ReadOnly())
			after = sig.Get()
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(before).To(Equal(uint64(0)))
		Expect(after).To(Equal(uint64(5)))
	})

	It("should apply the last writes of main after it returns", func() {
		sig := k.NewSignal("a", 8)
		recorder := NewWaveRecorder(sig)
		k.AcceptHook(recorder)

		err := k.Run(func(p *Process) error {
			sig.Set(7)
			p.Await(Timer(1e-9))
			sig.Set(3)
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(sig.Get()).To(Equal(uint64(3)))
		Expect(recorder.Of("a")).To(HaveLen(2))
	})

	It("should drop bits beyond the width", func() {
		sig := k.NewSignal("nibble", 4)

		err := k.Run(func(p *Process) error {
			sig.Set(0x1f)
			p.Await(ReadOnly())
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(sig.Get()).To(Equal(uint64(0xf)))
		Expect(sig.Mask()).To(Equal(uint64(0xf)))
	})

	It("should sample pre-edge values on a rising edge", func() {
		d := k.NewSignal("d", 8)
		q := k.NewSignal("q", 8)
		clock := NewClock(clk, 1*timing.GHz)
		clock.Start()

		k.Fork("flop", func(p *Process) error {
			for {
				p.Await(RisingEdge(clk))
				q.Set(d.Get())
			}
		})

		var qAfter uint64
		var doneAt timing.VTimeInSec
		err := k.Run(func(p *Process) error {
			for i := uint64(1); i <= 3; i++ {
				p.Await(RisingEdge(clk))
				d.Set(i)
			}

			p.Await(RisingEdge(clk))
			Expect(q.Get()).To(Equal(uint64(2)))

			p.Await(ReadOnly())
			qAfter = q.Get()
			doneAt = p.Now()

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(qAfter).To(Equal(uint64(3)))
		Expect(doneAt).To(BeNumerically("~", clock.RisingEdgeTime(3), 1e-15))
	})

	It("should return the first trigger that fires", func() {
		never := k.NewSignal("never", 1)

		var fired Trigger
		err := k.Run(func(p *Process) error {
			fired = p.Await(RisingEdge(never), Timer(5e-9))
			Expect(p.Now()).To(BeNumerically("~", 5e-9, 1e-18))
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(fired).To(Equal(Timer(5e-9)))
	})

	It("should wake a process only once when several triggers fire", func() {
		a := k.NewSignal("a", 1)
		b := k.NewSignal("b", 1)
		wakeups := 0

		k.Fork("watcher", func(p *Process) error {
			for {
				p.Await(Edge(a), Edge(b))
				wakeups++
			}
		})

		err := k.Run(func(p *Process) error {
			a.Set(1)
			b.Set(1)
			p.Await(ReadOnly())
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(wakeups).To(Equal(1))
	})

	It("should re-evaluate a combinational watch", func() {
		a := k.NewSignal("a", 8)
		b := k.NewSignal("b", 8)
		sum := k.NewSignal("sum", 9)

		k.Watch("adder", func() {
			sum.Set(a.Get() + b.Get())
		}, a, b)

		err := k.Run(func(p *Process) error {
			a.Set(200)
			b.Set(100)
			p.Await(ReadOnly())
			Expect(sum.Get()).To(Equal(uint64(300)))

			p.Await(Timer(1e-9))
			b.Set(1)
			p.Await(ReadOnly())
			Expect(sum.Get()).To(Equal(uint64(201)))

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should fail a process that writes in the read-only phase", func() {
		sig := k.NewSignal("a", 1)

		err := k.Run(func(p *Process) error {
			p.Await(ReadOnly())
			sig.Set(1)
			return nil
		})

		Expect(err).To(MatchError(ContainSubstring("read-only")))
	})

	It("should report the error of a failing process", func() {
		boom := errors.New("boom")

		k.Fork("failing", func(p *Process) error {
			return boom
		})

		err := k.Run(func(p *Process) error {
			ClockCycles(p, clk, 10)
			return nil
		})

		Expect(err).To(MatchError(boom))
	})

	It("should turn a panic into an error", func() {
		err := k.Run(func(p *Process) error {
			panic("oops")
		})

		Expect(err).To(MatchError(ContainSubstring("oops")))
	})

	It("should report a stalled simulation", func() {
		never := k.NewSignal("never", 1)

		err := k.Run(func(p *Process) error {
			p.Await(RisingEdge(never))
			return nil
		})

		Expect(err).To(MatchError(ErrStalled))
	})

	It("should stop at the deadline", func() {
		NewClock(clk, 1*timing.GHz).Start()
		k.SetDeadline(10e-9)

		edges := 0
		err := k.Run(func(p *Process) error {
			for {
				p.Await(RisingEdge(clk))
				edges++
			}
		})

		Expect(err).To(MatchError(ErrDeadline))
		Expect(edges).To(Equal(10))
	})

	It("should terminate the remaining processes when main returns", func() {
		NewClock(clk, 1*timing.GHz).Start()

		cleanedUp := false
		k.Fork("forever", func(p *Process) error {
			defer func() { cleanedUp = true }()

			for {
				p.Await(RisingEdge(clk))
			}
		})

		err := k.Run(func(p *Process) error {
			ClockCycles(p, clk, 3)
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(cleanedUp).To(BeTrue())
	})

	It("should join a process", func() {
		clock := NewClock(clk, 1*timing.GHz)
		clock.Start()

		var joinedAt timing.VTimeInSec
		err := k.Run(func(p *Process) error {
			child := p.Kernel().Fork("child", func(c *Process) error {
				ClockCycles(c, clk, 4)
				return nil
			})

			Expect(p.Join(child)).To(Succeed())
			joinedAt = p.Now()
			Expect(child.Done()).To(BeTrue())

			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(joinedAt).To(BeNumerically("~", clock.RisingEdgeTime(3), 1e-15))
	})

	It("should refuse an await from a process that is not running", func() {
		var child *Process

		err := k.Run(func(p *Process) error {
			child = p.Kernel().Fork("child", func(c *Process) error {
				c.Await(ReadOnly())
				return nil
			})

			child.Await(ReadOnly())

			return nil
		})

		Expect(err).To(MatchError(ContainSubstring("not the running process")))
	})

	It("should record signal changes", func() {
		clock := NewClock(clk, 100*timing.MHz)
		clock.Start()
		recorder := NewWaveRecorder(clk)
		k.AcceptHook(recorder)

		err := k.Run(func(p *Process) error {
			ClockCycles(p, clk, 2)
			return nil
		})

		Expect(err).NotTo(HaveOccurred())

		changes := recorder.Of("clk")
		Expect(changes).To(HaveLen(3))
		Expect(changes[0].New).To(Equal(uint64(1)))
		Expect(changes[0].Time).To(BeNumerically("~", 5e-9, 1e-15))
		Expect(changes[1].New).To(Equal(uint64(0)))
		Expect(changes[1].Time).To(BeNumerically("~", 10e-9, 1e-15))
		Expect(changes[2].Time).To(BeNumerically("~", 15e-9, 1e-15))
		Expect(recorder.ValueAt("clk", 12e-9, 0)).To(Equal(uint64(0)))
	})

	It("should panic on an invalid width", func() {
		Expect(func() { k.NewSignal("wide", 65) }).To(Panic())
		Expect(func() { k.NewSignal("empty", 0) }).To(Panic())
	})
})
