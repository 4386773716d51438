package bench

import (
	"errors"
	"fmt"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/amba"
	"github.com/sarchlab/busvip/amba/apb"
	"github.com/sarchlab/busvip/bus"
	"github.com/sarchlab/busvip/monitoring"
	"github.com/sarchlab/busvip/sim/hdl"
)

const wordBytes = dataWidth / 8

// share returns the number of transactions worker i issues.
func (b *Bench) share(i int) int {
	n := b.config.Transactions / b.config.Workers
	if i < b.config.Transactions%b.config.Workers {
		n++
	}

	return n
}

func (b *Bench) runTraffic(p *hdl.Process, bar *monitoring.ProgressBar) error {
	k := p.Kernel()

	var workers []*hdl.Process

	for i := 0; i < b.config.Workers; i++ {
		w := &apbWorker{
			bench: b,
			index: i,
			rng:   rand.New(rand.NewPCG(b.config.Seed, uint64(2*i))),
			ref:   make(map[uint64]uint64),
			bar:   bar,
		}
		workers = append(workers, k.Fork(fmt.Sprintf("apb_worker%d", i), w.run))

		s := &sramWorker{
			bench: b,
			index: i,
			rng:   rand.New(rand.NewPCG(b.config.Seed, uint64(2*i+1))),
			ref:   make(map[uint64]uint64),
			bar:   bar,
		}
		workers = append(workers, k.Fork(fmt.Sprintf("sram_worker%d", i), s.run))
	}

	for _, w := range workers {
		if err := p.Join(w); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bench) mismatch(r *BusReport, fields log.Fields) {
	r.Mismatches++
	b.logger.WithFields(fields).Error("read data mismatch")
}

func progress(bar *monitoring.ProgressBar) {
	if bar == nil {
		return
	}

	bar.IncrementInProgress(1)
	bar.MoveInProgressToFinished(1)
}

// An apbWorker owns every word whose index is congruent to its index modulo
// the number of workers, so that its reference model does not depend on the
// other workers.
type apbWorker struct {
	bench *Bench
	index int
	rng   *rand.Rand
	ref   map[uint64]uint64
	bar   *monitoring.ProgressBar
}

func (w *apbWorker) addr() uint64 {
	b := w.bench
	words := b.config.APBCapacity / wordBytes / uint64(b.config.Workers)
	word := w.rng.Uint64N(words)*uint64(b.config.Workers) + uint64(w.index)

	return word * wordBytes
}

func (w *apbWorker) expectError(addr uint64) bool {
	base := w.bench.config.APBErrorBase
	return base > 0 && addr >= base
}

func (w *apbWorker) run(p *hdl.Process) error {
	for n := w.bench.share(w.index); n > 0; n-- {
		addr := w.addr()
		prot := amba.ProtFromBits(w.rng.Uint64())

		var err error
		if w.rng.IntN(2) == 0 {
			err = w.write(p, addr, prot)
		} else {
			err = w.read(p, addr, prot)
		}

		if err != nil {
			return err
		}

		if got := w.bench.completer.LastProt(); got != prot.Bits() {
			w.bench.mismatch(&w.bench.report.APB, log.Fields{
				"bus":  "apb",
				"addr": addr,
				"prot": prot.String(),
				"got":  got,
			})
		}

		progress(w.bar)
	}

	return nil
}

func (w *apbWorker) write(p *hdl.Process, addr uint64, prot amba.Prot) error {
	r := &w.bench.report.APB
	data := uint64(w.rng.Uint32())

	strobe := uint64(1)<<wordBytes - 1
	if w.rng.IntN(4) == 0 {
		strobe = w.rng.Uint64N(strobe) + 1
	}

	err := w.bench.apbDriver.Write(p, addr, data,
		apb.WithProt(prot), apb.WithStrobe(strobe))
	if done, cerr := w.checkError(addr, err); done {
		return cerr
	}

	r.Transactions++
	r.Writes++
	w.ref[addr] = mergeLanes(w.ref[addr], data, strobe)

	return nil
}

func (w *apbWorker) read(p *hdl.Process, addr uint64, prot amba.Prot) error {
	r := &w.bench.report.APB

	data, err := w.bench.apbDriver.Read(p, addr, apb.WithProt(prot))
	if done, cerr := w.checkError(addr, err); done {
		return cerr
	}

	r.Transactions++
	r.Reads++

	if data != w.ref[addr] {
		w.bench.mismatch(r, log.Fields{
			"bus":  "apb",
			"addr": addr,
			"want": w.ref[addr],
			"got":  data,
		})
	}

	return nil
}

// checkError counts the outcome of a transfer against the error range. It
// returns true if there is nothing left to check, along with the errors
// that are not slave errors.
func (w *apbWorker) checkError(addr uint64, err error) (bool, error) {
	r := &w.bench.report.APB

	if err != nil && !errors.Is(err, apb.ErrSlave) {
		return true, err
	}

	failed := err != nil
	if failed {
		r.Transactions++
		r.SlaveErrors++
	}

	if failed != w.expectError(addr) {
		r.UnexpectedErrors++
		w.bench.logger.WithFields(log.Fields{
			"bus":  "apb",
			"addr": addr,
		}).WithError(err).Error("unexpected transfer outcome")

		return true, nil
	}

	return failed, nil
}

type sramWorker struct {
	bench *Bench
	index int
	rng   *rand.Rand
	ref   map[uint64]uint64
	bar   *monitoring.ProgressBar
}

func (w *sramWorker) addr() uint64 {
	b := w.bench
	words := b.config.SRAMWords / uint64(b.config.Workers)

	return w.rng.Uint64N(words)*uint64(b.config.Workers) + uint64(w.index)
}

func (w *sramWorker) run(p *hdl.Process) error {
	r := &w.bench.report.SRAM

	for n := w.bench.share(w.index); n > 0; n-- {
		addr := w.addr()

		if w.rng.IntN(2) == 0 {
			data := uint64(w.rng.Uint32())
			lanes := uint64(1)<<wordBytes - 1

			txn := bus.WriteTxn(addr, data)
			if w.rng.IntN(4) == 0 {
				lanes = w.rng.Uint64N(lanes) + 1
				txn = txn.WithByteEnable(lanes)
			}

			if _, err := w.bench.sramDriver.Transact(p, txn); err != nil {
				return err
			}

			r.Writes++
			w.ref[addr] = mergeLanes(w.ref[addr], data, lanes)
		} else {
			data, err := w.bench.sramDriver.Read(p, addr)
			if err != nil {
				return err
			}

			r.Reads++

			if data != w.ref[addr] {
				w.bench.mismatch(r, log.Fields{
					"bus":  "sram",
					"addr": addr,
					"want": w.ref[addr],
					"got":  data,
				})
			}
		}

		r.Transactions++
		progress(w.bar)
	}

	return nil
}

// mergeLanes applies the enabled byte lanes of data to old.
func mergeLanes(old, data, lanes uint64) uint64 {
	for i := 0; i < wordBytes; i++ {
		if lanes&(1<<uint(i)) == 0 {
			continue
		}

		mask := uint64(0xff) << uint(8*i)
		old = old&^mask | data&mask
	}

	return old
}
