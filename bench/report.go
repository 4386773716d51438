package bench

import (
	"fmt"
	"strings"

	"github.com/sarchlab/busvip/sim/timing"
)

// BusReport summarizes the traffic on one bus.
type BusReport struct {
	Transactions uint64
	Reads        uint64
	Writes       uint64
	Mismatches   uint64
	SlaveErrors  uint64

	// UnexpectedErrors counts transfers that failed when they should have
	// succeeded, or succeeded when they should have failed.
	UnexpectedErrors uint64

	// WaitStates counts the periods a completer held PREADY low, and
	// WaitedTransfers the transfers that saw at least one of them.
	WaitStates      uint64
	WaitedTransfers uint64

	AverageLatency timing.VTimeInSec
	MaxLatency     timing.VTimeInSec
	BusyTime       timing.VTimeInSec
}

// Passed tells if every transaction behaved as the reference model
// predicted.
func (r BusReport) Passed() bool {
	return r.Mismatches == 0 && r.UnexpectedErrors == 0
}

// A RunReport is the outcome of a bench run.
type RunReport struct {
	APB           BusReport
	SRAM          BusReport
	SimulatedTime timing.VTimeInSec
	Events        uint64
	TraceFile     string
}

// Transactions returns the number of transactions completed on both buses.
func (r RunReport) Transactions() uint64 {
	return r.APB.Transactions + r.SRAM.Transactions
}

// Mismatches returns the number of failed checks on both buses.
func (r RunReport) Mismatches() uint64 {
	return r.APB.Mismatches + r.APB.UnexpectedErrors +
		r.SRAM.Mismatches + r.SRAM.UnexpectedErrors
}

// Passed tells if both buses passed.
func (r RunReport) Passed() bool {
	return r.APB.Passed() && r.SRAM.Passed()
}

func (r RunReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "simulated time: %.3f us, %d events\n",
		float64(r.SimulatedTime)*1e6, r.Events)

	for _, bus := range []struct {
		name string
		r    BusReport
	}{{"apb", r.APB}, {"sram", r.SRAM}} {
		fmt.Fprintf(&b,
			"%-4s  txns %d (r %d, w %d)  slverr %d  mismatch %d  "+
				"unexpected %d  avg %.1f ns  max %.1f ns  busy %.3f us\n",
			bus.name, bus.r.Transactions, bus.r.Reads, bus.r.Writes,
			bus.r.SlaveErrors, bus.r.Mismatches, bus.r.UnexpectedErrors,
			float64(bus.r.AverageLatency)*1e9, float64(bus.r.MaxLatency)*1e9,
			float64(bus.r.BusyTime)*1e6)

		if bus.r.WaitStates > 0 {
			fmt.Fprintf(&b, "      wait states %d in %d transfers\n",
				bus.r.WaitStates, bus.r.WaitedTransfers)
		}
	}

	if r.TraceFile != "" {
		fmt.Fprintf(&b, "trace: %s\n", r.TraceFile)
	}

	if r.Passed() {
		b.WriteString("PASS")
	} else {
		b.WriteString("FAIL")
	}

	return b.String()
}
