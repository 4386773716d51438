package bench

import (
	"errors"
	"fmt"

	"github.com/sarchlab/busvip/sim/timing"
)

// Config controls the design under test and the traffic.
type Config struct {
	// Seed makes the traffic reproducible.
	Seed uint64

	// Transactions is the number of transactions issued on each bus.
	Transactions int

	// Workers is the number of processes that share each driver.
	Workers int

	// Freq is the clock frequency of the design.
	Freq timing.Freq

	// APBWaitStates is the largest number of wait states the completer
	// inserts. Each transfer draws a number in [0, APBWaitStates].
	APBWaitStates int

	// APBErrorBase is the first address the completer answers with
	// PSLVERR. Zero disables the error range.
	APBErrorBase uint64

	// APBCapacity is the size of the completer's storage in bytes.
	APBCapacity uint64

	// SRAMWords is the number of words of the SRAM.
	SRAMWords uint64

	// SRAMChipEnable adds the optional CE line to the SRAM bus.
	SRAMChipEnable bool

	// TraceDB, if set, records every transaction into a SQLite database
	// with this name.
	TraceDB string
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		Transactions:   200,
		Workers:        4,
		Freq:           100 * timing.MHz,
		APBWaitStates:  2,
		APBErrorBase:   0xe00,
		APBCapacity:    4096,
		SRAMWords:      256,
		SRAMChipEnable: true,
	}
}

// Validate checks that the configuration can build a bench.
func (c Config) Validate() error {
	switch {
	case c.Transactions < 0:
		return errors.New("bench: the number of transactions cannot be negative")
	case c.Workers <= 0:
		return errors.New("bench: at least one worker is required")
	case c.Freq <= 0:
		return fmt.Errorf("bench: invalid frequency %g", float64(c.Freq))
	case c.APBWaitStates < 0:
		return errors.New("bench: the number of wait states cannot be negative")
	case c.APBCapacity < uint64(wordBytes*c.Workers) || c.APBCapacity > 1<<addrWidth:
		return fmt.Errorf("bench: APB capacity %d is not in [%d, %d]",
			c.APBCapacity, wordBytes*c.Workers, 1<<addrWidth)
	case c.SRAMWords < uint64(c.Workers) || c.SRAMWords > 1<<addrWidth:
		return fmt.Errorf("bench: SRAM size %d is not in [%d, %d]",
			c.SRAMWords, c.Workers, 1<<addrWidth)
	}

	return nil
}
