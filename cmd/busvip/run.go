package main

import (
	"errors"
	"fmt"

	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/busvip/bench"
	"github.com/sarchlab/busvip/monitoring"
	"github.com/sarchlab/busvip/sim/id"
	"github.com/sarchlab/busvip/sim/timing"
)

// errMismatch is returned when the bench finds a transaction that does not
// match the reference model.
var errMismatch = errors.New("bench failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run seeded random traffic through the APB and SRAM drivers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := configFromFlags(cmd)
		if err != nil {
			return err
		}

		return runBench(cmd, config)
	},
}

func init() {
	d := bench.DefaultConfig()
	f := runCmd.Flags()

	f.Int("transactions", d.Transactions, "Transactions issued on each bus.")
	f.Int("workers", d.Workers, "Processes sharing each driver.")
	f.Uint64("seed", d.Seed, "Seed of the random traffic.")
	f.Float64("freq-mhz", float64(d.Freq/timing.MHz), "Clock frequency in MHz.")
	f.Int("apb-wait-states", d.APBWaitStates,
		"Largest number of wait states inserted by the APB completer.")
	f.Uint64("apb-error-base", d.APBErrorBase,
		"First APB address answered with PSLVERR, 0 to disable.")
	f.Bool("sram-chip-enable", d.SRAMChipEnable,
		"Add the optional CE line to the SRAM bus.")
	f.String("trace-db", "",
		"Record the transactions into this SQLite database.")
	f.Bool("monitor", false, "Serve the monitoring API while running.")
	f.Int("port", 0, "Port of the monitoring server, 0 for a random one.")
	f.Bool("open", false, "Open the monitoring page in a browser.")

	rootCmd.AddCommand(runCmd)
}

func configFromFlags(cmd *cobra.Command) (bench.Config, error) {
	c := bench.DefaultConfig()
	f := cmd.Flags()

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error

	c.Transactions, err = f.GetInt("transactions")
	collect(err)
	c.Workers, err = f.GetInt("workers")
	collect(err)
	c.Seed, err = f.GetUint64("seed")
	collect(err)

	mhz, err := f.GetFloat64("freq-mhz")
	collect(err)
	c.Freq = timing.Freq(mhz) * timing.MHz

	c.APBWaitStates, err = f.GetInt("apb-wait-states")
	collect(err)
	c.APBErrorBase, err = f.GetUint64("apb-error-base")
	collect(err)
	c.SRAMChipEnable, err = f.GetBool("sram-chip-enable")
	collect(err)
	c.TraceDB, err = f.GetString("trace-db")
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return c, err
	}

	return c, c.Validate()
}

func runBench(cmd *cobra.Command, config bench.Config) (err error) {
	if config.TraceDB != "" {
		id.UseGenerator(id.NewXIDGenerator())
	}

	builder := bench.MakeBuilder().
		WithConfig(config).
		WithLogger(log.StandardLogger())

	useMonitor, err := cmd.Flags().GetBool("monitor")
	if err != nil {
		return err
	}

	if useMonitor {
		m, merr := startMonitor(cmd)
		if merr != nil {
			return merr
		}

		defer func() {
			if serr := m.StopServer(); serr != nil {
				err = errors.Join(err, serr)
			}
		}()

		builder = builder.WithMonitor(m)
	}

	b, err := builder.Build("dut")
	if err != nil {
		return err
	}

	report, err := b.Run()
	fmt.Fprintln(cmd.OutOrStdout(), report.String())

	if err != nil {
		return err
	}

	if !report.Passed() {
		return fmt.Errorf("%w: %d mismatches", errMismatch, report.Mismatches())
	}

	return nil
}

func startMonitor(cmd *cobra.Command) (*monitoring.Monitor, error) {
	port, perr := cmd.Flags().GetInt("port")
	open, oerr := cmd.Flags().GetBool("open")

	if err := errors.Join(perr, oerr); err != nil {
		return nil, err
	}

	m := monitoring.NewMonitor().WithPortNumber(port)
	if err := m.StartServer(); err != nil {
		return nil, err
	}

	if open {
		if err := browser.OpenURL(m.URL()); err != nil {
			log.WithError(err).Warn("cannot open the monitoring page")
		}
	}

	return m, nil
}
