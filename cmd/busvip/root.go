package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// envPrefix is prepended to the upper-cased flag names to form the
// environment variables that provide flag defaults.
const envPrefix = "BUSVIP_"

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "busvip",
	Short: "busvip drives APB and SRAM buses in a cycle-accurate simulation.",
	Long: `busvip drives APB and SRAM buses in a cycle-accurate simulation. ` +
		`The run command checks both drivers against peripheral models ` +
		`with seeded random traffic.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}

		if err := applyEnv(cmd.Flags()); err != nil {
			return err
		}

		return setLogLevel(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"File to load environment variables from, if it exists.")
	rootCmd.PersistentFlags().String("log-level", "info",
		"Log level: trace, debug, info, warn or error.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("cannot load %s: %w", path, err)
	}

	return nil
}

// envName returns the environment variable that provides the default of a
// flag.
func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnv sets the flags that are not given on the command line from the
// environment.
func applyEnv(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		v, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		if serr := flags.Set(f.Name, v); serr != nil {
			err = fmt.Errorf("invalid %s: %w", envName(f.Name), serr)
		}
	})

	return err
}

func setLogLevel(cmd *cobra.Command) error {
	s, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(s)
	if err != nil {
		return err
	}

	log.SetLevel(level)

	return nil
}
