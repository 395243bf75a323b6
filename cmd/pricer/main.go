package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "pricer"
	version = "v1.4.0"
)

func main() {
	setupLogging()

	var configPath string
	var phase string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "NexusX dynamic auction pricing worker",
		Version: version,
		Long: `pricer runs the NexusX marketplace auction pricing subsystem:
it tracks demand signals, scores provider quality, and reprices every
ACTIVE listing on a fixed cycle, publishing ticks to the prices channel.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&phase, "phase", "", "Pricing phase preset (launch|growth|scale)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pricing worker",
		Long:  "Starts the cycle loop, the operational HTTP server and the websocket price relay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			return runWorker(configPath, phase, once)
		},
	}
	runCmd.Flags().Bool("once", false, "Run a single pricing cycle and exit")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Offline what-if pricing sweep",
		Long:  "Prices a hypothetical listing across a demand sweep without touching any backing store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, _ := cmd.Flags().GetFloat64("floor")
			competitors, _ := cmd.Flags().GetInt("competitors")
			quality, _ := cmd.Flags().GetFloat64("quality")
			return runSimulate(configPath, phase, floor, competitors, quality)
		},
	}
	simulateCmd.Flags().Float64("floor", 0.01, "Floor price in USDC")
	simulateCmd.Flags().Int("competitors", 3, "Active competitors in the category")
	simulateCmd.Flags().Float64("quality", 70, "Composite quality score (0-100)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging emits console output on a TTY and JSON everywhere else.
func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
