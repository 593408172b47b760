package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg    *Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "parbasics",
		Short: "Shared-memory parallel constructs, one goroutine team at a time",
		Long: `parbasics walks through the basic constructs of directive-style shared-memory
parallelism rebuilt on goroutines: a worker team, data-sharing attributes,
barriers, single and master regions, critical sections and reductions.

The sum command times four ways of adding up an array against a sequential
fold and checks that every one of them gets the same answer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			a.logger, err = NewLogger(cfg.Logging, a.verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log per-worker diagnostics")

	root.AddCommand(
		newHelloCmd(a),
		newScopingCmd(a),
		newBarrierCmd(a),
		newSingleCmd(a),
		newTwoCriticalCmd(a),
		newSumCmd(a),
		newReportCmd(a),
		newConfigCmd(a),
	)
	return root
}

// teamConfig returns the demo team configuration, with the team size taken
// from the --workers flag when it was given.
func (a *app) teamConfig(cmd *cobra.Command, workers int) ReduceConfig {
	cfg := a.cfg.DemoConfig()
	if cmd.Flags().Changed("workers") {
		cfg.NumWorkers = workers
	}
	cfg.Logger = a.logger
	return cfg
}
