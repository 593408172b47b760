package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The `sum` command: build the array, time the sequential fold and the four
// parallel strategies, print the table, optionally save JSON and CSV.
//
// Flags override the trial section of the config file. Anything not given
// on the command line comes from the file (or its defaults), so
//
//   parbasics sum
//   parbasics sum --size 1000000 --workers 1,2,4,8 --iterations 5
//   parbasics sum --op max --random --seed 7 --schedule dynamic --chunk 1024
//   parbasics sum --quick --chart --json run.json --csv run.csv
//
// all work. `report` prints a saved JSON suite again without re-running it.
//
// The command fails if any strategy disagrees with the sequential baseline.
//
// ===========================================================================

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errStrategyMismatch = errors.New("a strategy disagreed with the sequential baseline")

type sumFlags struct {
	size       int
	workers    []int
	iterations int
	op         string
	schedule   string
	chunk      int
	random     bool
	seed       uint64
	quick      bool
	detect     bool
	chart      bool
	jsonPath   string
	csvPath    string
}

func newSumCmd(a *app) *cobra.Command {
	var f sumFlags
	cmd := &cobra.Command{
		Use:     "sum",
		Aliases: []string{"benchmark"},
		Short:   "Time every reduction strategy against the sequential fold",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.detect {
				printHardware(cmd, DetectHardware())
				return nil
			}

			cfg, err := f.trialConfig(cmd, a.cfg)
			if err != nil {
				return err
			}
			return runSum(cmd, a, cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.size, "size", 0, "array length (default from config)")
	fl.IntSliceVarP(&f.workers, "workers", "w", nil, "worker counts to try, e.g. 1,2,4,8")
	fl.IntVar(&f.iterations, "iterations", 0, "timed repetitions per strategy")
	fl.StringVar(&f.op, "op", "", "operator: sum, product, min, max, and, or, xor")
	fl.StringVar(&f.schedule, "schedule", "", "work-sharing schedule: static, cyclic, dynamic")
	fl.IntVar(&f.chunk, "chunk", 0, "chunk size for cyclic and dynamic schedules")
	fl.BoolVar(&f.random, "random", false, "fill with seeded random values instead of ones")
	fl.Uint64Var(&f.seed, "seed", 0, "seed for --random")
	fl.BoolVar(&f.quick, "quick", false, "small array, workers 1,2,4, three iterations")
	fl.BoolVar(&f.detect, "detect", false, "only print the detected hardware")
	fl.BoolVar(&f.chart, "chart", false, "draw ASCII time and speedup charts")
	fl.StringVar(&f.jsonPath, "json", "", "write the suite to this JSON file")
	fl.StringVar(&f.csvPath, "csv", "", "write the suite to this CSV file")
	return cmd
}

// trialConfig layers the flags that were given over the config file.
func (f sumFlags) trialConfig(cmd *cobra.Command, base *Config) (TrialConfig, error) {
	cfg, err := base.TrialConfig()
	if err != nil {
		return TrialConfig{}, err
	}

	if f.quick {
		cfg.Size = 1_000_000
		cfg.Workers = []int{1, 2, 4}
		cfg.Iterations = 3
	}

	fl := cmd.Flags()
	if fl.Changed("size") {
		cfg.Size = f.size
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("iterations") {
		cfg.Iterations = f.iterations
	}
	if fl.Changed("op") {
		if cfg.Operator, err = ParseOperator(f.op); err != nil {
			return TrialConfig{}, err
		}
	}
	if fl.Changed("schedule") {
		if cfg.Schedule, err = ParseSchedule(f.schedule); err != nil {
			return TrialConfig{}, err
		}
	}
	if fl.Changed("chunk") {
		cfg.ChunkSize = f.chunk
	}
	if fl.Changed("random") {
		cfg.Random = f.random
	}
	if fl.Changed("seed") {
		cfg.Seed = f.seed
	}

	if err := cfg.Validate(); err != nil {
		return TrialConfig{}, err
	}
	return cfg, nil
}

func runSum(cmd *cobra.Command, a *app, cfg TrialConfig, f sumFlags) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Starting Reduction Trials ===")
	fmt.Fprintf(out, "Size:       %d\n", cfg.Size)
	fmt.Fprintf(out, "Workers:    %v\n", cfg.Workers)
	fmt.Fprintf(out, "Iterations: %d\n", cfg.Iterations)
	fmt.Fprintf(out, "Operator:   %s\n", cfg.Operator)
	fmt.Fprintf(out, "Schedule:   %s\n", cfg.Schedule)

	suite, err := RunTrialSuite(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}

	suite.PrintSummary(out)
	if f.chart {
		WriteASCIIChart(out, suite)
	}

	if f.jsonPath != "" {
		if err := suite.SaveJSON(f.jsonPath); err != nil {
			return fmt.Errorf("failed to save JSON: %w", err)
		}
		fmt.Fprintf(out, "Saved results to %s\n", f.jsonPath)
	}
	if f.csvPath != "" {
		if err := suite.SaveCSV(f.csvPath); err != nil {
			return fmt.Errorf("failed to save CSV: %w", err)
		}
		fmt.Fprintf(out, "Saved results to %s\n", f.csvPath)
	}

	if !suite.AllCorrect() {
		return errStrategyMismatch
	}
	return nil
}

func newReportCmd(a *app) *cobra.Command {
	var chart bool
	cmd := &cobra.Command{
		Use:   "report <suite.json>",
		Short: "Print a trial suite saved with sum --json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := LoadTrialSuite(args[0])
			if err != nil {
				return err
			}
			a.logger.Debug("loaded suite", zap.String("run_id", suite.RunID), zap.Int("results", len(suite.Results)))

			suite.PrintSummary(cmd.OutOrStdout())
			if chart {
				WriteASCIIChart(cmd.OutOrStdout(), suite)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&chart, "chart", false, "draw ASCII time and speedup charts")
	return cmd
}

func printHardware(cmd *cobra.Command, hw HardwareInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Hardware Detection ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Operating System: %s\n", hw.OS)
	fmt.Fprintf(out, "Architecture:     %s\n", hw.Arch)
	fmt.Fprintf(out, "CPU Model:        %s\n", hw.CPUModel)
	fmt.Fprintf(out, "CPU Cores:        %d\n", hw.NumCPU)
	fmt.Fprintf(out, "GOMAXPROCS:       %d\n", hw.GOMAXPROCS)
}
