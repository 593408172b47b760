package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file times every reduction strategy against the sequential fold and
// keeps the numbers in a structure that can be printed, charted, or saved.
//
// INTENTION:
// Reproduce the classic "sum an array of ones four ways" experiment and make
// the cost of each synchronisation choice visible. Every trial also checks
// its answer: a fast wrong sum is a failed trial, not a fast one.
//
// PROCEDURE (per worker count, per strategy):
//   1. Refill the array (all ones, or a seeded random fill)
//   2. Start the clock, reduce, stop the clock
//   3. Repeat for the configured iterations, average the time
//   4. Compare the value with the sequential baseline
//
// The refill happens outside the timed section. The array is allocated once
// per suite and passed explicitly to every call.
//
// WHAT WE'RE MEASURING:
//   - Wall-clock time per reduction
//   - Speedup relative to the sequential fold
//   - Lock acquisitions on the shared accumulator (N vs W)
//
// ===========================================================================

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TrialConfig describes one trial suite.
type TrialConfig struct {
	Size       int      `json:"size"`
	Workers    []int    `json:"workers"`
	Iterations int      `json:"iterations"`
	Operator   Operator `json:"operator"`
	Schedule   Schedule `json:"schedule"`
	ChunkSize  int      `json:"chunk_size"`

	// Random fills the array with seeded values in [1, MaxValue] instead
	// of ones.
	Random   bool   `json:"random"`
	Seed     uint64 `json:"seed"`
	MaxValue int64  `json:"max_value"`
}

// DefaultTrialConfig returns a suite over 30M ones on one worker per CPU.
func DefaultTrialConfig() TrialConfig {
	return TrialConfig{
		Size:       30_000_000,
		Workers:    []int{runtime.NumCPU()},
		Iterations: 1,
		Operator:   OpSum,
		Schedule:   ScheduleStatic,
		MaxValue:   9,
	}
}

// Validate reports whether c can run.
func (c TrialConfig) Validate() error {
	if c.Size < 0 {
		return fmt.Errorf("size must not be negative, got %d: %w", c.Size, ErrInvalidConfiguration)
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker count is required: %w", ErrInvalidConfiguration)
	}
	for _, w := range c.Workers {
		if w <= 0 {
			return fmt.Errorf("worker count must be positive, got %d: %w", w, ErrInvalidConfiguration)
		}
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d: %w", c.Iterations, ErrInvalidConfiguration)
	}
	if !c.Operator.valid() {
		return fmt.Errorf("unknown operator %d: %w", int(c.Operator), ErrInvalidConfiguration)
	}
	return c.reduceConfig(1, nil).Validate()
}

func (c TrialConfig) reduceConfig(workers int, log *zap.Logger) ReduceConfig {
	return ReduceConfig{
		NumWorkers: workers,
		Schedule:   c.Schedule,
		ChunkSize:  c.ChunkSize,
		Logger:     log,
	}
}

// TrialResult is a single timed strategy at a single worker count.
type TrialResult struct {
	Strategy            string        `json:"strategy"`
	Level               int           `json:"level"`
	Workers             int           `json:"workers"`
	Size                int           `json:"size"`
	Iterations          int           `json:"iterations"`
	TotalTime           time.Duration `json:"total_time_ns"`
	AvgTime             time.Duration `json:"avg_time_ns"`
	Value               int64         `json:"value"`
	Expected            int64         `json:"expected"`
	Correct             bool          `json:"correct"`
	LockAcquisitions    int64         `json:"lock_acquisitions"`
	SpeedupVsSequential float64       `json:"speedup_vs_sequential"`
}

// TrialSuite is every result of one run.
type TrialSuite struct {
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	Hardware  HardwareInfo  `json:"hardware"`
	Config    TrialConfig   `json:"config"`
	Baseline  TrialResult   `json:"baseline"`
	Results   []TrialResult `json:"results"`
}

// AllCorrect reports whether every strategy matched the baseline.
func (suite *TrialSuite) AllCorrect() bool {
	for _, r := range suite.Results {
		if !r.Correct {
			return false
		}
	}
	return true
}

// Result returns the result for strategy s at the given worker count.
func (suite *TrialSuite) Result(s Strategy, workers int) (TrialResult, bool) {
	for _, r := range suite.Results {
		if r.Strategy == s.String() && r.Workers == workers {
			return r, true
		}
	}
	return TrialResult{}, false
}

// RunTrialSuite times the sequential fold and every parallel strategy at
// every configured worker count. log receives one line per trial; nil
// discards.
func RunTrialSuite(ctx context.Context, cfg TrialConfig, log *zap.Logger) (*TrialSuite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	suite := &TrialSuite{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Hardware:  DetectHardware(),
		Config:    cfg,
		Results:   make([]TrialResult, 0, len(cfg.Workers)*len(ParallelStrategies)),
	}
	log = log.With(zap.String("run_id", suite.RunID))

	data := make([]int64, cfg.Size)
	refill := func() {
		if cfg.Random {
			FillRandom(data, cfg.Seed, cfg.MaxValue)
			return
		}
		Fill(data, 1)
	}

	baseline, err := runTrial(ctx, data, refill, cfg, cfg.reduceConfig(1, nil), StrategySequential, 0)
	if err != nil {
		return nil, err
	}
	baseline.Correct = true
	baseline.Expected = baseline.Value
	baseline.SpeedupVsSequential = 1
	suite.Baseline = baseline
	log.Info("baseline",
		zap.Int("size", cfg.Size),
		zap.Stringer("operator", cfg.Operator),
		zap.Int64("value", baseline.Value),
		zap.Duration("avg", baseline.AvgTime))

	for _, workers := range cfg.Workers {
		rcfg := cfg.reduceConfig(workers, log)
		for level, s := range ParallelStrategies {
			r, err := runTrial(ctx, data, refill, cfg, rcfg, s, level+1)
			if err != nil {
				return nil, fmt.Errorf("%s with %d workers: %w", s, workers, err)
			}
			r.Expected = baseline.Value
			r.Correct = r.Value == baseline.Value
			if r.AvgTime > 0 {
				r.SpeedupVsSequential = float64(baseline.AvgTime) / float64(r.AvgTime)
			}
			suite.Results = append(suite.Results, r)

			fields := []zap.Field{
				zap.String("strategy", r.Strategy),
				zap.Int("workers", workers),
				zap.Duration("avg", r.AvgTime),
				zap.Float64("speedup", r.SpeedupVsSequential),
				zap.Int64("locks", r.LockAcquisitions),
			}
			if r.Correct {
				log.Info("trial", fields...)
			} else {
				log.Error("trial disagrees with baseline",
					append(fields, zap.Int64("value", r.Value), zap.Int64("expected", r.Expected))...)
			}
		}
	}

	return suite, nil
}

func runTrial(ctx context.Context, data []int64, refill func(), cfg TrialConfig, rcfg ReduceConfig, s Strategy, level int) (TrialResult, error) {
	r := TrialResult{
		Strategy:   s.String(),
		Level:      level,
		Workers:    rcfg.NumWorkers,
		Size:       len(data),
		Iterations: cfg.Iterations,
	}

	for range cfg.Iterations {
		refill()
		start := time.Now()
		out, err := ReduceDetailed(ctx, data, rcfg, cfg.Operator, s)
		r.TotalTime += time.Since(start)
		if err != nil {
			return r, err
		}
		r.Value = out.Value
		r.LockAcquisitions = out.LockAcquisitions
	}
	r.AvgTime = r.TotalTime / time.Duration(cfg.Iterations)
	return r, nil
}

// SaveJSON writes the suite to filename as indented JSON.
func (suite *TrialSuite) SaveJSON(filename string) error {
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// LoadTrialSuite reads a suite written by SaveJSON.
func LoadTrialSuite(filename string) (*TrialSuite, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	var suite TrialSuite
	if err := json.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return &suite, nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// PrintSummary writes a human-readable summary of the suite to w.
func (suite *TrialSuite) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("=== Reduction Summary ==="))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:      %s\n", suite.RunID)
	fmt.Fprintf(w, "Hardware: %s on %s/%s (%d CPUs, GOMAXPROCS=%d)\n",
		suite.Hardware.CPUModel, suite.Hardware.OS, suite.Hardware.Arch,
		suite.Hardware.NumCPU, suite.Hardware.GOMAXPROCS)
	fmt.Fprintf(w, "Array:    %d elements, operator %s\n", suite.Config.Size, suite.Config.Operator)
	fmt.Fprintf(w, "Baseline: %v (sequential), result %d\n", suite.Baseline.AvgTime, suite.Baseline.Value)
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(suite.Results))
	for _, r := range suite.Results {
		status := "ok"
		if !r.Correct {
			status = failStyle.Render("MISMATCH")
		}
		rows = append(rows, []string{
			r.Strategy,
			fmt.Sprintf("%d", r.Workers),
			r.AvgTime.String(),
			fmt.Sprintf("%.2fx", r.SpeedupVsSequential),
			fmt.Sprintf("%d", r.LockAcquisitions),
			fmt.Sprintf("%d", r.Value),
			status,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Strategy", "Workers", "Avg time", "Speedup", "Locks", "Result", "Check").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w)

	suite.printInsights(w)
}

func (suite *TrialSuite) printInsights(w io.Writer) {
	if len(suite.Results) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render("=== Key Insights ==="))
	fmt.Fprintln(w)

	best := suite.Results[0]
	for _, r := range suite.Results[1:] {
		if r.SpeedupVsSequential > best.SpeedupVsSequential {
			best = r
		}
	}
	fmt.Fprintf(w, "Best speedup: %.2fx (%s, %d workers)\n",
		best.SpeedupVsSequential, best.Strategy, best.Workers)

	workers := make([]int, 0, len(suite.Config.Workers))
	for _, r := range suite.Results {
		if !slices.Contains(workers, r.Workers) {
			workers = append(workers, r.Workers)
		}
	}
	for _, n := range workers {
		naive, okNaive := suite.Result(StrategyNaiveCritical, n)
		partial, okPartial := suite.Result(StrategyPartialSum, n)
		if !okNaive || !okPartial || partial.AvgTime <= 0 {
			continue
		}
		fmt.Fprintf(w, "%d workers: %d vs %d lock acquisitions, merging once is %.1fx faster\n",
			n, naive.LockAcquisitions, partial.LockAcquisitions,
			float64(naive.AvgTime)/float64(partial.AvgTime))
	}
	fmt.Fprintln(w)
}
