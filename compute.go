package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file holds the knobs every parallel routine in the repo is driven by:
// how many workers to fork, how the work-sharing loop hands out iterations,
// and where diagnostic output goes.
//
// INTENTION:
// Make the team size an explicit argument instead of a process-wide setting.
// The classic shared-memory tutorial calls "set the number of threads" once
// and every parallel region after that silently inherits it. Here each call
// receives a ReduceConfig, so two calls with different team sizes never
// interfere and a test can run W=1 and W=64 side by side.
//
// SCHEDULES:
//
//   static   - iterations split into one contiguous block per worker; the
//              first (n mod W) workers get one extra iteration.
//   cyclic   - fixed-size chunks dealt round-robin (chunk k -> worker k mod W).
//   dynamic  - fixed-size chunks claimed from a shared atomic counter; idle
//              workers keep pulling until the iteration space is exhausted.
//
// Static is the cache-friendly default. Cyclic and dynamic only pay off when
// iterations have uneven cost, which a plain array sum never does.
//
// ===========================================================================

// ErrInvalidConfiguration is returned, wrapped, whenever a worker count,
// length, operator, strategy or schedule cannot be used. No goroutine is
// started when a call fails with it.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Schedule selects how a work-sharing loop distributes iterations.
type Schedule int

const (
	ScheduleStatic Schedule = iota
	ScheduleCyclic
	ScheduleDynamic
)

// DefaultChunkSize is used by cyclic and dynamic schedules when no chunk
// size is configured.
const DefaultChunkSize = 4096

func (s Schedule) String() string {
	switch s {
	case ScheduleStatic:
		return "static"
	case ScheduleCyclic:
		return "cyclic"
	case ScheduleDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("Schedule(%d)", int(s))
	}
}

// ParseSchedule converts a schedule name (case-insensitive) to a Schedule.
func ParseSchedule(name string) (Schedule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "static":
		return ScheduleStatic, nil
	case "cyclic":
		return ScheduleCyclic, nil
	case "dynamic":
		return ScheduleDynamic, nil
	default:
		return 0, fmt.Errorf("unknown schedule %q: %w", name, ErrInvalidConfiguration)
	}
}

// MarshalText encodes the schedule by name.
func (s Schedule) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("unknown schedule %d: %w", int(s), ErrInvalidConfiguration)
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseSchedule does.
func (s *Schedule) UnmarshalText(text []byte) error {
	parsed, err := ParseSchedule(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Schedule) valid() bool {
	return s >= ScheduleStatic && s <= ScheduleDynamic
}

// ReduceConfig controls the team a parallel routine runs on.
type ReduceConfig struct {
	// NumWorkers is the team size. It must be at least 1; it may exceed
	// the number of CPUs.
	NumWorkers int

	// Schedule is used by work-sharing loops (StrategyWorkShared,
	// StrategyReduction and the demos built on Worker.For).
	Schedule Schedule

	// ChunkSize applies to cyclic and dynamic schedules. If 0,
	// DefaultChunkSize is used.
	ChunkSize int

	// Logger receives per-worker diagnostics at debug level. Nil discards.
	Logger *zap.Logger
}

// DefaultReduceConfig returns one worker per logical CPU with a static
// schedule.
func DefaultReduceConfig() ReduceConfig {
	return ReduceConfig{
		NumWorkers: runtime.NumCPU(),
		Schedule:   ScheduleStatic,
	}
}

// SingleThreadedConfig returns a team of one. Every strategy degenerates to
// the sequential fold under it.
func SingleThreadedConfig() ReduceConfig {
	return ReduceConfig{
		NumWorkers: 1,
		Schedule:   ScheduleStatic,
	}
}

// WithWorkers returns a copy of c with the team size replaced.
func (c ReduceConfig) WithWorkers(n int) ReduceConfig {
	c.NumWorkers = n
	return c
}

// Validate reports whether c can drive a team.
func (c ReduceConfig) Validate() error {
	if c.NumWorkers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d: %w", c.NumWorkers, ErrInvalidConfiguration)
	}
	if !c.Schedule.valid() {
		return fmt.Errorf("unknown schedule %d: %w", int(c.Schedule), ErrInvalidConfiguration)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative, got %d: %w", c.ChunkSize, ErrInvalidConfiguration)
	}
	return nil
}

func (c ReduceConfig) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return DefaultChunkSize
}

func (c ReduceConfig) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
