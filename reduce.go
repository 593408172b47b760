package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Four ways to add up an array in parallel, from worst to best. All four
// produce exactly the sequential fold; only the cost of synchronisation
// differs.
//
// Level 1: StrategyNaiveCritical
//   - Manual index arithmetic splits [0, N) into W contiguous ranges
//   - Every element is added to the shared accumulator under the lock
//   - N lock acquisitions: contention scales with the data, not the team
//
// Level 2: StrategyPartialSum
//   - Same manual split
//   - Each worker folds its range into a local, then takes the lock once
//   - W lock acquisitions
//
// Level 3: StrategyWorkShared
//   - The work-sharing loop decides who gets which iterations
//   - Same local partial + one locked merge per worker
//   - Shows that handing the split to the runtime doesn't change the merge
//
// Level 4: StrategyReduction (the default)
//   - Declare the operator, the runtime does the rest
//   - No lock and no local written by the caller; partials are combined
//     after the join
//
// THE KEY INSIGHT:
// A critical section is cheap when it is rare. Strategy 1 and strategy 2 do
// the same arithmetic; strategy 1 just asks for the lock N/W times more often.
//
// ===========================================================================

// Strategy selects how a parallel fold synchronises its accumulator.
type Strategy int

const (
	StrategySequential Strategy = iota
	StrategyNaiveCritical
	StrategyPartialSum
	StrategyWorkShared
	StrategyReduction
)

// ParallelStrategies lists the strategies that fork a team, in the order of
// the tutorial.
var ParallelStrategies = []Strategy{
	StrategyNaiveCritical,
	StrategyPartialSum,
	StrategyWorkShared,
	StrategyReduction,
}

func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyNaiveCritical:
		return "naive-critical"
	case StrategyPartialSum:
		return "partial-sum"
	case StrategyWorkShared:
		return "work-shared"
	case StrategyReduction:
		return "reduction"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a strategy name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for s := StrategySequential; s <= StrategyReduction; s++ {
		if key == s.String() {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q: %w", name, ErrInvalidConfiguration)
}

func (s Strategy) valid() bool {
	return s >= StrategySequential && s <= StrategyReduction
}

// ReduceOutcome is the result of one parallel fold plus what it cost.
type ReduceOutcome struct {
	Value    int64
	Strategy Strategy
	Workers  int

	// LockAcquisitions counts entries into the shared accumulator's
	// critical section.
	LockAcquisitions int64

	// Partitions holds the range each worker computed for itself. Only the
	// manual strategies fill it.
	Partitions []Partition
}

// ctxCheckInterval is how many elements the naive strategy processes
// between context checks.
const ctxCheckInterval = 1 << 14

// Reduce folds data with op on a team of workers using the declarative
// reduction.
func Reduce(ctx context.Context, data []int64, workers int, op Operator) (int64, error) {
	cfg := DefaultReduceConfig().WithWorkers(workers)
	return ReduceWith(ctx, data, cfg, op, StrategyReduction)
}

// ReduceWith folds data with op using strategy s.
func ReduceWith(ctx context.Context, data []int64, cfg ReduceConfig, op Operator, s Strategy) (int64, error) {
	out, err := ReduceDetailed(ctx, data, cfg, op, s)
	return out.Value, err
}

// ReduceDetailed is ReduceWith that also reports lock traffic and the
// partitions the workers used.
func ReduceDetailed(ctx context.Context, data []int64, cfg ReduceConfig, op Operator, s Strategy) (ReduceOutcome, error) {
	out := ReduceOutcome{Strategy: s, Workers: cfg.NumWorkers}
	if !op.valid() {
		return out, fmt.Errorf("unknown operator %d: %w", int(op), ErrInvalidConfiguration)
	}
	if !s.valid() {
		return out, fmt.Errorf("unknown strategy %d: %w", int(s), ErrInvalidConfiguration)
	}
	team, err := NewTeam(cfg)
	if err != nil {
		return out, err
	}

	switch s {
	case StrategySequential:
		out.Value, err = Sequential(data, op)
	case StrategyNaiveCritical:
		err = naiveCritical(ctx, team, data, op, &out)
	case StrategyPartialSum:
		err = partialSum(ctx, team, data, op, &out)
	case StrategyWorkShared:
		err = workShared(ctx, team, data, op, &out)
	case StrategyReduction:
		out.Value, err = team.ReduceSlice(ctx, data, op)
	}
	return out, err
}

func naiveCritical(ctx context.Context, team *Team, data []int64, op Operator, out *ReduceOutcome) error {
	acc := op.Identity()
	crit := team.Critical("")
	parts := make([]Partition, team.Size())

	err := team.Run(ctx, func(w *Worker) error {
		p := ManualPartition(len(data), w.NumWorkers(), w.ID)
		parts[w.ID] = p
		logRange(w, p)

		for i := p.From; i <= p.To; i++ {
			if (i-p.From)%ctxCheckInterval == 0 {
				if err := w.Context().Err(); err != nil {
					return err
				}
			}
			crit.Enter()
			acc = op.Combine(acc, data[i])
			crit.Exit()
		}
		return nil
	})

	out.Value = acc
	out.LockAcquisitions = crit.Entries()
	out.Partitions = parts
	return err
}

func partialSum(ctx context.Context, team *Team, data []int64, op Operator, out *ReduceOutcome) error {
	acc := op.Identity()
	crit := team.Critical("")
	parts := make([]Partition, team.Size())

	err := team.Run(ctx, func(w *Worker) error {
		p := ManualPartition(len(data), w.NumWorkers(), w.ID)
		parts[w.ID] = p
		logRange(w, p)

		if err := w.Context().Err(); err != nil {
			return err
		}
		local := op.fold(op.Identity(), data[p.From:p.To+1])

		crit.Do(func() {
			acc = op.Combine(acc, local)
		})
		return nil
	})

	out.Value = acc
	out.LockAcquisitions = crit.Entries()
	out.Partitions = parts
	return err
}

func workShared(ctx context.Context, team *Team, data []int64, op Operator, out *ReduceOutcome) error {
	acc := op.Identity()
	crit := team.Critical("")

	err := team.Run(ctx, func(w *Worker) error {
		local := op.Identity()
		err := w.For(len(data), func(p Partition) {
			local = op.fold(local, data[p.From:p.To+1])
		})
		if err != nil {
			return err
		}

		crit.Do(func() {
			acc = op.Combine(acc, local)
		})
		return nil
	})

	out.Value = acc
	out.LockAcquisitions = crit.Entries()
	return err
}

func logRange(w *Worker, p Partition) {
	w.Logger().Debug("worker range",
		zap.Int("worker", w.ID),
		zap.Int("workers", w.NumWorkers()),
		zap.Int("from", p.From),
		zap.Int("to", p.To))
}

// Names of the two independent critical sections ReduceTwo merges under.
const (
	SectionSum     = "sum"
	SectionProduct = "product"
)

// ReduceTwo computes the sum and the product of data in one pass. Each
// result is merged under its own critical section, so a worker merging its
// sum never waits for a worker merging its product.
func ReduceTwo(ctx context.Context, data []int64, workers int) (sum, product int64, err error) {
	return ReduceTwoWith(ctx, data, DefaultReduceConfig().WithWorkers(workers))
}

// ReduceTwoWith is ReduceTwo with a full configuration.
func ReduceTwoWith(ctx context.Context, data []int64, cfg ReduceConfig) (sum, product int64, err error) {
	return reduceTwo(ctx, data, cfg, nil)
}

// sectionTrace observes entry into and exit from a named section.
type sectionTrace func(section string, worker int, enter bool)

func reduceTwo(ctx context.Context, data []int64, cfg ReduceConfig, trace sectionTrace) (int64, int64, error) {
	team, err := NewTeam(cfg)
	if err != nil {
		return 0, 0, err
	}
	if trace == nil {
		trace = func(string, int, bool) {}
	}

	sum, product := OpSum.Identity(), OpProduct.Identity()
	sumSection := team.Critical(SectionSum)
	productSection := team.Critical(SectionProduct)

	err = team.Run(ctx, func(w *Worker) error {
		psum, pprod := OpSum.Identity(), OpProduct.Identity()
		err := w.For(len(data), func(p Partition) {
			for _, x := range data[p.From : p.To+1] {
				psum += x
				pprod *= x
			}
		})
		if err != nil {
			return err
		}

		sumSection.Do(func() {
			trace(SectionSum, w.ID, true)
			sum += psum
			trace(SectionSum, w.ID, false)
		})
		productSection.Do(func() {
			trace(SectionProduct, w.ID, true)
			product *= pprod
			trace(SectionProduct, w.ID, false)
		})
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return sum, product, nil
}
