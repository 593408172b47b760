package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file is the tiny "runtime" the rest of the repo is written against:
// a fork/join team of goroutines plus the handful of constructs a
// directive-based shared-memory model gives you for free.
//
//   Team.Run          - parallel region: fork W workers, join before returning
//   Worker.Barrier    - every worker waits until all W have arrived
//   Worker.Single     - exactly one worker (the first to arrive) runs a block,
//                       then an implicit barrier
//   Worker.Master     - worker 0 runs a block, no barrier
//   Worker.Critical   - named mutual exclusion; different names never block
//                       each other, the empty name is the unnamed section
//   Worker.For        - work-sharing loop, iterations split by the schedule
//   Team.Reduce       - declarative reduction: the runtime owns per-worker
//                       partials and the final combine
//
// LIFETIME:
// Nothing outlives Run. Each call creates fresh region state (barrier,
// single claims, dynamic loop counters) and every goroutine has returned by
// the time Run does. Named critical sections belong to the Team, so two
// regions on the same Team share them.
//
// FAILURE:
// Workers return errors. The first failing worker's error is the one Run
// reports, the remaining workers see a cancelled context, and the region
// barrier is broken so no worker is left waiting for a peer that already
// quit. A cancelled caller context takes precedence.
//
// ===========================================================================

// ErrBarrierBroken is returned by Worker.Barrier when a peer left the region
// before arriving.
var ErrBarrierBroken = errors.New("barrier broken")

// cacheLineSize pads per-worker reduction slots so neighbours do not share
// a line.
const cacheLineSize = 64

// Team is a fixed-size group of workers that parallel regions fork onto.
type Team struct {
	size     int
	schedule Schedule
	chunk    int
	log      *zap.Logger

	mu        sync.Mutex
	criticals map[string]*Critical
}

// NewTeam validates cfg and returns a team of cfg.NumWorkers workers.
func NewTeam(cfg ReduceConfig) (*Team, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Team{
		size:      cfg.NumWorkers,
		schedule:  cfg.Schedule,
		chunk:     cfg.chunkSize(),
		log:       cfg.logger(),
		criticals: make(map[string]*Critical),
	}, nil
}

// Size returns the number of workers forked by Run.
func (t *Team) Size() int { return t.size }

// Schedule returns the schedule used by Worker.For.
func (t *Team) Schedule() Schedule { return t.schedule }

// Critical returns the critical section registered under name, creating it
// on first use.
func (t *Team) Critical(name string) *Critical {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.criticals[name]
	if !ok {
		c = &Critical{name: name}
		t.criticals[name] = c
	}
	return c
}

// Run forks the team, calls fn once per worker and joins. It returns the
// first error any worker returned, or ctx.Err() if ctx was cancelled.
func (t *Team) Run(ctx context.Context, fn func(w *Worker) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := &region{team: t, barrier: NewBarrier(t.size)}
	g, gctx := errgroup.WithContext(ctx)
	// gctx is always cancelled once Wait returns, so the barrier watches
	// the caller's ctx and a failing worker breaks it directly.
	stop := context.AfterFunc(ctx, r.barrier.Break)
	defer stop()

	t.log.Debug("parallel region start", zap.Int("workers", t.size), zap.Stringer("schedule", t.schedule))

	for id := range t.size {
		w := &Worker{ID: id, region: r, ctx: gctx}
		g.Go(func() error {
			if err := fn(w); err != nil {
				r.fail(err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Peers released by the broken barrier also fail; report the cause.
		return r.err
	}
	return nil
}

// region is the per-Run state shared by the workers of one parallel region.
type region struct {
	team    *Team
	barrier *Barrier

	mu      sync.Mutex
	singles []*singleConstruct
	loops   []*atomic.Int64

	errOnce sync.Once
	err     error
}

// fail records the first worker error and releases everyone at the barrier.
func (r *region) fail(err error) {
	r.errOnce.Do(func() { r.err = err })
	r.barrier.Break()
}

type singleConstruct struct {
	claimed atomic.Bool
}

// single returns the seq-th single construct of the region. Workers reach
// constructs in the same program order, so the seq-th construct is the same
// one for everybody.
func (r *region) single(seq int) *singleConstruct {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.singles) <= seq {
		r.singles = append(r.singles, &singleConstruct{})
	}
	return r.singles[seq]
}

func (r *region) loop(seq int) *atomic.Int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.loops) <= seq {
		r.loops = append(r.loops, new(atomic.Int64))
	}
	return r.loops[seq]
}

// Worker is one member of a running parallel region. A Worker must only be
// used by the goroutine Run handed it to.
type Worker struct {
	ID int

	region    *region
	ctx       context.Context
	singleSeq int
	loopSeq   int
}

// NumWorkers returns the size of the team the worker belongs to.
func (w *Worker) NumWorkers() int { return w.region.team.size }

// Context is cancelled when the caller's context is, or when any peer fails.
func (w *Worker) Context() context.Context { return w.ctx }

// Logger returns the team logger.
func (w *Worker) Logger() *zap.Logger { return w.region.team.log }

// Barrier blocks until every worker of the region has called it.
func (w *Worker) Barrier() error {
	return w.region.barrier.Wait()
}

// Master runs fn on worker 0 only. There is no barrier.
func (w *Worker) Master(fn func()) {
	if w.ID == 0 {
		fn()
	}
}

// Single runs fn on the first worker to reach this construct, then waits at
// a barrier. It reports whether the calling worker was the one that ran fn.
func (w *Worker) Single(fn func()) (bool, error) {
	ran := w.SingleNoWait(fn)
	return ran, w.Barrier()
}

// SingleNoWait is Single without the trailing barrier.
func (w *Worker) SingleNoWait(fn func()) bool {
	s := w.region.single(w.singleSeq)
	w.singleSeq++
	if !s.claimed.CompareAndSwap(false, true) {
		return false
	}
	fn()
	return true
}

// Critical runs fn inside the team's critical section called name.
func (w *Worker) Critical(name string, fn func()) {
	w.region.team.Critical(name).Do(fn)
}

// For runs a work-sharing loop over [0, n): body is called with every
// partition the schedule assigns to this worker. It ends with a barrier.
func (w *Worker) For(n int, body func(p Partition)) error {
	if err := w.ForNoWait(n, body); err != nil {
		return err
	}
	return w.Barrier()
}

// ForNoWait is For without the trailing barrier.
func (w *Worker) ForNoWait(n int, body func(p Partition)) error {
	t := w.region.team
	seq := w.loopSeq
	w.loopSeq++

	switch t.schedule {
	case ScheduleStatic:
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if p := StaticPartition(n, t.size, w.ID); !p.Empty() {
			body(p)
		}

	case ScheduleCyclic:
		chunks := numChunks(n, t.chunk)
		for k := w.ID; k < chunks; k += t.size {
			if err := w.ctx.Err(); err != nil {
				return err
			}
			body(chunkPartition(n, t.chunk, k, w.ID))
		}

	case ScheduleDynamic:
		next := w.region.loop(seq)
		chunks := numChunks(n, t.chunk)
		for {
			k := int(next.Add(1)) - 1
			if k >= chunks {
				break
			}
			if err := w.ctx.Err(); err != nil {
				return err
			}
			body(chunkPartition(n, t.chunk, k, w.ID))
		}

	default:
		return fmt.Errorf("unknown schedule %d: %w", int(t.schedule), ErrInvalidConfiguration)
	}
	return nil
}

// Critical is a named mutual-exclusion region that counts how often it was
// entered.
type Critical struct {
	name    string
	mu      sync.Mutex
	entries atomic.Int64
}

// Name returns the section name; the unnamed section is "".
func (c *Critical) Name() string { return c.name }

// Enter acquires the section. Every Enter must be paired with Exit.
func (c *Critical) Enter() {
	c.mu.Lock()
	c.entries.Add(1)
}

// Exit releases the section.
func (c *Critical) Exit() {
	c.mu.Unlock()
}

// Do runs fn while holding the section.
func (c *Critical) Do(fn func()) {
	c.Enter()
	defer c.Exit()
	fn()
}

// Entries returns how many times the section has been entered.
func (c *Critical) Entries() int64 { return c.entries.Load() }

// Barrier is a reusable rendezvous for a fixed number of parties.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
	broken     bool
}

// NewBarrier returns a barrier for parties goroutines.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until parties goroutines have called Wait, then releases them
// all and resets for the next round. It returns ErrBarrierBroken if Break
// was called before the round completed.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		return ErrBarrierBroken
	}

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}

	for gen == b.generation && !b.broken {
		b.cond.Wait()
	}
	if gen == b.generation {
		return ErrBarrierBroken
	}
	return nil
}

// Break releases every waiter with ErrBarrierBroken and fails all later
// calls to Wait.
func (b *Barrier) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}

// reductionSlot holds one worker's partial result.
type reductionSlot struct {
	value int64
	_     [cacheLineSize - 8]byte
}

// Reduce folds term(i) for every i in [0, n) with op. The work-sharing loop
// splits the range, each worker keeps its partial in a private slot, and the
// slots are combined after the join, so the caller writes neither a lock nor
// a local accumulator.
func (t *Team) Reduce(ctx context.Context, n int, op Operator, term func(i int) int64) (int64, error) {
	return t.reduce(ctx, n, op, func(acc int64, p Partition) int64 {
		for i := p.From; i <= p.To; i++ {
			acc = op.Combine(acc, term(i))
		}
		return acc
	})
}

// ReduceSlice folds every element of data with op. It is Reduce with the
// element access done by the runtime.
func (t *Team) ReduceSlice(ctx context.Context, data []int64, op Operator) (int64, error) {
	return t.reduce(ctx, len(data), op, func(acc int64, p Partition) int64 {
		return op.fold(acc, data[p.From:p.To+1])
	})
}

func (t *Team) reduce(ctx context.Context, n int, op Operator, step func(acc int64, p Partition) int64) (int64, error) {
	if !op.valid() {
		return 0, fmt.Errorf("unknown operator %d: %w", int(op), ErrInvalidConfiguration)
	}
	if n < 0 {
		return 0, fmt.Errorf("length must not be negative, got %d: %w", n, ErrInvalidConfiguration)
	}

	slots := make([]reductionSlot, t.size)
	err := t.Run(ctx, func(w *Worker) error {
		acc := op.Identity()
		err := w.ForNoWait(n, func(p Partition) {
			acc = step(acc, p)
		})
		slots[w.ID].value = acc
		return err
	})
	if err != nil {
		return op.Identity(), err
	}

	result := op.Identity()
	for i := range slots {
		result = op.Combine(result, slots[i].value)
	}
	return result, nil
}
