package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTeam(t *testing.T, workers int, schedule Schedule, chunk int) *Team {
	t.Helper()
	team, err := NewTeam(ReduceConfig{NumWorkers: workers, Schedule: schedule, ChunkSize: chunk})
	require.NoError(t, err)
	return team
}

func TestNewTeamInvalid(t *testing.T) {
	_, err := NewTeam(ReduceConfig{NumWorkers: 0})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestTeamRunForksEveryWorker(t *testing.T) {
	for _, workers := range []int{1, 2, 5, 30} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			team := newTestTeam(t, workers, ScheduleStatic, 0)

			seen := make([]atomic.Int32, workers)
			err := team.Run(context.Background(), func(w *Worker) error {
				assert.Equal(t, workers, w.NumWorkers())
				seen[w.ID].Add(1)
				return nil
			})
			require.NoError(t, err)
			for id := range seen {
				assert.Equal(t, int32(1), seen[id].Load(), "worker %d", id)
			}
		})
	}
}

// No worker may leave round r before every worker has arrived in round r.
func TestBarrierPhases(t *testing.T) {
	const (
		workers = 8
		rounds  = 20
	)
	team := newTestTeam(t, workers, ScheduleStatic, 0)

	var arrived atomic.Int64
	err := team.Run(context.Background(), func(w *Worker) error {
		for round := 1; round <= rounds; round++ {
			arrived.Add(1)
			if err := w.Barrier(); err != nil {
				return err
			}
			if got := arrived.Load(); got < int64(round*workers) {
				return fmt.Errorf("round %d: worker %d passed with %d arrivals", round, w.ID, got)
			}
			// Second barrier keeps fast workers from starting the next
			// round's increment before everyone has checked.
			if err := w.Barrier(); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(workers*rounds), arrived.Load())
}

func TestBarrierBreak(t *testing.T) {
	b := NewBarrier(2)

	done := make(chan error)
	go func() { done <- b.Wait() }()

	b.Break()
	assert.ErrorIs(t, <-done, ErrBarrierBroken)
	assert.ErrorIs(t, b.Wait(), ErrBarrierBroken)
}

func TestSingleRunsOncePerConstruct(t *testing.T) {
	const workers = 6
	team := newTestTeam(t, workers, ScheduleStatic, 0)

	var first, second atomic.Int32
	var ranFirst atomic.Int32
	err := team.Run(context.Background(), func(w *Worker) error {
		ran, err := w.Single(func() { first.Add(1) })
		if err != nil {
			return err
		}
		if ran {
			ranFirst.Add(1)
		}
		// Every worker sees the single's effect after its barrier.
		if first.Load() != 1 {
			return fmt.Errorf("worker %d passed single before it ran", w.ID)
		}
		if _, err := w.Single(func() { second.Add(1) }); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
	assert.Equal(t, int32(1), ranFirst.Load(), "exactly one worker reports running the single")
}

func TestSingleIsFreshPerRegion(t *testing.T) {
	team := newTestTeam(t, 3, ScheduleStatic, 0)

	var runs atomic.Int32
	for range 4 {
		err := team.Run(context.Background(), func(w *Worker) error {
			w.SingleNoWait(func() { runs.Add(1) })
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(4), runs.Load())
}

func TestMaster(t *testing.T) {
	team := newTestTeam(t, 5, ScheduleStatic, 0)

	var who atomic.Int64
	who.Store(-1)
	var runs atomic.Int32
	err := team.Run(context.Background(), func(w *Worker) error {
		w.Master(func() {
			runs.Add(1)
			who.Store(int64(w.ID))
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int64(0), who.Load())
}

func TestCriticalMutualExclusion(t *testing.T) {
	const (
		workers = 8
		perWkr  = 1000
	)
	team := newTestTeam(t, workers, ScheduleStatic, 0)

	counter := 0
	err := team.Run(context.Background(), func(w *Worker) error {
		for range perWkr {
			w.Critical("counter", func() { counter++ })
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, workers*perWkr, counter)
	assert.Equal(t, int64(workers*perWkr), team.Critical("counter").Entries())
}

func TestCriticalNamesAreIndependent(t *testing.T) {
	team := newTestTeam(t, 4, ScheduleStatic, 0)
	assert.Same(t, team.Critical("a"), team.Critical("a"))
	assert.NotSame(t, team.Critical("a"), team.Critical("b"))
	assert.Equal(t, "b", team.Critical("b").Name())

	// Holding "a" must not stop anyone from entering "b".
	held := team.Critical("a")
	held.Enter()
	defer held.Exit()

	var entered atomic.Int32
	err := team.Run(context.Background(), func(w *Worker) error {
		w.Critical("b", func() { entered.Add(1) })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(4), entered.Load())
}

func TestForCoversEveryIndexOnce(t *testing.T) {
	schedules := []Schedule{ScheduleStatic, ScheduleCyclic, ScheduleDynamic}
	sizes := []int{0, 1, 7, 100, 1031}

	for _, schedule := range schedules {
		for _, n := range sizes {
			for _, workers := range []int{1, 3, 8} {
				name := fmt.Sprintf("%s/n=%d/w=%d", schedule, n, workers)
				t.Run(name, func(t *testing.T) {
					team := newTestTeam(t, workers, schedule, 5)

					hits := make([]atomic.Int32, n)
					err := team.Run(context.Background(), func(w *Worker) error {
						return w.For(n, func(p Partition) {
							assert.Equal(t, w.ID, p.Worker)
							for i := p.From; i <= p.To; i++ {
								hits[i].Add(1)
							}
						})
					})
					require.NoError(t, err)
					for i := range hits {
						require.Equal(t, int32(1), hits[i].Load(), "index %d", i)
					}
				})
			}
		}
	}
}

func TestForCyclicDealsChunksRoundRobin(t *testing.T) {
	const (
		n       = 50
		chunk   = 4
		workers = 3
	)
	team := newTestTeam(t, workers, ScheduleCyclic, chunk)

	owner := make([]int, n)
	err := team.Run(context.Background(), func(w *Worker) error {
		return w.ForNoWait(n, func(p Partition) {
			for i := p.From; i <= p.To; i++ {
				owner[i] = p.Worker
			}
		})
	})
	require.NoError(t, err)
	for i, o := range owner {
		assert.Equal(t, (i/chunk)%workers, o, "index %d", i)
	}
}

func TestForStaticMatchesStaticPartition(t *testing.T) {
	team := newTestTeam(t, 4, ScheduleStatic, 0)

	got := make([]Partition, 4)
	err := team.Run(context.Background(), func(w *Worker) error {
		return w.ForNoWait(10, func(p Partition) { got[w.ID] = p })
	})
	require.NoError(t, err)

	want, err := StaticPartitions(10, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunReportsFirstWorkerError(t *testing.T) {
	boom := errors.New("boom")
	team := newTestTeam(t, 4, ScheduleStatic, 0)

	err := team.Run(context.Background(), func(w *Worker) error {
		if w.ID == 2 {
			return boom
		}
		// Peers waiting here are released when worker 2 fails.
		return w.Barrier()
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	team := newTestTeam(t, 4, ScheduleStatic, 0)
	called := false
	err := team.Run(ctx, func(w *Worker) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	team := newTestTeam(t, 4, ScheduleStatic, 0)
	err := team.Run(ctx, func(w *Worker) error {
		if w.ID == 0 {
			// Never arrives; the others are only released by cancellation.
			cancel()
			return nil
		}
		return w.Barrier()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTeamReduce(t *testing.T) {
	for _, schedule := range []Schedule{ScheduleStatic, ScheduleCyclic, ScheduleDynamic} {
		t.Run(schedule.String(), func(t *testing.T) {
			team := newTestTeam(t, 6, schedule, 17)

			const n = 10_000
			got, err := team.Reduce(context.Background(), n, OpSum, func(i int) int64 { return int64(i) })
			require.NoError(t, err)
			assert.Equal(t, int64(n*(n-1)/2), got)

			data := []int64{5, -3, 9, 12, -8, 0, 4}
			maxV, err := team.ReduceSlice(context.Background(), data, OpMax)
			require.NoError(t, err)
			assert.Equal(t, int64(12), maxV)

			empty, err := team.ReduceSlice(context.Background(), nil, OpProduct)
			require.NoError(t, err)
			assert.Equal(t, int64(1), empty)
		})
	}
}

func TestTeamReduceInvalid(t *testing.T) {
	team := newTestTeam(t, 2, ScheduleStatic, 0)

	_, err := team.Reduce(context.Background(), -1, OpSum, func(int) int64 { return 1 })
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = team.ReduceSlice(context.Background(), []int64{1}, Operator(77))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestReductionSlotPadding(t *testing.T) {
	assert.Equal(t, uintptr(cacheLineSize), unsafe.Sizeof(reductionSlot{}))
}
