package main

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workerIDs(lines []HelloLine) []int {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Worker)
	}
	slices.Sort(ids)
	return ids
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestRunHello(t *testing.T) {
	lines, err := RunHello(context.Background(), DefaultReduceConfig().WithWorkers(6))
	require.NoError(t, err)
	assert.Equal(t, seq(6), workerIDs(lines))
	for _, l := range lines {
		assert.Equal(t, 6, l.Observed)
	}
}

func TestRunBarrierDemo(t *testing.T) {
	lines, err := RunBarrierDemo(context.Background(), DefaultReduceConfig().WithWorkers(8), true)
	require.NoError(t, err)
	assert.Equal(t, seq(8), workerIDs(lines))
	for _, l := range lines {
		assert.Equal(t, 8, l.Observed, "worker %d greeted before the value was published", l.Worker)
	}

	// Without the barrier a line may observe 0 or 8, never anything else.
	lines, err = RunBarrierDemo(context.Background(), DefaultReduceConfig().WithWorkers(8), false)
	require.NoError(t, err)
	assert.Equal(t, seq(8), workerIDs(lines))
	for _, l := range lines {
		assert.Contains(t, []int{0, 8}, l.Observed)
	}
}

func TestRunSingleDemo(t *testing.T) {
	report, err := RunSingleDemo(context.Background(), DefaultReduceConfig().WithWorkers(5), false)
	require.NoError(t, err)
	assert.False(t, report.Master)
	assert.GreaterOrEqual(t, report.Executor, 0)
	assert.Less(t, report.Executor, 5)
	assert.Equal(t, seq(5), workerIDs(report.Lines))
	for _, l := range report.Lines {
		assert.Equal(t, 5, l.Observed)
	}
}

func TestRunSingleDemoMaster(t *testing.T) {
	report, err := RunSingleDemo(context.Background(), DefaultReduceConfig().WithWorkers(5), true)
	require.NoError(t, err)
	assert.True(t, report.Master)
	assert.Equal(t, 0, report.Executor)
	assert.Equal(t, seq(5), workerIDs(report.Lines))
}

func TestRunTwoCriticalDemo(t *testing.T) {
	const workers = 30
	data, err := NewArray(100_000)
	require.NoError(t, err)

	report, err := RunTwoCriticalDemo(context.Background(), data, DefaultReduceConfig().WithWorkers(workers))
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), report.Sum)
	assert.Equal(t, int64(1), report.Product)
	require.Len(t, report.Events, 4*workers)

	// Within one section, in and out strictly alternate and the out belongs
	// to the same worker as the preceding in.
	for _, section := range []string{SectionSum, SectionProduct} {
		inside := -1
		entries := 0
		for _, e := range report.Events {
			if e.Section != section {
				continue
			}
			if e.Enter {
				require.Equal(t, -1, inside, "%s entered by %d while %d inside", section, e.Worker, inside)
				inside = e.Worker
				entries++
			} else {
				require.Equal(t, inside, e.Worker, "%s left by the wrong worker", section)
				inside = -1
			}
		}
		assert.Equal(t, workers, entries, section)
	}

	assert.Equal(t, "worker 3 in sum", SectionEvent{Section: SectionSum, Worker: 3, Enter: true}.String())
	assert.Equal(t, "worker 3 out product", SectionEvent{Section: SectionProduct, Worker: 3}.String())
}
