package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopingDemoThirteenOnFour(t *testing.T) {
	report, err := RunScopingDemo(context.Background(), 13, DefaultReduceConfig().WithWorkers(4))
	require.NoError(t, err)

	// Static blocks over 13 iterations: 4, 3, 3, 3.
	wantOwner := []int{0, 0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3}
	assert.Equal(t, wantOwner, report.After.A)
	assert.Equal(t, make([]int, 13), report.Before.A)

	// private and firstprivate never leak out of the region.
	assert.Equal(t, 0, report.After.B)
	assert.Equal(t, 0, report.After.C)

	// lastprivate takes the value of whoever ran index 12.
	assert.Equal(t, 3, report.After.D)

	// shared m holds the last store, from some worker.
	assert.GreaterOrEqual(t, report.After.M, 0)
	assert.Less(t, report.After.M, 4)

	require.Len(t, report.Iterations, 13)
	for i, it := range report.Iterations {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, wantOwner[i], it.Worker, "iteration %d", i)
		assert.Equal(t, 4, it.NumWorkers)
		assert.Equal(t, 100, it.B)
		assert.Equal(t, 10, it.D)
	}
}

// The first iteration of every worker sees the firstprivate seed; later ones
// see the worker's own previous write.
func TestScopingFirstprivateCarries(t *testing.T) {
	report, err := RunScopingDemo(context.Background(), 13, DefaultReduceConfig().WithWorkers(4))
	require.NoError(t, err)

	prevWorker := -1
	for _, it := range report.Iterations {
		if it.Worker != prevWorker {
			assert.Equal(t, 0, it.C, "first iteration %d of worker %d", it.Index, it.Worker)
		} else {
			assert.Equal(t, it.Worker, it.C, "iteration %d of worker %d", it.Index, it.Worker)
		}
		prevWorker = it.Worker
	}
}

func TestScopingDemoEdges(t *testing.T) {
	report, err := RunScopingDemo(context.Background(), 0, DefaultReduceConfig().WithWorkers(3))
	require.NoError(t, err)
	assert.Empty(t, report.Iterations)
	assert.Equal(t, 0, report.After.D)

	report, err = RunScopingDemo(context.Background(), 2, DefaultReduceConfig().WithWorkers(5))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, report.After.A)
	assert.Equal(t, 1, report.After.D)

	_, err = RunScopingDemo(context.Background(), -1, DefaultReduceConfig())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestScopingStrings(t *testing.T) {
	v := ScopingVars{A: []int{0, 1}, B: 1, C: 2, D: 3, M: 4}
	assert.Equal(t, "b = 1, c = 2, d = 3, m = 4\na = 0, 1", v.String())

	it := ScopingIteration{Worker: 1, NumWorkers: 4, Index: 5, B: 100, C: 1, D: 10, M: 0}
	assert.Equal(t, "Worker 1 (of 4 total workers), iteration 5: b = 100, c = 1, d = 10, m = 0", it.String())
}
