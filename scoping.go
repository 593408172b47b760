package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Data-sharing attributes, spelled out by hand. A directive-based runtime
// lets you tag each variable of a parallel loop; in Go every one of them is
// just a question of where the variable is declared and what gets copied
// back after the join.
//
//   private       b - declared inside the worker, starts from zero, the
//                     enclosing b is never touched
//   firstprivate  c - declared inside the worker, seeded with a copy of the
//                     enclosing c, the enclosing c is never touched
//   lastprivate   d - declared inside the worker; after the join the
//                     enclosing d receives the value held by whichever
//                     worker ran the final index (n-1), NOT whichever worker
//                     finished last
//   shared        m - one variable for the whole team; after the join it
//                     holds whatever the last writer stored
//   shared        a - one array; each index is written by the worker that
//                     owned it, so no two workers touch the same element
//
// The lastprivate publish is an explicit `if i == n-1` inside the loop body,
// copied out after Run returns. Nothing magic.
//
// ===========================================================================

// ScopingVars is the enclosing state the scoping demo reads and writes.
type ScopingVars struct {
	A []int `json:"a"`
	B int   `json:"b"`
	C int   `json:"c"`
	D int   `json:"d"`
	M int   `json:"m"`
}

func (v ScopingVars) clone() ScopingVars {
	v.A = slices.Clone(v.A)
	return v
}

func (v ScopingVars) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "b = %d, c = %d, d = %d, m = %d\n", v.B, v.C, v.D, v.M)
	sb.WriteString("a = ")
	for i, x := range v.A {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", x)
	}
	return sb.String()
}

// ScopingIteration is what one loop iteration observed on entry, after b
// and d were initialised.
type ScopingIteration struct {
	Worker     int `json:"worker"`
	NumWorkers int `json:"num_workers"`
	Index      int `json:"index"`
	B          int `json:"b"`
	C          int `json:"c"`
	D          int `json:"d"`
	M          int `json:"m"`
}

func (it ScopingIteration) String() string {
	return fmt.Sprintf("Worker %d (of %d total workers), iteration %d: b = %d, c = %d, d = %d, m = %d",
		it.Worker, it.NumWorkers, it.Index, it.B, it.C, it.D, it.M)
}

// ScopingReport holds the enclosing state before and after the parallel
// loop, and every iteration sorted by index.
type ScopingReport struct {
	Before     ScopingVars        `json:"before"`
	After      ScopingVars        `json:"after"`
	Iterations []ScopingIteration `json:"iterations"`
}

// RunScopingDemo runs the n-iteration scoping loop on a team built from cfg.
func RunScopingDemo(ctx context.Context, n int, cfg ReduceConfig) (ScopingReport, error) {
	var report ScopingReport
	if n < 0 {
		return report, fmt.Errorf("iteration count must not be negative, got %d: %w", n, ErrInvalidConfiguration)
	}
	team, err := NewTeam(cfg)
	if err != nil {
		return report, err
	}

	vars := ScopingVars{A: make([]int, n)}
	report.Before = vars.clone()

	var m atomic.Int64
	m.Store(int64(vars.M))

	var (
		lastD   int
		lastSet bool
	)
	seen := make([][]ScopingIteration, team.Size())

	err = team.Run(ctx, func(w *Worker) error {
		var b int
		c := vars.C
		var d int

		return w.For(n, func(p Partition) {
			for i := p.From; i <= p.To; i++ {
				b = 100
				d = 10
				it := ScopingIteration{
					Worker:     w.ID,
					NumWorkers: w.NumWorkers(),
					Index:      i,
					B:          b,
					C:          c,
					D:          d,
					M:          int(m.Load()),
				}
				seen[w.ID] = append(seen[w.ID], it)
				w.Logger().Debug("scoping iteration",
					zap.Int("worker", it.Worker),
					zap.Int("index", it.Index),
					zap.Int("c", it.C),
					zap.Int("m", it.M))

				vars.A[i] = w.ID
				b = w.ID
				c = w.ID
				d = w.ID
				m.Store(int64(w.ID))

				if i == n-1 {
					lastD = d
					lastSet = true
				}
			}
		})
	})
	if err != nil {
		return report, err
	}

	if lastSet {
		vars.D = lastD
	}
	vars.M = int(m.Load())
	report.After = vars

	for _, its := range seen {
		report.Iterations = append(report.Iterations, its...)
	}
	slices.SortFunc(report.Iterations, func(x, y ScopingIteration) int {
		return x.Index - y.Index
	})
	return report, nil
}
