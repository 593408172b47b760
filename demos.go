package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// The small constructs of the tutorial, each as a function that returns what
// the workers observed instead of printing it. The CLI does the printing.

// HelloLine is one worker's greeting. Observed is the team size the worker
// saw when it greeted; the barrier and single demos use it to show whether
// the value had been published yet.
type HelloLine struct {
	Worker   int `json:"worker"`
	Observed int `json:"observed"`
}

// lineRecorder collects lines in arrival order.
type lineRecorder struct {
	mu    sync.Mutex
	lines []HelloLine
}

func (r *lineRecorder) add(l HelloLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, l)
}

// RunHello has every worker of the team greet once. Lines come back in the
// order the workers got there, which is not worker order.
func RunHello(ctx context.Context, cfg ReduceConfig) ([]HelloLine, error) {
	team, err := NewTeam(cfg)
	if err != nil {
		return nil, err
	}

	var rec lineRecorder
	err = team.Run(ctx, func(w *Worker) error {
		w.Logger().Debug("hello", zap.Int("worker", w.ID))
		rec.add(HelloLine{Worker: w.ID, Observed: w.NumWorkers()})
		return nil
	})
	return rec.lines, err
}

// RunBarrierDemo has worker 0 publish the team size while every worker
// greets with the value it sees. With useBarrier the greeting waits for all
// workers to pass a barrier, so every line observes the full team size.
// Without it a worker may greet before worker 0 published and observe 0.
func RunBarrierDemo(ctx context.Context, cfg ReduceConfig, useBarrier bool) ([]HelloLine, error) {
	team, err := NewTeam(cfg)
	if err != nil {
		return nil, err
	}

	var (
		numt atomic.Int64
		rec  lineRecorder
	)
	err = team.Run(ctx, func(w *Worker) error {
		if w.ID == 0 {
			numt.Store(int64(w.NumWorkers()))
		}
		if useBarrier {
			if err := w.Barrier(); err != nil {
				return err
			}
		}
		rec.add(HelloLine{Worker: w.ID, Observed: int(numt.Load())})
		return nil
	})
	return rec.lines, err
}

// SingleReport is the outcome of the single/master demo.
type SingleReport struct {
	Master   bool        `json:"master"`
	Executor int         `json:"executor"`
	Lines    []HelloLine `json:"lines"`
}

// RunSingleDemo publishes the team size from a single construct, or from a
// master construct when master is set. Single picks whichever worker arrives
// first and waits at a barrier afterwards, so every line observes the team
// size. Master always picks worker 0 and does not wait.
func RunSingleDemo(ctx context.Context, cfg ReduceConfig, master bool) (SingleReport, error) {
	report := SingleReport{Master: master, Executor: -1}
	team, err := NewTeam(cfg)
	if err != nil {
		return report, err
	}

	var (
		numt     atomic.Int64
		executor atomic.Int64
		rec      lineRecorder
	)
	executor.Store(-1)
	publish := func(w *Worker) func() {
		return func() {
			numt.Store(int64(w.NumWorkers()))
			executor.Store(int64(w.ID))
		}
	}

	err = team.Run(ctx, func(w *Worker) error {
		if master {
			w.Master(publish(w))
		} else if _, err := w.Single(publish(w)); err != nil {
			return err
		}
		rec.add(HelloLine{Worker: w.ID, Observed: int(numt.Load())})
		return nil
	})

	report.Executor = int(executor.Load())
	report.Lines = rec.lines
	return report, err
}

// SectionEvent records a worker entering or leaving a named section.
type SectionEvent struct {
	Section string `json:"section"`
	Worker  int    `json:"worker"`
	Enter   bool   `json:"enter"`
}

func (e SectionEvent) String() string {
	verb := "out"
	if e.Enter {
		verb = "in"
	}
	return fmt.Sprintf("worker %d %s %s", e.Worker, verb, e.Section)
}

// TwoCriticalReport is the outcome of the two-sections demo.
type TwoCriticalReport struct {
	Sum     int64          `json:"sum"`
	Product int64          `json:"product"`
	Events  []SectionEvent `json:"events"`
}

// RunTwoCriticalDemo computes the sum and the product of data with
// ReduceTwo's two named sections and records every entry and exit. Entries
// of different sections can interleave; entries of the same section never
// do.
func RunTwoCriticalDemo(ctx context.Context, data []int64, cfg ReduceConfig) (TwoCriticalReport, error) {
	var (
		report TwoCriticalReport
		mu     sync.Mutex
	)
	trace := func(section string, worker int, enter bool) {
		mu.Lock()
		defer mu.Unlock()
		report.Events = append(report.Events, SectionEvent{Section: section, Worker: worker, Enter: enter})
	}

	sum, product, err := reduceTwo(ctx, data, cfg, trace)
	report.Sum, report.Product = sum, product
	return report, err
}
