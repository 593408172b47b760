package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Terminal and spreadsheet views of a trial suite.
//
//   ASCII chart - one bar per strategy, grouped by worker count, so the gap
//                 between the lock-per-element sum and everything else is
//                 obvious at a glance
//   CSV         - one row per trial for import into anything else
//
// ===========================================================================

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const chartBarWidth = 50

// WriteASCIIChart draws average time and speedup bars for every worker
// count in the suite.
func WriteASCIIChart(w io.Writer, suite *TrialSuite) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Time per Reduction (ASCII) ===")

	for _, group := range groupByWorkers(suite.Results) {
		maxTime := suite.Baseline.AvgTime
		for _, r := range group {
			maxTime = max(maxTime, r.AvgTime)
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "%d workers (scale: %v = %d chars)\n", group[0].Workers, maxTime, chartBarWidth)
		writeBar(w, suite.Baseline.Strategy, float64(suite.Baseline.AvgTime), float64(maxTime),
			fmt.Sprintf(" %v", suite.Baseline.AvgTime))
		for _, r := range group {
			writeBar(w, r.Strategy, float64(r.AvgTime), float64(maxTime), fmt.Sprintf(" %v", r.AvgTime))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Speedup vs Sequential ===")

	for _, group := range groupByWorkers(suite.Results) {
		maxSpeedup := 1.0
		for _, r := range group {
			maxSpeedup = max(maxSpeedup, r.SpeedupVsSequential)
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "%d workers (ideal: %dx)\n", group[0].Workers, group[0].Workers)
		for _, r := range group {
			writeBar(w, r.Strategy, r.SpeedupVsSequential, maxSpeedup, fmt.Sprintf(" %.2fx", r.SpeedupVsSequential))
		}
	}
	fmt.Fprintln(w)
}

func writeBar(w io.Writer, label string, value, scale float64, stats string) {
	barLen := 0
	if scale > 0 {
		barLen = int(math.Round(value / scale * chartBarWidth))
	}
	fmt.Fprintf(w, "%-15s │%s%s\n", label, strings.Repeat("█", barLen), stats)
}

// groupByWorkers splits results into runs of equal worker count, keeping
// the suite order.
func groupByWorkers(results []TrialResult) [][]TrialResult {
	var groups [][]TrialResult
	for _, r := range results {
		if n := len(groups); n > 0 && groups[n-1][0].Workers == r.Workers {
			groups[n-1] = append(groups[n-1], r)
			continue
		}
		groups = append(groups, []TrialResult{r})
	}
	return groups
}

var csvHeader = []string{
	"run_id", "os", "arch", "cpus", "strategy", "level", "workers", "size",
	"operator", "avg_time_ns", "speedup", "locks", "value", "correct",
}

// WriteCSV writes the baseline and every result as CSV rows.
func WriteCSV(w io.Writer, suite *TrialSuite) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	rows := append([]TrialResult{suite.Baseline}, suite.Results...)
	for _, r := range rows {
		record := []string{
			suite.RunID,
			suite.Hardware.OS,
			suite.Hardware.Arch,
			strconv.Itoa(suite.Hardware.NumCPU),
			r.Strategy,
			strconv.Itoa(r.Level),
			strconv.Itoa(r.Workers),
			strconv.Itoa(r.Size),
			suite.Config.Operator.String(),
			strconv.FormatInt(r.AvgTime.Nanoseconds(), 10),
			strconv.FormatFloat(r.SpeedupVsSequential, 'f', 2, 64),
			strconv.FormatInt(r.LockAcquisitions, 10),
			strconv.FormatInt(r.Value, 10),
			strconv.FormatBool(r.Correct),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the suite to filename as CSV.
func (suite *TrialSuite) SaveCSV(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteCSV(f, suite); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return f.Close()
}
