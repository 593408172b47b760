package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newHelloCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "hello",
		Short: "Greet once from every worker of the team",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total number of cores this program has access to: %d\n", runtime.NumCPU())

			lines, err := RunHello(cmd.Context(), a.teamConfig(cmd, workers))
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintf(out, "Hello, World, from worker # %d !\n", l.Worker)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "team size (default from config)")
	return cmd
}

func newScopingCmd(a *app) *cobra.Command {
	var (
		workers int
		n       int
	)
	cmd := &cobra.Command{
		Use:   "scoping",
		Short: "Show private, firstprivate, lastprivate and shared variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("iterations") {
				n = a.cfg.Demo.ScopingN
			}
			report, err := RunScopingDemo(cmd.Context(), n, a.teamConfig(cmd, workers))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Before the parallel loop:")
			fmt.Fprintln(out, report.Before)
			fmt.Fprintln(out)
			for _, it := range report.Iterations {
				fmt.Fprintln(out, it)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "After the parallel loop:")
			fmt.Fprintln(out, report.After)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "team size (default from config)")
	cmd.Flags().IntVarP(&n, "iterations", "n", 13, "loop iterations")
	return cmd
}

func newBarrierCmd(a *app) *cobra.Command {
	var (
		workers   int
		noBarrier bool
	)
	cmd := &cobra.Command{
		Use:   "barrier",
		Short: "Publish the team size from worker 0, with or without a barrier",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := RunBarrierDemo(cmd.Context(), a.teamConfig(cmd, workers), !noBarrier)
			if err != nil {
				return err
			}
			printHelloLines(cmd, lines)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "team size (default from config)")
	cmd.Flags().BoolVar(&noBarrier, "no-barrier", false, "greet without waiting at the barrier")
	return cmd
}

func newSingleCmd(a *app) *cobra.Command {
	var (
		workers int
		master  bool
	)
	cmd := &cobra.Command{
		Use:   "single",
		Short: "Publish the team size from a single (or master) construct",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := RunSingleDemo(cmd.Context(), a.teamConfig(cmd, workers), master)
			if err != nil {
				return err
			}
			construct := "single"
			if report.Master {
				construct = "master"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s construct ran on worker %d\n", construct, report.Executor)
			printHelloLines(cmd, report.Lines)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "team size (default from config)")
	cmd.Flags().BoolVar(&master, "master", false, "use a master construct (worker 0, no barrier)")
	return cmd
}

func printHelloLines(cmd *cobra.Command, lines []HelloLine) {
	for _, l := range lines {
		fmt.Fprintf(cmd.OutOrStdout(), "Hello world from worker %d of %d.\n", l.Worker, l.Observed)
	}
}

func newTwoCriticalCmd(a *app) *cobra.Command {
	var (
		workers int
		size    int
	)
	cmd := &cobra.Command{
		Use:   "two-critical",
		Short: "Merge a sum and a product under two independent critical sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.teamConfig(cmd, workers)
			if !cmd.Flags().Changed("workers") {
				cfg.NumWorkers = a.cfg.Demo.TwoCriticalWorkers
			}
			if !cmd.Flags().Changed("size") {
				size = a.cfg.Demo.TwoCriticalSize
			}

			data, err := NewArray(size)
			if err != nil {
				return err
			}
			report, err := RunTwoCriticalDemo(cmd.Context(), data, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range report.Events {
				fmt.Fprintln(out, e)
			}
			fmt.Fprintf(out, "sum = %d, product = %d\n", report.Sum, report.Product)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "team size (default from config)")
	cmd.Flags().IntVar(&size, "size", 0, "array length (default from config)")
	return cmd
}
