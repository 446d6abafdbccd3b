package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fleetspan/internal/config"
	"fleetspan/internal/logging"
	"fleetspan/internal/opt"
	"fleetspan/internal/problem"
	"fleetspan/internal/vrp"
)

type solveOptions struct {
	problem    string
	matrix     string
	config     string
	iterations int
	seed       int64
	timeBudget time.Duration
	json       bool
	logLevel   string
}

func newSolveCmd() *cobra.Command {
	var o solveOptions
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a problem file and print the solution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSolve(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.problem, "problem", "p", "", "problem definition (YAML or JSON)")
	f.StringVarP(&o.matrix, "matrix", "m", "", "cost matrix file, one \"from to distance time\" per line")
	f.StringVar(&o.config, "config", "", "YAML file with a solver section")
	f.IntVarP(&o.iterations, "iterations", "n", 0, "iterations (default from config, 2000)")
	f.Int64Var(&o.seed, "seed", 0, "random seed, 0 picks one")
	f.DurationVar(&o.timeBudget, "time-budget", 0, "stop after this long, 0 for no limit")
	f.BoolVar(&o.json, "json", false, "print the summary as JSON")
	f.StringVar(&o.logLevel, "log-level", "warn", "debug, info, warn or error")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func runSolve(ctx context.Context, o solveOptions, out io.Writer) error {
	logger, err := logging.NewConsole(o.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	spec, err := problem.Load(o.problem)
	if err != nil {
		return err
	}
	var matrix *vrp.MatrixCosts
	if o.matrix != "" {
		if spec.Costs.Kind != problem.CostsMatrix {
			return fmt.Errorf("--matrix needs costs kind %q, problem uses %q", problem.CostsMatrix, spec.Costs.Kind)
		}
		if matrix, err = problem.LoadMatrix(o.matrix, spec.Costs.Symmetric); err != nil {
			return err
		}
	}
	p, err := spec.Build(matrix)
	if err != nil {
		return err
	}

	cfg := opt.DefaultConfig()
	if o.config != "" {
		if cfg, err = config.LoadSolver(o.config); err != nil {
			return err
		}
	}
	if o.iterations > 0 {
		cfg.Iterations = o.iterations
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	if o.timeBudget > 0 {
		cfg.TimeBudget = o.timeBudget
	}

	eng := opt.NewMinMaxEngine(p, cfg, logger)
	res, err := eng.Solve(ctx)
	if res.Best == nil {
		return err
	}
	if err != nil {
		// interrupted: report the best solution found so far
		logger.Warn("search interrupted", zap.Error(err))
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	sum := opt.Summarize(res.Best, p.Transport)
	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"name": spec.Name, "cost": res.Cost, "summary": sum, "iterations": res.Metrics.Iterations})
	}
	return printReport(out, spec, sum, res)
}
