package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"multilateration-sim/internal/common"
	"multilateration-sim/internal/scenario"

	"github.com/spf13/cobra"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		fivePoint bool
		verbose   bool
		parallel  bool
		project   bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Localize random targets against a generated receiver layout",
		Long: `Generates receivers around the configured center, draws targets inside
their bounding box, simulates arrival times (optionally noisy), solves every
target and prints error statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := &a.cfg.Scenario
			flags := cmd.Flags()
			if flags.Changed("seed") {
				sc.Seed, _ = flags.GetUint64("seed")
			}
			if flags.Changed("receivers") {
				sc.Receivers, _ = flags.GetInt("receivers")
			}
			if flags.Changed("targets") {
				sc.Targets, _ = flags.GetInt("targets")
			}
			if flags.Changed("sigma") {
				sc.Sigma, _ = flags.GetFloat64("sigma")
			}
			if flags.Changed("noise-std") {
				sc.NoiseStd, _ = flags.GetFloat64("noise-std")
			}
			if !flags.Changed("parallel") {
				parallel = a.cfg.Solver.Parallel
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runSimulate(cmd, fivePoint, parallel, verbose, project)
		},
	}
	cmd.Flags().Uint64("seed", 0, "Random seed")
	cmd.Flags().Int("receivers", 0, "Number of generated receivers")
	cmd.Flags().Int("targets", 0, "Number of targets")
	cmd.Flags().Float64("sigma", 0, "Target spread relative to the receivers' bounding box")
	cmd.Flags().Float64("noise-std", 0, "Standard deviation of arrival-time noise in seconds")
	cmd.Flags().BoolVar(&fivePoint, "five-point", false, "Use the fixed five-receiver layout instead of random receivers")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Solve targets concurrently")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every trial")
	cmd.Flags().BoolVar(&project, "project", false, "Print a 2-D principal-component projection of the scene")
	return cmd
}

func (a *app) runSimulate(cmd *cobra.Command, fivePoint, parallel, verbose, project bool) error {
	sc := a.cfg.Scenario
	params := scenario.Params{
		Receivers: sc.Receivers,
		Center:    common.Vector(sc.Center),
		Scaling:   common.Vector(sc.Scaling),
		Sigma:     sc.Sigma,
		Targets:   sc.Targets,
		NoiseStd:  sc.NoiseStd,
	}
	if fivePoint {
		layout, err := scenario.FivePointLayout(params.Center, params.Scaling)
		if err != nil {
			return err
		}
		params.Layout = layout
	}

	solver, err := a.newSolver(nil)
	if err != nil {
		return err
	}
	sim, err := scenario.NewSimulation(solver, a.logger)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(sc.Seed, sc.Seed))
	if err := sim.Populate(params, rng); err != nil {
		return fmt.Errorf("populate scenario: %w", err)
	}

	results, summary, err := sim.Run(cmd.Context(), parallel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Receivers:")
	for _, r := range sim.Receivers() {
		fmt.Fprintf(out, "  %s\n", r)
	}
	if verbose {
		fmt.Fprintln(out, "Trials:")
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(out, "  %s true %s -> failed: %v\n", r.TargetID, r.Truth, r.Err)
				continue
			}
			fmt.Fprintf(out, "  %s true %s -> est %s (error %.3f, %s, %d iterations)\n",
				r.TargetID, r.Truth, r.Solution.Position, r.Error, r.Solution.Status, r.Solution.Iterations)
		}
	}
	if project {
		if err := printProjection(out, sim); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, summary)
	return nil
}

func printProjection(out io.Writer, sim *scenario.Simulation) error {
	var objects []scenario.Object
	for _, r := range sim.Receivers() {
		objects = append(objects, r)
	}
	for _, t := range sim.Targets() {
		objects = append(objects, t)
	}
	projected, err := scenario.Project(objects)
	if err != nil {
		return fmt.Errorf("project scene: %w", err)
	}
	fmt.Fprintln(out, "Projection:")
	for _, obj := range objects {
		p := projected[obj.GetID()]
		fmt.Fprintf(out, "  %s %.3f %.3f\n", obj.GetID(), p[0], p[1])
	}
	return nil
}
