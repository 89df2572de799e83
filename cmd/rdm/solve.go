package main

import (
	"fmt"
	"io"
	"os"

	"multilateration-sim/internal/common"
	"multilateration-sim/internal/multilateration"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// solveInput is the YAML document read by the solve command. Each entry of
// times is one set of arrival times, ordered like receivers.
type solveInput struct {
	Receivers [][]float64 `yaml:"receivers"`
	Times     [][]float64 `yaml:"times"`
}

type solveOutput struct {
	Results []solveResult `yaml:"results"`
}

type solveResult struct {
	Position         []float64 `yaml:"position,flow,omitempty"`
	Method           string    `yaml:"method,omitempty"`
	Status           string    `yaml:"status,omitempty"`
	Iterations       int       `yaml:"iterations,omitempty"`
	RangeToReference float64   `yaml:"range_to_reference,omitempty"`
	Error            string    `yaml:"error,omitempty"`
}

func newSolveCmd(a *app) *cobra.Command {
	var (
		input    string
		parallel bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve positions from receivers and arrival times in a YAML file",
		Long: `Reads receivers and one or more arrival-time vectors from a YAML file
("-" for stdin) and prints one result per time vector:

  receivers:
    - [0, 0, 0]
    - [1000, 0, 0]
  times:
    - [1.0e-6, 2.1e-6]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("parallel") {
				parallel = a.cfg.Solver.Parallel
			}
			return a.runSolve(cmd, input, parallel)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "YAML input file, or - for stdin")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Solve time vectors concurrently")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runSolve(cmd *cobra.Command, path string, parallel bool) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var in solveInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if len(in.Times) == 0 {
		return fmt.Errorf("input has no arrival times")
	}
	receivers := make([]common.Vector, len(in.Receivers))
	for i, r := range in.Receivers {
		receivers[i] = common.Vector(r)
	}

	solver, err := a.newSolver(nil)
	if err != nil {
		return err
	}
	sols, err := solver.SolveBatch(cmd.Context(), receivers, in.Times, parallel)
	if sols == nil {
		return err
	}

	failed := multilateration.QueryErrors(err, len(sols))
	out := solveOutput{Results: make([]solveResult, len(sols))}
	nFailed := 0
	for i, sol := range sols {
		if failed[i] != nil {
			out.Results[i] = solveResult{Error: failed[i].Error()}
			nFailed++
			continue
		}
		out.Results[i] = solveResult{
			Position:         sol.Position,
			Method:           sol.Method.String(),
			Status:           sol.Status.String(),
			Iterations:       sol.Iterations,
			RangeToReference: sol.RangeToReference,
		}
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if nFailed > 0 {
		return fmt.Errorf("%d of %d queries failed", nFailed, len(sols))
	}
	return nil
}
