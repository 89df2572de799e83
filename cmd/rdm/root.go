package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"multilateration-sim/internal/config"
	"multilateration-sim/internal/logging"
	"multilateration-sim/internal/multilateration"
	"multilateration-sim/internal/observability"

	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg      config.Config
	logger   *slog.Logger
	shutdown observability.ShutdownFunc
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "rdm",
		Short: "rdm locates signal sources by the range-difference method",
		Long: `rdm estimates the position of a signal source from the times its signal
reaches a set of fixed receivers (TDOA multilateration). Five or more receivers
use a closed-form solution; two to four use an iterative refinement.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newSolveCmd(a),
		newSimulateCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log)

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, a.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// newSolver builds a solver from the loaded configuration. recorder may be nil.
func (a *app) newSolver(recorder multilateration.Recorder) (*multilateration.Solver, error) {
	opts, err := a.cfg.Solver.SolverOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, multilateration.WithLogger(a.logger))
	if recorder != nil {
		opts = append(opts, multilateration.WithRecorder(recorder))
	}
	return multilateration.NewSolver(opts...)
}

// execute runs root and then flushes tracing. Cobra skips post-run hooks
// when a command fails, so the flush happens here.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	observability.ShutdownWithTimeout(context.Background(), a.shutdown, a.logger)
	a.shutdown = nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := a.execute(ctx, newRootCmd(a))
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
