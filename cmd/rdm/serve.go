package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"multilateration-sim/internal/httpapi"
	"multilateration-sim/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP solve API",
		Long: `Serves POST /v1/solve, POST /v1/solve/batch, GET /healthz and
GET /metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			return a.runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	return cmd
}

func (a *app) runServe(ctx context.Context, addr string) error {
	metrics, err := observability.NewSolverCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	solver, err := a.newSolver(metrics)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: addr,
		Handler: httpapi.NewHandler(&httpapi.Server{
			Solver:   solver,
			Metrics:  metrics,
			Logger:   a.logger,
			Parallel: a.cfg.Solver.Parallel,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)

	case <-ctx.Done():
		a.logger.Info("shutting down", "reason", context.Cause(ctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return srv.Close()
		}
		a.logger.Info("server stopped")
		return nil
	}
}
