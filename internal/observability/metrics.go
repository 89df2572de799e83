package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SolverCollector bundles Prometheus metrics for the solver and the HTTP
// surface in front of it. It implements multilateration.Recorder.
type SolverCollector struct {
	gatherer prometheus.Gatherer

	Solves     *prometheus.CounterVec
	Iterations *prometheus.HistogramVec
	Durations  *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
}

// NewSolverCollector registers solver metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSolverCollector(reg prometheus.Registerer) (*SolverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	solves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rdm_solves_total",
		Help: "Total number of position solves, labeled by method and outcome.",
	}, []string{"method", "outcome"}), "rdm_solves_total")
	if err != nil {
		return nil, err
	}

	iterations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rdm_solve_iterations",
		Help:    "Iterations used per successful solve.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50, 100, 1000, 32767},
	}, []string{"method"}), "rdm_solve_iterations")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rdm_solve_duration_seconds",
		Help:    "Solve latency in seconds.",
		Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 1e-2, 0.1, 1},
	}, []string{"method"}), "rdm_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rdm_http_requests_total",
		Help: "Handled HTTP requests, labeled by route and status code.",
	}, []string{"route", "code"}), "rdm_http_requests_total")
	if err != nil {
		return nil, err
	}

	return &SolverCollector{
		gatherer:     gatherer,
		Solves:       solves,
		Iterations:   iterations,
		Durations:    durations,
		HTTPRequests: requests,
	}, nil
}

// ObserveSolve records one finished solve. Failed solves only count.
func (c *SolverCollector) ObserveSolve(method, outcome string, iterations int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Solves.WithLabelValues(method, outcome).Inc()
	if outcome == "error" {
		return
	}
	c.Iterations.WithLabelValues(method).Observe(float64(iterations))
	c.Durations.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRequest counts one HTTP response.
func (c *SolverCollector) ObserveRequest(route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, fmt.Sprint(code)).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SolverCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
