package multilateration

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"multilateration-sim/internal/common"
	"multilateration-sim/internal/linalg"
	"multilateration-sim/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"
)

const tracerName = "multilateration-sim/internal/multilateration"

const (
	// SpeedOfLight is the default propagation speed in m/s.
	SpeedOfLight = 299792458.0
	// DefaultEpsilon is the default convergence threshold.
	DefaultEpsilon = 1e-8
	// DefaultMaxIterations is the default iteration budget of the iterative method.
	DefaultMaxIterations = math.MaxInt16
)

// Recorder receives one observation per completed solve. outcome is a Status
// string or "error".
type Recorder interface {
	ObserveSolve(method, outcome string, iterations int, elapsed time.Duration)
}

// Solution contains the estimated position and how it was obtained.
type Solution struct {
	Position         common.Vector // always 3 components
	Method           Method
	Status           Status
	Iterations       int
	RangeToReference float64 // estimated distance from receiver 0 to the source
}

// Converged reports whether the position is a converged estimate rather than
// the best effort left when the iteration budget ran out.
func (s Solution) Converged() bool {
	return s.Status == Converged
}

// Solver estimates source positions from arrival times by the range-difference
// method. A Solver is safe for concurrent solves as long as SetEpsilon is not
// called while solves are in flight.
type Solver struct {
	eps           float64
	maxIterations int
	speed         float64
	linear        linalg.Solver
	logger        *slog.Logger
	recorder      Recorder
}

// Option configures a Solver.
type Option func(*Solver)

// WithEpsilon sets the convergence threshold; it must lie in (0, 1).
func WithEpsilon(eps float64) Option {
	return func(s *Solver) { s.eps = eps }
}

// WithMaxIterations sets the iterative method's iteration budget.
func WithMaxIterations(n int) Option {
	return func(s *Solver) { s.maxIterations = n }
}

// WithPropagationSpeed sets the signal speed in distance units per time unit.
func WithPropagationSpeed(c float64) Option {
	return func(s *Solver) { s.speed = c }
}

// WithPivoting selects the pivoting strategy of the inner linear solver.
func WithPivoting(p linalg.Pivoting) Option {
	return func(s *Solver) { s.linear.Pivoting = p }
}

// WithLogger sets the logger used for per-solve diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Solver) { s.recorder = r }
}

// NewSolver creates a Solver with the defaults overridden by opts.
func NewSolver(opts ...Option) (*Solver, error) {
	s := &Solver{
		eps:           DefaultEpsilon,
		maxIterations: DefaultMaxIterations,
		speed:         SpeedOfLight,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	if err := validateEpsilon(s.eps); err != nil {
		return nil, err
	}
	if s.maxIterations <= 0 {
		return nil, &ConfigurationError{Field: "max iterations", Value: s.maxIterations, Rule: "must be positive"}
	}
	if s.speed <= 0 || math.IsInf(s.speed, 0) || math.IsNaN(s.speed) {
		return nil, &ConfigurationError{Field: "propagation speed", Value: s.speed, Rule: "must be positive and finite"}
	}
	return s, nil
}

func validateEpsilon(eps float64) error {
	if !(eps > 0 && eps < 1) {
		return &ConfigurationError{Field: "epsilon", Value: eps, Rule: "must be in (0, 1)"}
	}
	return nil
}

// Epsilon returns the convergence threshold.
func (s *Solver) Epsilon() float64 { return s.eps }

// SetEpsilon replaces the convergence threshold. It must not be called
// concurrently with solves on the same Solver.
func (s *Solver) SetEpsilon(eps float64) error {
	if err := validateEpsilon(eps); err != nil {
		return err
	}
	s.eps = eps
	return nil
}

// MaxIterations returns the iteration budget.
func (s *Solver) MaxIterations() int { return s.maxIterations }

// PropagationSpeed returns the configured signal speed.
func (s *Solver) PropagationSpeed() float64 { return s.speed }

// Solve estimates the source position from receiver positions and the
// absolute arrival time at each receiver. Receiver 0 is the reference.
//
// Two to four receivers use the iterative method; five or more use the
// closed-form method on the first five.
func (s *Solver) Solve(receivers []common.Vector, times []float64) (Solution, error) {
	start := time.Now()
	label := "none"
	method, err := SelectMethod(len(receivers))
	if err == nil {
		label = method.String()
		var sol Solution
		sol, err = s.solve(method, receivers, times)
		if err == nil {
			s.observe(sol, start)
			return sol, nil
		}
	}
	s.logger.Debug("solve failed", "receivers", len(receivers), "error", err)
	if s.recorder != nil {
		s.recorder.ObserveSolve(label, "error", 0, time.Since(start))
	}
	return Solution{}, err
}

// SolveContext is Solve wrapped in a trace span.
func (s *Solver) SolveContext(ctx context.Context, receivers []common.Vector, times []float64) (Solution, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "multilateration.Solve",
		trace.WithAttributes(attribute.Int("rdm.receivers", len(receivers))))
	defer span.End()

	sol, err := s.Solve(receivers, times)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sol, err
	}
	span.SetAttributes(
		attribute.String("rdm.method", sol.Method.String()),
		attribute.String("rdm.status", sol.Status.String()),
		attribute.Int("rdm.iterations", sol.Iterations),
	)
	return sol, nil
}

func (s *Solver) solve(method Method, receivers []common.Vector, times []float64) (Solution, error) {
	r, err := normalizeInput(receivers, times)
	if err != nil {
		return Solution{}, err
	}
	if method == Linear {
		return s.closedForm(r[:LinearReceivers], times[:LinearReceivers])
	}
	return s.iterate(r, times)
}

func (s *Solver) observe(sol Solution, start time.Time) {
	elapsed := time.Since(start)
	if sol.Status == IterationBudgetExhausted {
		s.logger.Warn("iteration budget exhausted",
			"method", sol.Method, "iterations", sol.Iterations, "position", sol.Position)
	} else {
		s.logger.Debug("solved",
			"method", sol.Method, "iterations", sol.Iterations, "position", sol.Position, "elapsed", elapsed)
	}
	if s.recorder != nil {
		s.recorder.ObserveSolve(sol.Method.String(), sol.Status.String(), sol.Iterations, elapsed)
	}
}

// normalizeInput validates receivers and times and returns the receivers as
// fresh 3-component vectors. Lower-dimensional receivers are zero-padded.
func normalizeInput(receivers []common.Vector, times []float64) ([]common.Vector, error) {
	if len(times) != len(receivers) {
		return nil, &InputError{Reason: fmt.Sprintf("got %d arrival times for %d receivers", len(times), len(receivers))}
	}
	if !finite(times) {
		return nil, &InputError{Reason: "arrival times must be finite"}
	}
	out := make([]common.Vector, len(receivers))
	for i, r := range receivers {
		if r.Dimension() == 0 || r.Dimension() > 3 {
			return nil, &InputError{Reason: fmt.Sprintf("receiver %d has %d coordinates, want 1 to 3", i, r.Dimension())}
		}
		if !r.IsFinite() {
			return nil, &InputError{Reason: fmt.Sprintf("receiver %d has non-finite coordinates", i)}
		}
		out[i] = r.Resize(3)
	}
	return out, nil
}

// closedForm solves the linearized system of the first five receivers.
func (s *Solver) closedForm(r []common.Vector, t []float64) (Solution, error) {
	h, f := linearSystem(r, t, s.speed)
	x, err := s.linear.Solve(h, f)
	if err != nil {
		return Solution{}, fmt.Errorf("%w: %w", ErrDegenerateGeometry, err)
	}
	return Solution{
		Position:         common.Vector{x.AtVec(0), x.AtVec(1), x.AtVec(2)},
		Method:           Linear,
		Status:           Converged,
		Iterations:       1,
		RangeToReference: -x.AtVec(3),
	}, nil
}

// iterate runs the Gauss-Newton style refinement for 2-4 receivers. With n
// receivers the position has n-1 free coordinates; the rest are reported as 0.
func (s *Solver) iterate(r []common.Vector, t []float64) (Solution, error) {
	n := len(r)
	d := n - 1
	reduced := make([]common.Vector, n)
	for i := range r {
		reduced[i] = r[i].Resize(d)
	}

	v := common.NewVector(n)
	sol := Solution{Method: Iterative, Status: IterationBudgetExhausted}
	for k := 0; k < s.maxIterations; k++ {
		h, f, err := iterativeSystem(reduced, t, v, s.speed)
		if err != nil {
			return Solution{}, fmt.Errorf("iteration %d: %w", k, err)
		}
		step, err := s.linear.Solve(h, f)
		if err != nil {
			return Solution{}, fmt.Errorf("iteration %d: %w: %w", k, ErrDegenerateGeometry, err)
		}
		floats.Add(v, step.RawVector().Data)
		sol.Iterations = k + 1

		if converged(step.RawVector().Data, s.eps) {
			sol.Status = Converged
			break
		}
	}
	if !v.IsFinite() {
		return Solution{}, fmt.Errorf("%w: estimate diverged after %d iterations", ErrDegenerateGeometry, sol.Iterations)
	}

	pos := v[:d]
	rk, err := reduced[0].Distance(pos)
	if err != nil {
		return Solution{}, err
	}
	sol.Position = pos.Resize(3)
	sol.RangeToReference = rk
	return sol, nil
}

func finite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CalculateLocalizationError calculates the Euclidean distance between the true and estimated positions.
func CalculateLocalizationError(truePosition, estimatedPosition common.Vector) (float64, error) {
	if len(truePosition) == 0 || len(estimatedPosition) == 0 {
		return 0, fmt.Errorf("cannot calculate error with empty vectors")
	}
	return truePosition.Resize(3).Distance(estimatedPosition.Resize(3))
}
