package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"multilateration-sim/internal/common"
	"multilateration-sim/internal/logging"
	"multilateration-sim/internal/multilateration"
)

// Simulation localizes a set of targets against a fixed receiver layout and
// scores the estimates against the true positions.
type Simulation struct {
	solver    *multilateration.Solver
	receivers []*Receiver
	targets   []*Target
	ids       map[string]struct{}
	logger    *slog.Logger
}

// TrialResult is the outcome of localizing one target.
type TrialResult struct {
	TargetID   string
	Truth      common.Vector
	Solution   multilateration.Solution
	Error      float64 // Euclidean localization error; -1 when the solve failed
	Loss       float64
	Accuracy   float64
	Similarity float64
	Err        error
}

// NewSimulation creates an empty simulation solved by solver.
func NewSimulation(solver *multilateration.Solver, logger *slog.Logger) (*Simulation, error) {
	if solver == nil {
		return nil, errors.New("solver is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Simulation{
		solver: solver,
		ids:    make(map[string]struct{}),
		logger: logger,
	}, nil
}

// AddObject adds a receiver or target. Positions must have 3 components.
func (s *Simulation) AddObject(obj Object) error {
	if d := obj.GetPosition().Dimension(); d != 3 {
		return fmt.Errorf("object dimension %d does not match simulation dimension 3", d)
	}
	id := obj.GetID()
	if _, exists := s.ids[id]; exists {
		return fmt.Errorf("object with ID %s already exists", id)
	}

	switch v := obj.(type) {
	case *Receiver:
		s.receivers = append(s.receivers, v)
	case *Target:
		s.targets = append(s.targets, v)
	default:
		return fmt.Errorf("unsupported object type %T", obj)
	}
	s.ids[id] = struct{}{}
	return nil
}

// Receivers returns the receivers in insertion order. Receiver 0 is the reference.
func (s *Simulation) Receivers() []*Receiver {
	return append([]*Receiver(nil), s.receivers...)
}

// Targets returns the targets in insertion order.
func (s *Simulation) Targets() []*Target {
	return append([]*Target(nil), s.targets...)
}

// ReceiverPositions returns a copy of every receiver position.
func (s *Simulation) ReceiverPositions() []common.Vector {
	out := make([]common.Vector, len(s.receivers))
	for i, r := range s.receivers {
		out[i] = r.GetPosition()
	}
	return out
}

// Measure returns the (noisy) arrival time of target's signal at every receiver.
func (s *Simulation) Measure(target Object) ([]float64, error) {
	times := make([]float64, len(s.receivers))
	for i, r := range s.receivers {
		t, err := r.MeasureArrival(target, s.solver.PropagationSpeed())
		if err != nil {
			return nil, err
		}
		times[i] = t
	}
	return times, nil
}

// Run measures every target, solves all of them as one batch and scores the
// estimates. Individual solve failures are reported in the trial results and
// the summary; only measurement problems abort the run.
func (s *Simulation) Run(ctx context.Context, parallel bool) ([]TrialResult, Summary, error) {
	if _, err := multilateration.SelectMethod(len(s.receivers)); err != nil {
		return nil, Summary{}, err
	}
	s.logger.Info("starting simulation",
		"receivers", len(s.receivers), "targets", len(s.targets), "parallel", parallel)

	batch := make([][]float64, len(s.targets))
	for i, t := range s.targets {
		times, err := s.Measure(t)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("measure %s: %w", t.GetID(), err)
		}
		batch[i] = times
	}

	solutions, batchErr := s.solver.SolveBatch(ctx, s.ReceiverPositions(), batch, parallel)
	if batchErr != nil && solutions == nil {
		return nil, Summary{}, batchErr
	}
	perQuery := multilateration.QueryErrors(batchErr, len(s.targets))

	results := make([]TrialResult, len(s.targets))
	for i, t := range s.targets {
		res := TrialResult{TargetID: t.GetID(), Truth: t.GetPosition(), Error: -1, Err: perQuery[i]}
		if res.Err == nil {
			res.Solution = solutions[i]
			if err := score(&res); err != nil {
				res.Err = err
			}
		}
		if res.Err != nil {
			s.logger.Debug("localization failed", "target", res.TargetID, "error", res.Err)
		} else {
			s.logger.Debug("localized",
				"target", res.TargetID, "truth", res.Truth, "estimate", res.Solution.Position, "error", res.Error)
		}
		results[i] = res
	}
	if err := ctx.Err(); err != nil {
		return results, Summarize(results), err
	}

	summary := Summarize(results)
	s.logger.Info("simulation finished",
		"solved", summary.Solved, "failed", summary.Failed, "exhausted", summary.Exhausted,
		"mean_error", summary.MeanError, "p95_error", summary.P95Error)
	return results, summary, nil
}

func score(res *TrialResult) error {
	est := res.Solution.Position
	d, err := multilateration.CalculateLocalizationError(res.Truth, est)
	if err != nil {
		return err
	}
	loss, err := common.Loss(est, res.Truth)
	if err != nil {
		return err
	}
	sim, err := common.Similarity(est, res.Truth)
	if err != nil {
		return err
	}
	res.Error = d
	res.Loss = loss
	res.Accuracy = common.Accuracy(est, res.Truth)
	res.Similarity = sim
	return nil
}

// Populate fills an empty simulation with receivers and targets drawn from
// rng. Receivers are scattered around center unless layout is given; targets
// are drawn inside the receivers' bounding box scaled by sigma.
func (s *Simulation) Populate(p Params, rng *rand.Rand) error {
	if rng == nil {
		return errors.New("random source is required")
	}
	layout := p.Layout
	if layout == nil {
		var err error
		layout, err = GenerateReceivers(p.Center, p.Scaling, p.Receivers, rng)
		if err != nil {
			return err
		}
	}
	for _, pos := range layout {
		if err := s.AddObject(NewReceiver(pos, GaussianNoise(p.NoiseStd, rng))); err != nil {
			return err
		}
	}
	for i := 0; i < p.Targets; i++ {
		pos, err := GenerateTarget(layout, p.Sigma, rng)
		if err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		if err := s.AddObject(NewTarget(pos)); err != nil {
			return err
		}
	}
	return nil
}

// Params drives Populate.
type Params struct {
	Receivers int
	Layout    []common.Vector // fixed receiver positions; overrides Receivers/Center/Scaling
	Center    common.Vector
	Scaling   common.Vector
	Sigma     float64
	Targets   int
	NoiseStd  float64 // seconds
}
