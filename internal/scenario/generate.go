package scenario

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"multilateration-sim/internal/common"
)

// PropagationTime returns how long a wave travelling at speed takes from a to b.
func PropagationTime(a, b common.Vector, speed float64) (float64, error) {
	if speed <= 0 || math.IsInf(speed, 0) || math.IsNaN(speed) {
		return 0, fmt.Errorf("propagation speed must be positive and finite, got %g", speed)
	}
	d, err := a.Distance(b)
	if err != nil {
		return 0, err
	}
	return d / speed, nil
}

// ArrivalTimes returns the exact arrival time at every receiver of a signal
// emitted from target at t=0.
func ArrivalTimes(receivers []common.Vector, target common.Vector, speed float64) ([]float64, error) {
	times := make([]float64, len(receivers))
	for i, r := range receivers {
		t, err := PropagationTime(r, target, speed)
		if err != nil {
			return nil, fmt.Errorf("receiver %d: %w", i, err)
		}
		times[i] = t
	}
	return times, nil
}

// GenerateReceivers scatters count receivers around center. Horizontal offsets
// are uniform in ±scaling; vertical offsets place receivers at most scaling[2]
// below center.
func GenerateReceivers(center, scaling common.Vector, count int, rng *rand.Rand) ([]common.Vector, error) {
	if center.Dimension() != 3 || scaling.Dimension() != 3 {
		return nil, errors.New("center and scaling must have 3 components")
	}
	if count < 0 {
		return nil, fmt.Errorf("receiver count must not be negative, got %d", count)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}

	out := make([]common.Vector, count)
	for i := range out {
		r0 := 2 * (rng.Float64() - 0.5)
		r1 := 2 * (rng.Float64() - 0.5)
		r2 := rng.Float64()
		out[i] = common.Vector{
			center[0] - scaling[0]*r0,
			center[1] - scaling[1]*r1,
			center[2] - scaling[2]*r2,
		}
	}
	return out, nil
}

// FivePointLayout returns a fixed, non-coplanar five-receiver layout: center,
// one receiver offset along each axis, and one on the far corner.
func FivePointLayout(center, scaling common.Vector) ([]common.Vector, error) {
	if center.Dimension() != 3 || scaling.Dimension() != 3 {
		return nil, errors.New("center and scaling must have 3 components")
	}
	offsets := []common.Vector{
		{0, 0, 0},
		{scaling[0], 0, 0},
		{0, scaling[1], 0},
		{0, 0, scaling[2]},
		{scaling[0], scaling[1], scaling[2]},
	}
	out := make([]common.Vector, len(offsets))
	for i, off := range offsets {
		p, err := center.Add(off)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// GenerateTarget draws a target around the middle of the receivers' bounding
// box. Each coordinate lies within ±sigma times the box extent from the
// middle, so sigma 0.5 spans the whole box and larger values reach past it.
func GenerateTarget(receivers []common.Vector, sigma float64, rng *rand.Rand) (common.Vector, error) {
	if len(receivers) == 0 {
		return nil, errors.New("at least one receiver is required")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}

	lo := common.Vector{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64}
	hi := common.Vector{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	for _, r := range receivers {
		p := r.Resize(3)
		for j := range p {
			lo[j] = math.Min(lo[j], p[j])
			hi[j] = math.Max(hi[j], p[j])
		}
	}

	target := common.NewVector(3)
	for j := range target {
		r := 2 * (rng.Float64() - 0.5)
		extent := hi[j] - lo[j]
		target[j] = extent*r*sigma + lo[j] + extent/2
	}
	return target, nil
}
