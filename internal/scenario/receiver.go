package scenario

import (
	"fmt"
	"math/rand/v2"

	"multilateration-sim/internal/common"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoiseFunction perturbs a true measurement and returns the noisy one.
type NoiseFunction func(trueValue float64) float64

// Receiver is a fixed station that timestamps the arrival of the signal.
type Receiver struct {
	id       string
	position common.Vector
	noise    NoiseFunction
}

// NewReceiver creates a receiver at pos. A nil noise function means exact
// timestamps.
func NewReceiver(pos common.Vector, noise NoiseFunction) *Receiver {
	return &Receiver{
		id:       fmt.Sprintf("receiver-%s", uuid.NewString()[:8]),
		position: pos.Clone(),
		noise:    noise,
	}
}

// GetID returns the unique identifier of the receiver.
func (r *Receiver) GetID() string {
	return r.id
}

// GetPosition returns the current position of the receiver.
func (r *Receiver) GetPosition() common.Vector {
	return r.position.Clone()
}

// SetPosition sets the position of the receiver.
func (r *Receiver) SetPosition(pos common.Vector) error {
	if pos.Dimension() != r.position.Dimension() {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", r.position.Dimension(), pos.Dimension())
	}
	r.position = pos.Clone()
	return nil
}

// MeasureArrival returns the time the signal emitted by target at t=0 reaches
// the receiver, with the receiver's noise applied.
func (r *Receiver) MeasureArrival(target Object, speed float64) (float64, error) {
	t, err := PropagationTime(r.position, target.GetPosition(), speed)
	if err != nil {
		return 0, fmt.Errorf("receiver %s: %w", r.id, err)
	}
	if r.noise != nil {
		t = r.noise(t)
	}
	return t, nil
}

func (r *Receiver) String() string {
	noise := "no"
	if r.noise != nil {
		noise = "yes"
	}
	return fmt.Sprintf("Receiver[%s] Pos: %s Noise: %s", r.id, r.position, noise)
}

// NoNoise is a NoiseFunction that adds no noise.
func NoNoise(trueValue float64) float64 {
	return trueValue
}

// GaussianNoise creates a NoiseFunction that adds zero-mean normal noise drawn
// from rng.
func GaussianNoise(stdDev float64, rng *rand.Rand) NoiseFunction {
	if stdDev <= 0 {
		return NoNoise
	}
	dist := distuv.Normal{Mu: 0, Sigma: stdDev, Src: rng}
	return func(trueValue float64) float64 {
		return trueValue + dist.Rand()
	}
}

// UniformNoise creates a NoiseFunction that adds noise within [-maxDelta, maxDelta].
func UniformNoise(maxDelta float64, rng *rand.Rand) NoiseFunction {
	if maxDelta <= 0 {
		return NoNoise
	}
	dist := distuv.Uniform{Min: -maxDelta, Max: maxDelta, Src: rng}
	return func(trueValue float64) float64 {
		return trueValue + dist.Rand()
	}
}

// PercentageNoise creates a NoiseFunction that adds uniform noise of up to
// percentage of the true value, e.g. 0.05 for 5%.
func PercentageNoise(percentage float64, rng *rand.Rand) NoiseFunction {
	if percentage <= 0 {
		return NoNoise
	}
	dist := distuv.Uniform{Min: -percentage, Max: percentage, Src: rng}
	return func(trueValue float64) float64 {
		return trueValue * (1 + dist.Rand())
	}
}
