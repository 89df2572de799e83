package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Loss returns the L1 distance between an estimate and the true position.
func Loss(estimate, truth Vector) (float64, error) {
	if err := sameDimension(estimate, truth); err != nil {
		return 0, err
	}
	return floats.Distance(estimate, truth, 1), nil
}

// Accuracy returns the ratio of the two vector norms folded into [0, 1],
// where 1 means the norms are equal.
func Accuracy(estimate, truth Vector) float64 {
	ratio := estimate.Norm() / truth.Norm()
	if ratio > 1 {
		return 1 / ratio
	}
	return ratio
}

// Similarity returns the cosine of the angle between two vectors.
// Zero-length inputs yield NaN.
func Similarity(a, b Vector) (float64, error) {
	if err := sameDimension(a, b); err != nil {
		return 0, err
	}
	denom := a.Norm() * b.Norm()
	if denom == 0 {
		return math.NaN(), nil
	}
	return floats.Dot(a, b) / denom, nil
}
