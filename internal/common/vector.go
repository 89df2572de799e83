package common

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Vector represents a point or vector in n-dimensional space.
type Vector []float64

// NewVector creates a new vector of a given dimension.
func NewVector(dimension int) Vector {
	return make(Vector, dimension)
}

// NewRandomVector creates a vector with random coordinates within given bounds.
// bounds should have dimension * 2 elements: [minX, maxX, minY, maxY, ...]
func NewRandomVector(dimension int, bounds []float64, rng *rand.Rand) (Vector, error) {
	if len(bounds) != dimension*2 {
		return nil, fmt.Errorf("bounds length must be dimension * 2, got %d, expected %d", len(bounds), dimension*2)
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is nil")
	}
	v := NewVector(dimension)
	for i := 0; i < dimension; i++ {
		lo := bounds[i*2]
		hi := bounds[i*2+1]
		v[i] = lo + rng.Float64()*(hi-lo)
	}
	return v, nil
}

// Dimension returns the dimension of the vector.
func (v Vector) Dimension() int {
	return len(v)
}

// Distance calculates the Euclidean distance between two vectors.
func (v Vector) Distance(other Vector) (float64, error) {
	if err := sameDimension(v, other); err != nil {
		return 0, err
	}
	return floats.Distance(v, other, 2), nil
}

// Add adds another vector to this vector.
func (v Vector) Add(other Vector) (Vector, error) {
	if err := sameDimension(v, other); err != nil {
		return nil, err
	}
	return floats.AddTo(NewVector(v.Dimension()), v, other), nil
}

// Subtract subtracts another vector from this vector.
func (v Vector) Subtract(other Vector) (Vector, error) {
	if err := sameDimension(v, other); err != nil {
		return nil, err
	}
	return floats.SubTo(NewVector(v.Dimension()), v, other), nil
}

// MultiplyByScalar multiplies the vector by a scalar value.
func (v Vector) MultiplyByScalar(scalar float64) Vector {
	result := v.Clone()
	floats.Scale(scalar, result)
	return result
}

// Resize returns a copy of v truncated or zero-padded to length.
func (v Vector) Resize(length int) Vector {
	if length < 0 {
		length = 0
	}
	result := NewVector(length)
	copy(result, v)
	return result
}

// String returns a string representation of the vector.
func (v Vector) String() string {
	strs := make([]string, len(v))
	for i, val := range v {
		strs[i] = fmt.Sprintf("%.3f", val)
	}
	return fmt.Sprintf("[%s]", strings.Join(strs, ", "))
}

// Clone creates a deep copy of the vector.
func (v Vector) Clone() Vector {
	clone := make(Vector, len(v))
	copy(clone, v)
	return clone
}

// NormSq calculates the squared Euclidean norm (magnitude squared) of the vector (dot product with itself).
func (v Vector) NormSq() float64 {
	return floats.Dot(v, v)
}

// Norm calculates the Euclidean norm of the vector.
func (v Vector) Norm() float64 {
	return floats.Norm(v, 2)
}

// IsFinite reports whether every component is neither NaN nor infinite.
func (v Vector) IsFinite() bool {
	for _, val := range v {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return false
		}
	}
	return true
}

func sameDimension(a, b Vector) error {
	if a.Dimension() != b.Dimension() {
		return fmt.Errorf("vectors must have the same dimension: %d != %d", a.Dimension(), b.Dimension())
	}
	return nil
}
