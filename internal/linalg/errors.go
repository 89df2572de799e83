package linalg

import (
	"errors"
	"fmt"
)

var (
	// ErrSingular is returned when elimination meets a pivot that is zero or
	// negligible relative to the largest coefficient of the system.
	ErrSingular = errors.New("linalg: matrix is singular")

	// ErrNonFinite is returned when the system or its solution contains NaN or Inf.
	ErrNonFinite = errors.New("linalg: non-finite value")
)

// ShapeError reports a linear system whose dimensions are inconsistent.
type ShapeError struct {
	Rows, Cols int // coefficient matrix
	RHS        int // right-hand side length
}

func (e *ShapeError) Error() string {
	if e.Rows != e.Cols {
		return fmt.Sprintf("linalg: matrix must be square, got %dx%d", e.Rows, e.Cols)
	}
	if e.Rows == 0 {
		return "linalg: empty system"
	}
	return fmt.Sprintf("linalg: right-hand side length %d does not match matrix height %d", e.RHS, e.Rows)
}
