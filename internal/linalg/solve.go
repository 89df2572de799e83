// Package linalg solves small dense square linear systems A·x = b by
// Gauss-Jordan elimination.
package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the relative pivot magnitude below which a system is
// treated as singular.
const DefaultTolerance = 1e-14

// Pivoting selects the row exchange strategy used during elimination.
type Pivoting int

const (
	// PartialPivoting swaps in the row with the largest magnitude in the
	// pivot column before normalizing.
	PartialPivoting Pivoting = iota
	// NoPivoting normalizes rows in their given order.
	NoPivoting
)

func (p Pivoting) String() string {
	switch p {
	case PartialPivoting:
		return "partial"
	case NoPivoting:
		return "none"
	default:
		return fmt.Sprintf("Pivoting(%d)", int(p))
	}
}

// ParsePivoting converts a configuration string into a Pivoting mode.
func ParsePivoting(s string) (Pivoting, error) {
	switch s {
	case "", "partial":
		return PartialPivoting, nil
	case "none":
		return NoPivoting, nil
	default:
		return 0, fmt.Errorf("unknown pivoting mode %q", s)
	}
}

// Solver is a Gauss-Jordan solver. The zero value uses partial pivoting and
// DefaultTolerance.
type Solver struct {
	Pivoting  Pivoting
	Tolerance float64 // relative to the largest |A[i][j]|; 0 means DefaultTolerance
}

// Solve solves A·x = b with the default Solver.
func Solve(a mat.Matrix, b mat.Vector) (*mat.VecDense, error) {
	return Solver{}.Solve(a, b)
}

// Solve returns x such that A·x = b. A and b are not modified.
func (s Solver) Solve(a mat.Matrix, b mat.Vector) (*mat.VecDense, error) {
	rows, cols := a.Dims()
	if rows != cols || rows == 0 || b.Len() != rows {
		return nil, &ShapeError{Rows: rows, Cols: cols, RHS: b.Len()}
	}
	n := rows

	work := mat.DenseCopyOf(a)
	x := mat.VecDenseCopyOf(b)
	rhs := x.RawVector().Data

	largest, ok := maxAbs(work)
	if !ok || !finite(rhs) {
		return nil, ErrNonFinite
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	threshold := tol * largest

	// Forward pass: normalize each pivot row and clear the column below it.
	for i := 0; i < n; i++ {
		if s.Pivoting == PartialPivoting {
			if p := pivotRow(work, i); p != i {
				swapRows(work, rhs, i, p)
			}
		}
		row := work.RawRowView(i)
		pivot := row[i]
		if math.Abs(pivot) <= threshold {
			return nil, fmt.Errorf("pivot %g in column %d: %w", pivot, i, ErrSingular)
		}
		floats.Scale(1/pivot, row[i:])
		rhs[i] /= pivot

		for k := i + 1; k < n; k++ {
			below := work.RawRowView(k)
			f := below[i]
			if f == 0 {
				continue
			}
			floats.AddScaled(below[i:], -f, row[i:])
			rhs[k] -= f * rhs[i]
		}
	}

	// Backward pass: clear each pivot column above the diagonal.
	for l := n - 1; l >= 0; l-- {
		for k := 0; k < l; k++ {
			above := work.RawRowView(k)
			f := above[l]
			if f == 0 {
				continue
			}
			above[l] = 0
			rhs[k] -= f * rhs[l]
		}
	}

	if !finite(rhs) {
		return nil, ErrNonFinite
	}
	return x, nil
}

// pivotRow returns the index of the row at or below i with the largest
// magnitude in column i. Ties keep the earliest row.
func pivotRow(m *mat.Dense, i int) int {
	n, _ := m.Dims()
	best, bestAbs := i, math.Abs(m.At(i, i))
	for k := i + 1; k < n; k++ {
		if v := math.Abs(m.At(k, i)); v > bestAbs {
			best, bestAbs = k, v
		}
	}
	return best
}

func swapRows(m *mat.Dense, rhs []float64, i, j int) {
	ri, rj := m.RawRowView(i), m.RawRowView(j)
	for c := range ri {
		ri[c], rj[c] = rj[c], ri[c]
	}
	rhs[i], rhs[j] = rhs[j], rhs[i]
}

// maxAbs returns the largest coefficient magnitude and false if any
// coefficient is NaN or infinite.
func maxAbs(m *mat.Dense) (float64, bool) {
	r, _ := m.Dims()
	var out float64
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		if !finite(row) {
			return 0, false
		}
		if v := floats.Max(row); v > out {
			out = v
		}
		if v := -floats.Min(row); v > out {
			out = v
		}
	}
	return out, true
}

func finite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
