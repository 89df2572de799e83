package multilateration

import (
	"fmt"
	"math"

	"multilateration-sim/internal/common"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// linearSystem builds the closed-form system against receiver 0 from exactly
// LinearReceivers 3-D receivers. Subtracting the squared-range equation of
// receiver 0 from that of receiver i cancels |X|², leaving for i = 1..4
//
//	(R0 - Ri)·X - c(T0 - Ti)·u = (|R0|² - |Ri|² + (c(Ti - T0))²) / 2
//
// with u = -|X - R0|.
func linearSystem(r []common.Vector, t []float64, c float64) (*mat.Dense, *mat.VecDense) {
	n := LinearReceivers - 1
	h := mat.NewDense(n, n, nil)
	f := mat.NewVecDense(n, nil)

	r0 := r[0]
	p0 := r0.NormSq()
	for i := 1; i < LinearReceivers; i++ {
		ri := r[i]
		row := h.RawRowView(i - 1)
		for j := 0; j < 3; j++ {
			row[j] = r0[j] - ri[j]
		}
		row[3] = -c * (t[0] - t[i])

		dt := c * (t[i] - t[0])
		f.SetVec(i-1, (p0-ri.NormSq()+dt*dt)/2)
	}
	return h, f
}

// iterativeSystem builds the correction system H·S = F for the current
// unknown v. r holds n receivers already reduced to n-1 coordinates; v has the
// n-1 position components followed by the auxiliary range component.
func iterativeSystem(r []common.Vector, t []float64, v common.Vector, c float64) (*mat.Dense, *mat.VecDense, error) {
	n := len(r)
	d := n - 1
	pos := v[:d]

	rk, err := r[0].Distance(pos)
	if err != nil {
		return nil, nil, err
	}
	if rk == 0 || math.IsNaN(rk) || math.IsInf(rk, 0) {
		return nil, nil, fmt.Errorf("%w: distance to reference receiver is %g", ErrDegenerateGeometry, rk)
	}

	h := mat.NewDense(n, n, nil)
	f := mat.NewVecDense(n, nil)

	p0 := r[0].NormSq()
	for i := 0; i < d; i++ {
		ri := r[i+1]
		row := h.RawRowView(i)
		for j := 0; j < d; j++ {
			row[j] = ri[j] - r[0][j]
		}
		dt := c * (t[i+1] - t[0])
		row[d] = dt

		df := floats.Dot(pos, row[:d])
		dp := -0.5*(ri.NormSq()-p0-dt*dt) + dt*rk
		f.SetVec(i, -(df + dp))
	}

	// Gradient of the range-to-reference constraint; F anchors the update
	// away from the reference receiver.
	last := h.RawRowView(d)
	for j := 0; j < d; j++ {
		last[j] = (r[0][j] - pos[j]) / rk
	}
	last[d] = 1
	f.SetVec(d, -1/rk)

	return h, f, nil
}

// converged reports whether every position component of the correction is
// within eps. The trailing auxiliary component is not tested.
func converged(step []float64, eps float64) bool {
	for _, s := range step[:len(step)-1] {
		if math.Abs(s) > eps {
			return false
		}
	}
	return true
}
