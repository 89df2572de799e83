package multilateration

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"multilateration-sim/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func randomTargets(t *testing.T, rng *rand.Rand, n int) []common.Vector {
	t.Helper()
	bounds := []float64{0, 600, 0, 600, 0, 600}
	out := make([]common.Vector, n)
	for i := range out {
		v, err := common.NewRandomVector(3, bounds, rng)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func TestSolveBatchParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	s := newSolver(t)

	for _, layout := range [][]common.Vector{cube, tetra} {
		targets := randomTargets(t, rng, 64)
		batch := make([][]float64, len(targets))
		for i, target := range targets {
			batch[i] = arrivalTimes(t, layout, target)
		}

		seq, seqErr := s.SolveBatch(context.Background(), layout, batch, false)
		par, parErr := s.SolveBatch(context.Background(), layout, batch, true)

		if seqErr != nil {
			assert.EqualError(t, parErr, seqErr.Error())
		} else {
			assert.NoError(t, parErr)
		}
		require.Len(t, seq, len(targets))
		assert.Equal(t, seq, par)
	}
}

func TestSolveBatchMatchesSingleSolves(t *testing.T) {
	s := newSolver(t)
	targets := []common.Vector{{300, 400, 500}, {10, 20, 30}, {900, 100, 50}}
	batch := make([][]float64, len(targets))
	for i, target := range targets {
		batch[i] = arrivalTimes(t, cube, target)
	}

	got, err := s.SolveBatch(context.Background(), cube, batch, true)
	require.NoError(t, err)
	for i, target := range targets {
		want, err := s.Solve(cube, batch[i])
		require.NoError(t, err)
		assert.Equal(t, want, got[i])
		assertPosition(t, target, got[i].Position, 1e-3)
	}
}

func TestSolveBatchCollectsErrorsInOrder(t *testing.T) {
	s := newSolver(t)
	good := arrivalTimes(t, cube, common.Vector{300, 400, 500})
	batch := [][]float64{good, {1, 2}, good, {nan(), 0, 0, 0, 0}}

	for _, parallel := range []bool{false, true} {
		got, err := s.SolveBatch(context.Background(), cube, batch, parallel)
		require.Error(t, err)
		var inputErr *InputError
		assert.ErrorAs(t, err, &inputErr)

		msg := err.Error()
		assert.Contains(t, msg, "query 1:")
		assert.Contains(t, msg, "query 3:")
		assert.Less(t, strings.Index(msg, "query 1:"), strings.Index(msg, "query 3:"))

		require.Len(t, got, len(batch))
		assertPosition(t, common.Vector{300, 400, 500}, got[0].Position, 1e-3)
		assertPosition(t, common.Vector{300, 400, 500}, got[2].Position, 1e-3)
		assert.Nil(t, got[1].Position)

		var queryErr *QueryError
		require.ErrorAs(t, err, &queryErr)
		assert.Equal(t, 1, queryErr.Index, "first failure in query order")
	}
}

func TestSolveBatchRejectsTooFewReceivers(t *testing.T) {
	_, err := newSolver(t).SolveBatch(context.Background(), cube[:1], [][]float64{{0}}, true)
	var countErr *ReceiverCountError
	assert.ErrorAs(t, err, &countErr)
}

func TestSolveBatchSkipsQueriesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := [][]float64{arrivalTimes(t, cube, common.Vector{1, 2, 3})}
	got, err := newSolver(t).SolveBatch(ctx, cube, batch, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Position)
}

func TestSolveBatchEmpty(t *testing.T) {
	got, err := newSolver(t).SolveBatch(context.Background(), cube, nil, true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryErrors(t *testing.T) {
	assert.Equal(t, []error{nil, nil}, QueryErrors(nil, 2))

	s := newSolver(t)
	good := arrivalTimes(t, cube, common.Vector{300, 400, 500})
	_, err := s.SolveBatch(context.Background(), cube, [][]float64{good, {1}, good}, false)
	got := QueryErrors(err, 3)
	assert.NoError(t, got[0])
	var inputErr *InputError
	assert.ErrorAs(t, got[1], &inputErr)
	assert.NoError(t, got[2])

	countErr := &ReceiverCountError{Got: 1, Min: MinReceivers}
	for _, e := range QueryErrors(countErr, 2) {
		assert.Same(t, countErr, e)
	}
}
