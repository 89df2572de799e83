package multilateration

import (
	"context"
	"errors"
	"runtime"

	"multilateration-sim/internal/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// SolveBatch solves one query per entry of timesBatch against the same
// receiver layout. Result i always corresponds to timesBatch[i].
//
// With parallel set, queries run on up to GOMAXPROCS goroutines; each query
// allocates its own systems and writes only its own result slot, so the
// output is identical to a sequential run. Failed queries leave a zero
// Solution and their *QueryError values are joined in query order. Queries
// that have not started when ctx is done are skipped with ctx's error;
// running queries are not interrupted.
func (s *Solver) SolveBatch(ctx context.Context, receivers []common.Vector, timesBatch [][]float64, parallel bool) ([]Solution, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "multilateration.SolveBatch",
		trace.WithAttributes(
			attribute.Int("rdm.receivers", len(receivers)),
			attribute.Int("rdm.queries", len(timesBatch)),
			attribute.Bool("rdm.parallel", parallel),
		))
	defer span.End()

	if _, err := SelectMethod(len(receivers)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]Solution, len(timesBatch))
	errs := make([]error, len(timesBatch))
	solveOne := func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = &QueryError{Index: i, Err: err}
			return
		}
		sol, err := s.Solve(receivers, timesBatch[i])
		if err != nil {
			errs[i] = &QueryError{Index: i, Err: err}
			return
		}
		results[i] = sol
	}

	if parallel {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range timesBatch {
			g.Go(func() error {
				solveOne(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range timesBatch {
			solveOne(i)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "one or more queries failed")
	}
	return results, err
}

// QueryErrors spreads an error returned by SolveBatch over the n queries of
// the batch: entry i is the failure of query i, or nil. An error that does
// not name a query, such as a receiver count error, is reported for every
// query.
func QueryErrors(err error, n int) []error {
	out := make([]error, n)
	if err == nil {
		return out
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		for i := range out {
			out[i] = err
		}
		return out
	}
	for _, e := range joined.Unwrap() {
		var qe *QueryError
		if errors.As(e, &qe) && qe.Index >= 0 && qe.Index < n {
			out[qe.Index] = qe.Err
		}
	}
	return out
}
