package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"multilateration-sim/internal/common"
	"multilateration-sim/internal/linalg"
	"multilateration-sim/internal/multilateration"
	"multilateration-sim/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cube = []common.Vector{
	{0, 0, 0},
	{1000, 0, 0},
	{0, 1000, 0},
	{0, 0, 1000},
	{1000, 1000, 1000},
}

func times(t *testing.T, receivers []common.Vector, target common.Vector) []float64 {
	t.Helper()
	out := make([]float64, len(receivers))
	for i, r := range receivers {
		d, err := r.Distance(target)
		require.NoError(t, err)
		out[i] = d / multilateration.SpeedOfLight
	}
	return out
}

func newTestServer(t *testing.T) (http.Handler, *observability.SolverCollector) {
	t.Helper()
	metrics, err := observability.NewSolverCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	solver, err := multilateration.NewSolver(multilateration.WithRecorder(metrics))
	require.NoError(t, err)
	return NewHandler(&Server{Solver: solver, Metrics: metrics}), metrics
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSolveLinear(t *testing.T) {
	h, _ := newTestServer(t)
	target := common.Vector{300, 400, 500}

	w := post(t, h, "/v1/solve", SolveRequest{Receivers: cube, Times: times(t, cube, target)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SolutionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "linear", resp.Method)
	assert.Equal(t, "converged", resp.Status)
	assert.InDeltaSlice(t, []float64(target), []float64(resp.Position), 1e-3)
	assert.InDelta(t, 707.1068, resp.RangeToReference, 1e-3)
}

func TestSolveIterative(t *testing.T) {
	h, _ := newTestServer(t)
	receivers := []common.Vector{{-500, -500, 0}, {1000, 0, 0}, {0, 1000, 0}, {0, 0, 1000}}
	target := common.Vector{100, 200, 50}

	w := post(t, h, "/v1/solve", SolveRequest{Receivers: receivers, Times: times(t, receivers, target)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SolutionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "iterative", resp.Method)
	assert.InDeltaSlice(t, []float64(target), []float64(resp.Position), 1e-2)
}

func TestSolveErrors(t *testing.T) {
	h, _ := newTestServer(t)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed", `{"receivers": [`, http.StatusBadRequest},
		{"unknown field", `{"receivers": [], "times": [], "speed": 1}`, http.StatusBadRequest},
		{"too few receivers", SolveRequest{Receivers: cube[:1], Times: []float64{0}}, http.StatusBadRequest},
		{"times mismatch", SolveRequest{Receivers: cube, Times: []float64{0, 0}}, http.StatusBadRequest},
		{"reference at start", SolveRequest{Receivers: cube[:4], Times: times(t, cube[:4], common.Vector{300, 400, 500})}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, "/v1/solve", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSolveBatch(t *testing.T) {
	h, _ := newTestServer(t)
	good := times(t, cube, common.Vector{300, 400, 500})
	parallel := true

	w := post(t, h, "/v1/solve/batch", BatchRequest{
		Receivers: cube,
		Times:     [][]float64{good, {1, 2}, good},
		Parallel:  &parallel,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 1, resp.Failed)

	require.NotNil(t, resp.Results[0].Solution)
	assert.InDeltaSlice(t, []float64{300, 400, 500}, []float64(resp.Results[0].Solution.Position), 1e-3)
	assert.Nil(t, resp.Results[1].Solution)
	assert.Contains(t, resp.Results[1].Error, "arrival times")
	assert.Equal(t, resp.Results[0], resp.Results[2])
}

func TestSolveBatchRejectsTooFewReceivers(t *testing.T) {
	h, _ := newTestServer(t)
	w := post(t, h, "/v1/solve/batch", BatchRequest{Receivers: cube[:1], Times: [][]float64{{0}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h, metrics := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	post(t, h, "/v1/solve", SolveRequest{Receivers: cube, Times: times(t, cube, common.Vector{1, 2, 3})})
	post(t, h, "/v1/solve", SolveRequest{Receivers: cube[:1], Times: []float64{0}})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/healthz", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/v1/solve", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/v1/solve", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Solves.WithLabelValues("linear", "converged")))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rdm_solves_total")
}

func TestNewHandlerWithoutMetrics(t *testing.T) {
	solver, err := multilateration.NewSolver()
	require.NoError(t, err)
	h := NewHandler(&Server{Solver: solver})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, h, "/v1/solve", SolveRequest{Receivers: cube, Times: times(t, cube, common.Vector{1, 2, 3})})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&multilateration.ReceiverCountError{Got: 1, Min: 2}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &multilateration.InputError{Reason: "x"}), http.StatusBadRequest},
		{&linalg.ShapeError{Rows: 2, Cols: 3, RHS: 2}, http.StatusBadRequest},
		{fmt.Errorf("iteration 0: %w", multilateration.ErrDegenerateGeometry), http.StatusUnprocessableEntity},
		{linalg.ErrSingular, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
