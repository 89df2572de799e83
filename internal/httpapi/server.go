package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"multilateration-sim/internal/common"
	"multilateration-sim/internal/linalg"
	"multilateration-sim/internal/logging"
	"multilateration-sim/internal/multilateration"
	"multilateration-sim/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// SolveRequest is the body of POST /v1/solve.
type SolveRequest struct {
	Receivers []common.Vector `json:"receivers"`
	Times     []float64       `json:"times"`
}

// BatchRequest is the body of POST /v1/solve/batch.
type BatchRequest struct {
	Receivers []common.Vector `json:"receivers"`
	Times     [][]float64     `json:"times"`
	Parallel  *bool           `json:"parallel,omitempty"`
}

// SolutionResponse is one solved position.
type SolutionResponse struct {
	Position         common.Vector `json:"position"`
	Method           string        `json:"method"`
	Status           string        `json:"status"`
	Iterations       int           `json:"iterations"`
	RangeToReference float64       `json:"range_to_reference"`
}

// BatchItem is one entry of a batch response; exactly one field is set.
type BatchItem struct {
	Solution *SolutionResponse `json:"solution,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /v1/solve/batch.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
	Failed  int         `json:"failed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves solve requests against one Solver.
type Server struct {
	Solver   *multilateration.Solver
	Metrics  *observability.SolverCollector
	Logger   *slog.Logger
	Parallel bool // batch default when the request does not say
}

// NewHandler creates the HTTP handler for the solve API. metrics may be nil.
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/healthz", s.Health)
	r.Post("/v1/solve", s.Solve)
	r.Post("/v1/solve/batch", s.SolveBatch)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.ObserveRequest(route, status)
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Solve handles POST /v1/solve.
func (s *Server) Solve(w http.ResponseWriter, r *http.Request) {
	var body SolveRequest
	if !s.decode(w, r, &body) {
		return
	}

	sol, err := s.Solver.SolveContext(r.Context(), body.Receivers, body.Times)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(sol))
}

// SolveBatch handles POST /v1/solve/batch. Per-query failures are reported
// inline; the request itself only fails when no query can be attempted.
func (s *Server) SolveBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if !s.decode(w, r, &body) {
		return
	}
	parallel := s.Parallel
	if body.Parallel != nil {
		parallel = *body.Parallel
	}

	sols, err := s.Solver.SolveBatch(r.Context(), body.Receivers, body.Times, parallel)
	if sols == nil && err != nil {
		s.writeError(w, err)
		return
	}

	failed := multilateration.QueryErrors(err, len(sols))
	resp := BatchResponse{Results: make([]BatchItem, len(sols))}
	for i, sol := range sols {
		if failed[i] != nil {
			resp.Results[i].Error = failed[i].Error()
			resp.Failed++
			continue
		}
		out := toResponse(sol)
		resp.Results[i].Solution = &out
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func toResponse(sol multilateration.Solution) SolutionResponse {
	return SolutionResponse{
		Position:         sol.Position,
		Method:           sol.Method.String(),
		Status:           sol.Status.String(),
		Iterations:       sol.Iterations,
		RangeToReference: sol.RangeToReference,
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.Logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// StatusFor maps a solve error to an HTTP status code.
func StatusFor(err error) int {
	var (
		countErr *multilateration.ReceiverCountError
		inputErr *multilateration.InputError
		shapeErr *linalg.ShapeError
	)
	switch {
	case errors.As(err, &countErr), errors.As(err, &inputErr), errors.As(err, &shapeErr):
		return http.StatusBadRequest
	case errors.Is(err, multilateration.ErrDegenerateGeometry),
		errors.Is(err, linalg.ErrSingular),
		errors.Is(err, linalg.ErrNonFinite):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("solve failed", "error", err)
	} else {
		s.Logger.Debug("solve rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}
