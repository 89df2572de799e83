package multilateration

import (
	"errors"
	"fmt"
)

// ErrDegenerateGeometry is returned when the iterative estimate coincides with
// the reference receiver or the assembled system stops being solvable.
var ErrDegenerateGeometry = errors.New("multilateration: degenerate geometry")

// ReceiverCountError reports fewer receivers than a solve needs.
type ReceiverCountError struct {
	Got, Min int
}

func (e *ReceiverCountError) Error() string {
	return fmt.Sprintf("multilateration: need at least %d receivers, got %d", e.Min, e.Got)
}

// ConfigurationError reports an invalid solver setting.
type ConfigurationError struct {
	Field string
	Value any
	Rule  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("multilateration: invalid %s %v: %s", e.Field, e.Value, e.Rule)
}

// InputError reports malformed receiver or time data.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "multilateration: " + e.Reason
}

// QueryError ties a batch failure to the index of the query that caused it.
type QueryError struct {
	Index int
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %d: %v", e.Index, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
