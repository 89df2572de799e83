package multilateration

import "fmt"

const (
	// MinReceivers is the smallest receiver set any method accepts.
	MinReceivers = 2
	// LinearReceivers is the number of receivers the closed-form method uses.
	// Larger sets are truncated to their first LinearReceivers entries.
	LinearReceivers = 5
)

// Method identifies the formulation used for a solve.
type Method int

const (
	// Iterative refines the full nonlinear system from a zero start (2-4 receivers).
	Iterative Method = iota
	// Linear solves the pairwise-differenced system in closed form (5+ receivers).
	Linear
)

func (m Method) String() string {
	switch m {
	case Iterative:
		return "iterative"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// SelectMethod picks the formulation for a receiver count.
func SelectMethod(receivers int) (Method, error) {
	switch {
	case receivers < MinReceivers:
		return 0, &ReceiverCountError{Got: receivers, Min: MinReceivers}
	case receivers < LinearReceivers:
		return Iterative, nil
	default:
		return Linear, nil
	}
}

// Status reports how a solve terminated.
type Status int

const (
	// Converged means no position component of the last update exceeded epsilon.
	// The closed-form path always reports it.
	Converged Status = iota
	// IterationBudgetExhausted means the iteration budget ran out first; the
	// solution holds the last estimate.
	IterationBudgetExhausted
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationBudgetExhausted:
		return "budget_exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}
