package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors shared by the simulation and identification packages.
var (
	// ErrInvalidState indicates a state vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates a state, control or matrix whose size
	// disagrees with the configured dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrParameterBounds indicates a parameter value outside its valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
)

// SimulationError wraps an error with the step at which integration failed.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// CheckDims returns ErrDimensionMismatch when x and u do not match the
// dimensions of sys.
func CheckDims(sys System, x State, u Control) error {
	if len(x) != sys.StateDim() {
		return fmt.Errorf("state has %d components, want %d: %w", len(x), sys.StateDim(), ErrDimensionMismatch)
	}
	if len(u) != sys.ControlDim() {
		return fmt.Errorf("control has %d components, want %d: %w", len(u), sys.ControlDim(), ErrDimensionMismatch)
	}
	return nil
}
