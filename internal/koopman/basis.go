package koopman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Basis evaluates an observable dictionary. Implementations must be pure:
// the same (x, u) always yields the same vector, and the first StateDim
// entries equal x while the last ControlDim entries equal u.
type Basis interface {
	Dim() int
	StateDim() int
	ControlDim() int
	Evaluate(x dynamo.State, u dynamo.Control) (*mat.VecDense, error)
}

func checkInput(b Basis, x dynamo.State, u dynamo.Control) error {
	if len(x) != b.StateDim() {
		return fmt.Errorf("basis: state has %d components, want %d: %w", len(x), b.StateDim(), ErrDimensionMismatch)
	}
	if len(u) != b.ControlDim() {
		return fmt.Errorf("basis: control has %d components, want %d: %w", len(u), b.ControlDim(), ErrDimensionMismatch)
	}
	return nil
}
