package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

// Lifted applies an LQR gain designed on a Koopman model. Each call lifts x
// with the control set to zero and feeds back the first n basis entries.
type Lifted struct {
	basis koopman.Basis
	lqr   *LQR
	n     int
	zero  dynamo.Control
}

// NewLifted checks that gain maps the first n entries of the basis onto
// its control inputs.
func NewLifted(b koopman.Basis, gain *mat.Dense, n int) (*Lifted, error) {
	rows, cols := gain.Dims()
	if n < 1 || n > b.Dim() || cols != n || rows != b.ControlDim() {
		return nil, fmt.Errorf("lifted feedback: %dx%d gain on %d of %d basis entries with %d inputs: %w",
			rows, cols, n, b.Dim(), b.ControlDim(), dynamo.ErrDimensionMismatch)
	}
	return &Lifted{
		basis: b,
		lqr:   NewLQR(gain, nil),
		n:     n,
		zero:  make(dynamo.Control, b.ControlDim()),
	}, nil
}

// Compute panics if x does not have the basis state dimension.
func (l *Lifted) Compute(x dynamo.State, t float64) dynamo.Control {
	psi, err := l.basis.Evaluate(x, l.zero)
	if err != nil {
		panic(err)
	}
	lifted := dynamo.State(psi.RawVector().Data[:l.n])
	return l.lqr.Compute(lifted, t)
}
