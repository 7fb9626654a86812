package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/control"
	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
	"github.com/san-kum/koopsim/internal/sim"
)

// Regulation is an LQR designed on the identified model and run on the
// true system, next to the uncontrolled run from the same state.
type Regulation struct {
	Initial     dynamo.State
	Gain        *mat.Dense
	Eigenvalues []complex128 // of the designed closed loop A − BK
	Closed      *sim.Result
	Open        *sim.Result
}

// Split returns the lifted-state block A = K[0:n, 0:n] and the input block
// B = K[0:n, n:] of op, where n is the dictionary size less the control
// entries at its end.
func Split(op *koopman.Operator, controls int) (a, b *mat.Dense, err error) {
	dim := op.Dim()
	n := dim - controls
	if controls < 1 || n < 1 {
		return nil, nil, fmt.Errorf("cannot split a %dx%d operator around %d inputs: %w", dim, dim, controls, dynamo.ErrDimensionMismatch)
	}
	k := op.Matrix()
	a = mat.DenseCopyOf(k.Slice(0, n, 0, n))
	b = mat.DenseCopyOf(k.Slice(0, n, n, dim))
	return a, b, nil
}

// Regulate designs a discrete LQR on the lifted model of op and drives the
// true system towards the origin with it for the configured duration.
func (e *Experiment) Regulate(ctx context.Context, op *koopman.Operator) (*Regulation, error) {
	rc := e.cfg.Regulator
	m := e.basis.ControlDim()
	a, b, err := Split(op, m)
	if err != nil {
		return nil, err
	}
	n, _ := a.Dims()
	if len(rc.Q) != n {
		return nil, fmt.Errorf("regulator.q has %d weights, the lifted model has %d states: %w", len(rc.Q), n, dynamo.ErrDimensionMismatch)
	}

	r := make([]float64, m)
	for i := range r {
		r[i] = rc.R
	}
	gain, _, err := control.DLQR(a, b, mat.NewDiagDense(n, rc.Q), mat.NewDiagDense(m, r), rc.Iterations)
	if err != nil {
		return nil, err
	}

	var eig mat.Eigen
	if !eig.Factorize(control.ClosedLoop(a, b, gain), mat.EigenNone) {
		return nil, fmt.Errorf("closed-loop eigen decomposition did not converge")
	}

	feedback, err := control.NewLifted(e.basis, gain, n)
	if err != nil {
		return nil, err
	}

	x0, err := e.regulatorStart()
	if err != nil {
		return nil, err
	}
	e.log.Info("regulating", "initial", x0, "gain", mat.Formatted(gain, mat.Squeeze()))

	metrics := e.reg.DefaultMetrics(e.cfg, e.sys)
	closed, err := e.oracle.Closed(ctx, x0, feedback, e.cfg.Dt, rc.Duration, metrics...)
	if err != nil {
		return nil, fmt.Errorf("closed loop: %w", err)
	}
	open, err := e.oracle.Closed(ctx, x0, control.NewNone(m), e.cfg.Dt, rc.Duration, metrics...)
	if err != nil {
		return nil, fmt.Errorf("open loop: %w", err)
	}

	return &Regulation{
		Initial:     x0,
		Gain:        gain,
		Eigenvalues: eig.Values(nil),
		Closed:      closed,
		Open:        open,
	}, nil
}

func (e *Experiment) regulatorStart() (dynamo.State, error) {
	rc := e.cfg.Regulator
	ns := e.sys.StateDim()
	if len(rc.InitState) > 0 {
		if len(rc.InitState) != ns {
			return nil, fmt.Errorf("regulator.init_state has %d entries, want %d: %w", len(rc.InitState), ns, dynamo.ErrDimensionMismatch)
		}
		return dynamo.State(rc.InitState).Clone(), nil
	}
	ranges := rc.Ranges
	if len(ranges) == 0 {
		ranges = e.cfg.Sampling.States
	}
	if len(ranges) != ns {
		return nil, fmt.Errorf("regulator.ranges has %d entries, want %d: %w", len(ranges), ns, dynamo.ErrDimensionMismatch)
	}
	return drawState(rand.New(rand.NewSource(e.cfg.Seed+2)), ranges), nil
}
