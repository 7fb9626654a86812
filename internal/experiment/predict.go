package experiment

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

// Prediction is the worst measured error over the test samples at each
// sample time of the horizon.
type Prediction struct {
	Times     []float64
	MaxErrors [][]float64 // [step][state]
	Samples   int
}

// Predict draws fresh initial states and held controls, rolls each one
// forward with op and with the oracle, and records the largest absolute
// state error per step.
func (e *Experiment) Predict(ctx context.Context, op *koopman.Operator) (*Prediction, error) {
	if op.Dim() != e.basis.Dim() {
		return nil, fmt.Errorf("operator is %dx%d, basis has %d terms: %w", op.Dim(), op.Dim(), e.basis.Dim(), dynamo.ErrDimensionMismatch)
	}
	s, err := e.sampler(1)
	if err != nil {
		return nil, err
	}

	n := e.cfg.Samples
	times := e.Times()
	ns := e.basis.StateDim()

	x0 := make([]dynamo.State, n)
	u := make([]dynamo.Control, n)
	for i := range x0 {
		x0[i], u[i] = s.Draw()
	}

	perSample := make([][][]float64, n)
	var done atomic.Int64
	e.progress("predicting", 0, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range x0 {
		g.Go(func() error {
			rows, err := e.sampleErrors(gctx, op, x0[i], u[i], times)
			if err != nil {
				return fmt.Errorf("test sample %d: %w", i, err)
			}
			perSample[i] = rows
			e.progress("predicting", int(done.Add(1)), n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	worst := make([][]float64, len(times))
	for k := range worst {
		worst[k] = make([]float64, ns)
		for _, rows := range perSample {
			for j, v := range rows[k] {
				worst[k][j] = math.Max(worst[k][j], v)
			}
		}
	}
	return &Prediction{Times: times, MaxErrors: worst, Samples: n}, nil
}

func (e *Experiment) sampleErrors(ctx context.Context, op *koopman.Operator, x0 dynamo.State, u dynamo.Control, times []float64) ([][]float64, error) {
	psi0, err := e.basis.Evaluate(x0, u)
	if err != nil {
		return nil, err
	}
	tr, err := op.Propagate(psi0, len(times)-1)
	if err != nil {
		return nil, err
	}
	truth, err := e.oracle.Trajectory(ctx, x0, u, times)
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, len(times))
	for k := range rows {
		rows[k] = truth[k].AbsDiff(tr.State(k, len(x0)))
	}
	return rows, nil
}

// Bounds turns the one-step errors of a model into the analytic error
// envelope over the horizon.
func (e *Experiment) Bounds(maxLocal []float64) ([][]float64, error) {
	ns := e.basis.StateDim()
	if len(maxLocal) < ns {
		return nil, fmt.Errorf("%d local errors for %d states: %w", len(maxLocal), ns, dynamo.ErrDimensionMismatch)
	}
	bc, err := koopman.NewBoundCalculator(e.cfg.Dt, e.basis.Dim())
	if err != nil {
		return nil, err
	}
	return bc.Curve(maxLocal[:ns], e.cfg.Steps())
}
