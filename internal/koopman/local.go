package koopman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxLocalErrors returns, per basis component, the largest one-step residual
// |ψ(next) − K·ψ(now)| over pairs.
func MaxLocalErrors(op *Operator, b Basis, pairs []Pair) ([]float64, error) {
	if b.Dim() != op.Dim() {
		return nil, fmt.Errorf("basis has %d terms, operator is %dx%d: %w", b.Dim(), op.Dim(), op.Dim(), ErrDimensionMismatch)
	}
	now := make([]*mat.VecDense, len(pairs))
	next := make([]*mat.VecDense, len(pairs))
	for i, p := range pairs {
		var err error
		if now[i], next[i], err = evaluatePair(b, p); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
	}
	return MaxLocalErrorsFrom(op, now, next)
}

// MaxLocalErrorsFrom is MaxLocalErrors over already evaluated basis vectors,
// such as the snapshots kept by an [Accumulator].
func MaxLocalErrorsFrom(op *Operator, now, next []*mat.VecDense) ([]float64, error) {
	if len(now) != len(next) {
		return nil, fmt.Errorf("%d current and %d next snapshots: %w", len(now), len(next), ErrDimensionMismatch)
	}
	n := op.Dim()
	worst := make([]float64, n)
	pred := mat.NewVecDense(n, nil)
	for i := range now {
		if now[i].Len() != n || next[i].Len() != n {
			return nil, fmt.Errorf("snapshot %d has %d/%d entries, want %d: %w", i, now[i].Len(), next[i].Len(), n, ErrDimensionMismatch)
		}
		pred.MulVec(op.k, now[i])
		for j := 0; j < n; j++ {
			worst[j] = math.Max(worst[j], math.Abs(next[i].AtVec(j)-pred.AtVec(j)))
		}
	}
	return worst, nil
}
