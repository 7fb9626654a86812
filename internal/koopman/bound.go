package koopman

import (
	"fmt"
	"math"
)

// BoundCalculator turns one-step errors into a worst-case error envelope
// using the Lagrange form of the Taylor remainder.
//
// If the training error of physical component j over one step dt is e_j,
// the largest (n+1)-th derivative consistent with it is
// e_j / R(n, dt), where R(n, t) = t^(n+1)/(n+1)!. The error after elapsed
// time t is then bounded by e_j · R(n, t) / R(n, dt).
//
// The derivative order of component j is dim − 1 − j: the number of
// dictionary levels between that state and the truncation of a dictionary
// with dim terms. dim is an explicit parameter so the coupling between the
// dictionary size and the tightness of the bound stays visible.
type BoundCalculator struct {
	dt  float64
	dim int
}

func NewBoundCalculator(dt float64, dim int) (*BoundCalculator, error) {
	if dt <= 0 || math.IsInf(dt, 0) || math.IsNaN(dt) {
		return nil, fmt.Errorf("bound: time step must be positive and finite, got %g", dt)
	}
	if dim < 1 {
		return nil, fmt.Errorf("bound: dictionary size must be positive, got %d", dim)
	}
	return &BoundCalculator{dt: dt, dim: dim}, nil
}

// Remainder is t^(order+1) / (order+1)!.
func Remainder(order int, t float64) float64 {
	k := float64(order + 1)
	return math.Pow(t, k) / math.Gamma(k+1)
}

// DerivativeOrder is the remainder order used for physical component j.
func (bc *BoundCalculator) DerivativeOrder(j int) int {
	return bc.dim - 1 - j
}

// Bound is maxLocal / Remainder(order, dt) · Remainder(order, t). It is
// exactly zero for t <= 0. The factorials cancel, so it is evaluated as
// maxLocal · (t/dt)^(order+1), which stays finite for high orders where the
// two remainders would underflow.
func (bc *BoundCalculator) Bound(maxLocal float64, order int, t float64) float64 {
	if t <= 0 {
		return 0
	}
	return maxLocal * math.Pow(t/bc.dt, float64(order+1))
}

// Curve evaluates the bound for every physical component at t = k·dt for
// k in [0, steps). Row 0 is exactly zero; it is prepended rather than
// computed.
func (bc *BoundCalculator) Curve(maxLocal []float64, steps int) ([][]float64, error) {
	if len(maxLocal) > bc.dim {
		return nil, fmt.Errorf("bound: %d components for a dictionary of %d: %w", len(maxLocal), bc.dim, ErrDimensionMismatch)
	}
	if steps < 1 {
		return nil, fmt.Errorf("bound: need at least one time step, got %d", steps)
	}

	curve := make([][]float64, steps)
	curve[0] = make([]float64, len(maxLocal))
	for k := 1; k < steps; k++ {
		t := float64(k) * bc.dt
		row := make([]float64, len(maxLocal))
		for j, e := range maxLocal {
			row[j] = bc.Bound(e, bc.DerivativeOrder(j), t)
		}
		curve[k] = row
	}
	return curve, nil
}
