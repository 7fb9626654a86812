package integrators

import (
	"math"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Dormand-Prince 5(4) tableau.
var (
	dpNodes = [7]float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}

	dpCoupling = [7][6]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}

	// fifth-order weights; the seventh stage is evaluated at the solution (FSAL)
	dpWeights = [7]float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}

	// difference between the fifth- and fourth-order weights
	dpErrWeights = [7]float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

// RK45 is the adaptive Dormand-Prince stepper. Step takes exactly one step
// of the requested size; StepAdaptive also proposes the next step size.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	tol      float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		tol:      1e-9,
	}
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	xNew, _ := r.solve(dyn, x, u, t, dt)
	return xNew
}

func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	if tol <= 0 {
		tol = r.tol
	}
	xNew, errMax := r.solve(dyn, x, u, t, dt)
	if !xNew.IsValid() {
		return xNew, dt, dynamo.ErrInvalidState
	}

	ratio := errMax / tol
	var scale float64
	switch {
	case ratio > 1:
		scale = math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		scale = math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
	default:
		scale = r.maxScale
	}
	return xNew, dt * scale, nil
}

// solve returns the fifth-order solution and the scaled local error estimate.
func (r *RK45) solve(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, float64) {
	n := len(x)
	var k [7]dynamo.State
	k[0] = dyn.Derive(x, u, t)

	probe := make(dynamo.State, n)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpCoupling[s][j] * k[j][i]
			}
			probe[i] = x[i] + dt*acc
		}
		k[s] = dyn.Derive(probe, u, t+dpNodes[s]*dt)
	}

	xNew := make(dynamo.State, n)
	errMax := 0.0
	for i := 0; i < n; i++ {
		acc, errAcc := 0.0, 0.0
		for s := 0; s < 7; s++ {
			acc += dpWeights[s] * k[s][i]
			errAcc += dpErrWeights[s] * k[s][i]
		}
		xNew[i] = x[i] + dt*acc
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*errAcc)/scale)
	}
	return xNew, errMax
}
