package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/koopsim/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int   { return 2 }
func (h *harmonicOscillator) ControlDim() int { return 0 }

func (h *harmonicOscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func integrate(integ dynamo.Integrator, steps int, dt float64) dynamo.State {
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}
	return x
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name  string
		integ dynamo.Integrator
		tol   float64
	}{
		{"euler", NewEuler(), 1e-2},
		{"rk4", NewRK4(), 1e-8},
		{"rk45", NewRK45(), 1e-9},
	}

	const steps, dt = 100, 0.01
	wantX := math.Cos(steps * dt)
	wantV := -math.Sin(steps * dt)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := integrate(tt.integ, steps, dt)
			if math.Abs(x[0]-wantX) > tt.tol {
				t.Errorf("position error too large: got %.10f, want %.10f", x[0], wantX)
			}
			if math.Abs(x[1]-wantV) > tt.tol {
				t.Errorf("velocity error too large: got %.10f, want %.10f", x[1], wantV)
			}
		})
	}
}

func TestRK4ReusesScratchAcrossDimensions(t *testing.T) {
	rk := NewRK4()
	dyn := &harmonicOscillator{}
	_ = rk.Step(dyn, dynamo.State{1, 0}, nil, 0, 0.01)

	x := rk.Step(dyn, dynamo.State{0, 1}, nil, 0, 0.01)
	if math.Abs(x[0]-math.Sin(0.01)) > 1e-10 {
		t.Errorf("second step wrong: %v", x)
	}
}

func TestRK45_AdaptiveStep(t *testing.T) {
	integ := NewRK45()
	dyn := &harmonicOscillator{}

	x, loose, err := integ.StepAdaptive(dyn, dynamo.State{1, 0}, nil, 0, 0.1, 1e-4)
	if err != nil {
		t.Fatalf("StepAdaptive returned error: %v", err)
	}
	if !x.IsValid() {
		t.Error("StepAdaptive produced invalid state")
	}

	_, tight, err := integ.StepAdaptive(dyn, dynamo.State{1, 0}, nil, 0, 0.1, 1e-14)
	if err != nil {
		t.Fatalf("StepAdaptive returned error: %v", err)
	}
	if tight >= loose {
		t.Errorf("tighter tolerance should shrink the proposed step: %g >= %g", tight, loose)
	}
}
