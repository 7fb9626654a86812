package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// minAdaptiveStep stops adaptive integration from stalling on stiff regions.
const minAdaptiveStep = 1e-10

type Oracle struct {
	dyn       dynamo.System
	integ     func() dynamo.Integrator
	substeps  int
	tolerance float64
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithSubsteps sets how many integrator steps are taken per requested
// interval. Adaptive integrators use it only for their first trial step.
func WithSubsteps(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.substeps = n
		}
	}
}

// WithTolerance enables adaptive stepping for integrators that implement
// [dynamo.AdaptiveIntegrator].
func WithTolerance(tol float64) Option {
	return func(o *Oracle) { o.tolerance = tol }
}

// NewOracle returns an oracle for dyn. newInteg is called once per
// trajectory because integrators may keep scratch buffers.
func NewOracle(dyn dynamo.System, newInteg func() dynamo.Integrator, opts ...Option) *Oracle {
	o := &Oracle{dyn: dyn, integ: newInteg, substeps: 10}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Oracle) System() dynamo.System { return o.dyn }

// Step advances x by dt with u held constant.
func (o *Oracle) Step(x dynamo.State, u dynamo.Control, dt float64) (dynamo.State, error) {
	if err := dynamo.CheckDims(o.dyn, x, u); err != nil {
		return nil, err
	}
	next, err := o.advance(o.integ(), x, u, 0, dt)
	if err != nil {
		return nil, &dynamo.SimulationError{Step: 0, Time: 0, State: x, Wrapped: err}
	}
	return next, nil
}

// Trajectory returns the state at each of times, starting from x0 at
// times[0], with u held constant throughout.
func (o *Oracle) Trajectory(ctx context.Context, x0 dynamo.State, u dynamo.Control, times []float64) ([]dynamo.State, error) {
	if err := dynamo.CheckDims(o.dyn, x0, u); err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}

	integ := o.integ()
	states := make([]dynamo.State, len(times))
	states[0] = x0.Clone()

	for k := 1; k < len(times); k++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if times[k] < times[k-1] {
			return nil, fmt.Errorf("times must be non-decreasing: t[%d]=%g < t[%d]=%g", k, times[k], k-1, times[k-1])
		}
		next, err := o.advance(integ, states[k-1], u, times[k-1], times[k])
		if err != nil {
			return nil, &dynamo.SimulationError{Step: k, Time: times[k-1], State: states[k-1], Wrapped: err}
		}
		states[k] = next
	}
	return states, nil
}

// Result is the record of a closed-loop run.
type Result struct {
	States   []dynamo.State
	Controls []dynamo.Control
	Times    []float64
	Metrics  map[string]float64
}

// Closed runs ctrl in feedback with the system for duration, recomputing the
// control every dt and holding it over the interval.
func (o *Oracle) Closed(ctx context.Context, x0 dynamo.State, ctrl dynamo.Controller, dt, duration float64, metrics ...dynamo.Metric) (*Result, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", dt)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %f", duration)
	}
	if len(x0) != o.dyn.StateDim() {
		return nil, fmt.Errorf("state has %d components, want %d: %w", len(x0), o.dyn.StateDim(), dynamo.ErrDimensionMismatch)
	}

	steps := int(math.Round(duration / dt))
	result := &Result{
		States:   make([]dynamo.State, 0, steps+1),
		Controls: make([]dynamo.Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
	}
	for _, m := range metrics {
		m.Reset()
	}

	integ := o.integ()
	x := x0.Clone()
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, 0)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t := float64(i) * dt
		u := ctrl.Compute(x, t)
		if len(u) != o.dyn.ControlDim() {
			return result, fmt.Errorf("controller returned %d inputs, want %d: %w", len(u), o.dyn.ControlDim(), dynamo.ErrDimensionMismatch)
		}
		for _, m := range metrics {
			m.Observe(x, u, t)
		}

		next, err := o.advance(integ, x, u, t, t+dt)
		if err != nil {
			return result, &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: err}
		}
		x = next

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Times = append(result.Times, float64(i+1)*dt)
	}

	for _, m := range metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (o *Oracle) advance(integ dynamo.Integrator, x dynamo.State, u dynamo.Control, t0, t1 float64) (dynamo.State, error) {
	span := t1 - t0
	if span == 0 {
		return x.Clone(), nil
	}

	if adaptive, ok := integ.(dynamo.AdaptiveIntegrator); ok && o.tolerance > 0 {
		return o.advanceAdaptive(adaptive, x, u, t0, t1)
	}

	h := span / float64(o.substeps)
	for i := 0; i < o.substeps; i++ {
		x = integ.Step(o.dyn, x, u, t0+float64(i)*h, h)
	}
	if !x.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	return x, nil
}

func (o *Oracle) advanceAdaptive(integ dynamo.AdaptiveIntegrator, x dynamo.State, u dynamo.Control, t0, t1 float64) (dynamo.State, error) {
	t := t0
	h := (t1 - t0) / float64(o.substeps)
	for {
		last := t+h >= t1
		if last {
			h = t1 - t
		}
		next, hNext, err := integ.StepAdaptive(o.dyn, x, u, t, h, o.tolerance)
		if err != nil {
			return nil, err
		}
		x = next
		if last {
			return x, nil
		}
		t += h
		h = math.Max(hNext, minAdaptiveStep)
	}
}
