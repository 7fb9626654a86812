package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Fish is an averaged model of a tail-actuated robotic fish swimming in a
// plane. The state is the world-frame pose (x, y, psi) followed by the
// body-frame velocities (vx, vy, omega). The two inputs are the tail-beat
// amplitude u1 and the tail bias angle u2, both in radians; averaging over
// a beat turns them into a thrust proportional to u1^2 and a turning moment
// proportional to u1^2*u2.
type Fish struct {
	SurgeMass  float64 // body mass plus added mass along the body axis
	SwayMass   float64 // body mass plus added mass across the body axis
	Inertia    float64 // yaw inertia plus added inertia
	SurgeDrag  float64
	SwayDrag   float64
	YawDrag    float64
	ThrustGain float64
	MomentGain float64
}

func NewFish() *Fish {
	return &Fish{
		SurgeMass:  0.5,
		SwayMass:   0.9,
		Inertia:    0.01,
		SurgeDrag:  0.6,
		SwayDrag:   3.0,
		YawDrag:    0.02,
		ThrustGain: 0.8,
		MomentGain: 0.05,
	}
}

func (f *Fish) StateDim() int {
	return 6
}

func (f *Fish) ControlDim() int {
	return 2
}

func (f *Fish) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	psi, vx, vy, omega := x[2], x[3], x[4], x[5]
	amp, bias := u[0], u[1]

	speed := math.Hypot(vx, vy)
	sin, cos := math.Sincos(psi)
	thrust := f.ThrustGain * amp * amp
	moment := f.MomentGain * amp * amp * bias

	return dynamo.State{
		vx*cos - vy*sin,
		vx*sin + vy*cos,
		omega,
		(f.SwayMass*vy*omega - f.SurgeDrag*vx*speed + thrust) / f.SurgeMass,
		(-f.SurgeMass*vx*omega - f.SwayDrag*vy*speed) / f.SwayMass,
		((f.SurgeMass-f.SwayMass)*vx*vy - f.YawDrag*omega*math.Abs(omega) + moment) / f.Inertia,
	}
}

func (f *Fish) GetParams() map[string]float64 {
	return map[string]float64{
		"surge_mass":  f.SurgeMass,
		"sway_mass":   f.SwayMass,
		"inertia":     f.Inertia,
		"surge_drag":  f.SurgeDrag,
		"sway_drag":   f.SwayDrag,
		"yaw_drag":    f.YawDrag,
		"thrust_gain": f.ThrustGain,
		"moment_gain": f.MomentGain,
	}
}

func (f *Fish) SetParam(name string, value float64) error {
	var dst *float64
	switch name {
	case "surge_mass":
		dst = &f.SurgeMass
	case "sway_mass":
		dst = &f.SwayMass
	case "inertia":
		dst = &f.Inertia
	case "surge_drag":
		dst = &f.SurgeDrag
	case "sway_drag":
		dst = &f.SwayDrag
	case "yaw_drag":
		dst = &f.YawDrag
	case "thrust_gain":
		dst = &f.ThrustGain
	case "moment_gain":
		dst = &f.MomentGain
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	if (dst == &f.SurgeMass || dst == &f.SwayMass || dst == &f.Inertia) && value <= 0 {
		return fmt.Errorf("%s must be positive, got %g: %w", name, value, dynamo.ErrParameterBounds)
	}
	*dst = value
	return nil
}
