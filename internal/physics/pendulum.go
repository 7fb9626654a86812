package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Pendulum is a rigid pendulum whose angle is measured from the upright
// position, so gravity pushes it away from theta = 0:
//
//	theta'' = g/l * sin(theta) - damping*omega + torque/(m*l^2)
//
// With the default parameters (m = l = 1, no damping) the torque enters as a
// pure angular acceleration.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.0,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int {
	return 2
}

func (p *Pendulum) ControlDim() int {
	return 1
}

func (p *Pendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}
	alpha := p.Gravity/p.Length*math.Sin(theta) - p.Damping*omega + torque/(p.Mass*p.Length*p.Length)

	return dynamo.State{omega, alpha}
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass", "length":
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %g: %w", name, value, dynamo.ErrParameterBounds)
		}
		if name == "mass" {
			p.Mass = value
		} else {
			p.Length = value
		}
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
