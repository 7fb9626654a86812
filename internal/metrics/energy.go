package metrics

import (
	"math"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Energy averages the magnitude of the mechanical energy of an inverted
// pendulum [θ, ω] measured from the upright equilibrium, where it is zero.
// A regulator that brings the pendulum to rest upright drives it to zero.
type Energy struct {
	name    string
	mass    float64
	length  float64
	gravity float64
	samples int
	total   float64
}

func NewEnergy(mass, length, gravity float64) *Energy {
	return &Energy{
		name:    "energy",
		mass:    mass,
		length:  length,
		gravity: gravity,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 2 {
		return
	}
	e.total += math.Abs(e.At(x))
	e.samples++
}

// At is the energy of a single state.
func (e *Energy) At(x dynamo.State) float64 {
	theta, omega := x[0], x[1]
	ke := 0.5 * e.mass * e.length * e.length * omega * omega
	pe := e.mass * e.gravity * e.length * (math.Cos(theta) - 1)
	return ke + pe
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *Energy) Reset() {
	e.total = 0
	e.samples = 0
}
