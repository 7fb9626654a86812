package koopman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

const (
	MinPendulumBasis = 3
	MaxPendulumBasis = 6
)

// PendulumBasis is the dictionary for the single-degree-of-freedom pendulum
// with state [θ, dθ] and control [u]. Its size selects how many dictionary
// terms sit between the state and the control:
//
//	3: [θ, dθ, u]
//	4: [θ, dθ, sin θ, u]
//	5: [θ, dθ, sin θ, (g/l)·cos θ·dθ, u]
//	6: [θ, dθ, sin θ, (g/l)·cos θ·dθ, (g/l)·sin θ + u, u]
//
// Size 6 is deliberately collinear (the fifth term is a combination of the
// third and the last), which exercises the pseudo-inverse.
type PendulumBasis struct {
	size int
	gl   float64
}

func NewPendulumBasis(size int, gravity, length float64) (*PendulumBasis, error) {
	if size < MinPendulumBasis || size > MaxPendulumBasis {
		return nil, fmt.Errorf("pendulum basis size %d outside [%d, %d]", size, MinPendulumBasis, MaxPendulumBasis)
	}
	if length == 0 {
		return nil, fmt.Errorf("pendulum length must be non-zero")
	}
	return &PendulumBasis{size: size, gl: gravity / length}, nil
}

func (b *PendulumBasis) Dim() int        { return b.size }
func (b *PendulumBasis) StateDim() int   { return 2 }
func (b *PendulumBasis) ControlDim() int { return 1 }

func (b *PendulumBasis) Evaluate(x dynamo.State, u dynamo.Control) (*mat.VecDense, error) {
	if err := checkInput(b, x, u); err != nil {
		return nil, err
	}
	theta, dtheta := x[0], x[1]
	sin, cos := math.Sincos(theta)

	psi := make([]float64, b.size)
	psi[0] = theta
	psi[1] = dtheta
	if b.size >= 4 {
		psi[2] = sin
	}
	if b.size >= 5 {
		psi[3] = b.gl * cos * dtheta
	}
	if b.size >= 6 {
		psi[4] = b.gl*sin + u[0]
	}
	psi[b.size-1] = u[0]

	return mat.NewVecDense(b.size, psi), nil
}
