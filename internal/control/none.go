package control

import "github.com/san-kum/koopsim/internal/dynamo"

// None applies zero control.
type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(x dynamo.State, t float64) dynamo.Control {
	return make(dynamo.Control, n.dim)
}

// Hold applies the same control at every step.
type Hold struct {
	u dynamo.Control
}

func NewHold(u dynamo.Control) *Hold {
	return &Hold{u: u.Clone()}
}

func (h *Hold) Compute(x dynamo.State, t float64) dynamo.Control {
	return h.u.Clone()
}
