package metrics

import (
	"github.com/san-kum/koopsim/internal/dynamo"
)

// InputCost averages the LQR input penalty uᵀRu for a diagonal R. Inputs
// without a weight count with weight one.
type InputCost struct {
	name    string
	weights []float64
	sum     float64
	samples int
}

func NewInputCost(weights []float64) *InputCost {
	return &InputCost{
		name:    "input_cost",
		weights: append([]float64(nil), weights...),
	}
}

func (c *InputCost) Name() string {
	return c.name
}

func (c *InputCost) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for i, val := range u {
		w := 1.0
		if i < len(c.weights) {
			w = c.weights[i]
		}
		c.sum += w * val * val
	}
	c.samples++
}

func (c *InputCost) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *InputCost) Reset() {
	c.sum = 0
	c.samples = 0
}
