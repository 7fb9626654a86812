package control

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// LQR is full-state feedback u = −K(x − target).
type LQR struct {
	K      *mat.Dense
	Target dynamo.State
}

func NewLQR(k *mat.Dense, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	rows, cols := l.K.Dims()
	u := make(dynamo.Control, rows)
	for i := range u {
		for j := 0; j < cols && j < len(x); j++ {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			u[i] -= l.K.At(i, j) * (x[j] - target)
		}
	}
	return u
}
