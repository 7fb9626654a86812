package koopman_test

import (
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

func TestKoopman(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "koopman suite")
}

// linearBasis lifts (x, u) to [x; u], so a linear system x' = Ax + Bu with
// held u has the exact operator [[A, B], [0, I]].
type linearBasis struct {
	states, controls int
}

func (b linearBasis) Dim() int        { return b.states + b.controls }
func (b linearBasis) StateDim() int   { return b.states }
func (b linearBasis) ControlDim() int { return b.controls }

func (b linearBasis) Evaluate(x dynamo.State, u dynamo.Control) (*mat.VecDense, error) {
	if len(x) != b.states || len(u) != b.controls {
		return nil, koopman.ErrDimensionMismatch
	}
	v := make([]float64, 0, b.Dim())
	v = append(v, x...)
	v = append(v, u...)
	return mat.NewVecDense(b.Dim(), v), nil
}

// randomPendulumPairs draws pairs whose next state is an arbitrary
// perturbation; the moments do not care whether the pairs are physical.
func randomPendulumPairs(n int, seed int64) []koopman.Pair {
	rng := rand.New(rand.NewSource(seed))
	pairs := make([]koopman.Pair, n)
	for i := range pairs {
		now := dynamo.State{rng.Float64()*2 - 1, rng.Float64()*4 - 2}
		next := dynamo.State{now[0] + 0.01*now[1], now[1] + 0.1*rng.NormFloat64()}
		pairs[i] = koopman.Pair{Now: now, Next: next, Control: dynamo.Control{rng.Float64() - 0.5}}
	}
	return pairs
}

func expectFinite(m mat.Matrix) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ExpectWithOffset(1, m.At(i, j)).To(BeNumerically("<", 1e300), "entry (%d,%d)", i, j)
			ExpectWithOffset(1, m.At(i, j)).To(BeNumerically(">", -1e300), "entry (%d,%d)", i, j)
		}
	}
}
