package koopman

import (
	"fmt"
	"iter"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Operator is a fitted Koopman matrix. It is immutable: accessors return
// copies, so one Operator can be shared by any number of goroutines.
type Operator struct {
	k    *mat.Dense
	rank int
}

// NewOperator wraps a known square matrix, for example one loaded from
// storage.
func NewOperator(k mat.Matrix) (*Operator, error) {
	r, c := k.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("operator must be square and non-empty, got %dx%d: %w", r, c, ErrDimensionMismatch)
	}
	return &Operator{k: mat.DenseCopyOf(k), rank: r}, nil
}

func (op *Operator) Dim() int {
	n, _ := op.k.Dims()
	return n
}

// Rank is the numerical rank of the auto-moment matrix the operator was
// estimated from. A wrapped matrix reports full rank.
func (op *Operator) Rank() int { return op.rank }

func (op *Operator) At(i, j int) float64 { return op.k.At(i, j) }

// Matrix returns a copy of K.
func (op *Operator) Matrix() *mat.Dense { return mat.DenseCopyOf(op.k) }

// Rows returns K as a row-major slice of rows.
func (op *Operator) Rows() [][]float64 {
	n := op.Dim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, op.k)
	}
	return rows
}

// Apply returns K·psi.
func (op *Operator) Apply(psi mat.Vector) (*mat.VecDense, error) {
	if err := op.checkVector(psi); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(op.Dim(), nil)
	out.MulVec(op.k, psi)
	return out, nil
}

func (op *Operator) checkVector(psi mat.Vector) error {
	if psi.Len() != op.Dim() {
		return fmt.Errorf("basis vector has %d entries, operator is %dx%d: %w", psi.Len(), op.Dim(), op.Dim(), ErrDimensionMismatch)
	}
	return nil
}

// Steps returns the lazy sequence psi0, K·psi0, ..., Kⁿ·psi0 indexed by
// step. The sequence captures a copy of psi0 and can be ranged over any
// number of times; every yielded vector is freshly allocated.
func (op *Operator) Steps(psi0 mat.Vector, n int) (iter.Seq2[int, mat.Vector], error) {
	if err := op.checkVector(psi0); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("step count must be non-negative, got %d", n)
	}
	start := mat.VecDenseCopyOf(psi0)

	return func(yield func(int, mat.Vector) bool) {
		cur := mat.VecDenseCopyOf(start)
		for i := 0; i <= n; i++ {
			if !yield(i, cur) {
				return
			}
			if i == n {
				return
			}
			next := mat.NewVecDense(op.Dim(), nil)
			next.MulVec(op.k, cur)
			cur = next
		}
	}, nil
}

// Propagate materializes n steps of Steps into a Trajectory of n+1 vectors.
func (op *Operator) Propagate(psi0 mat.Vector, n int) (*Trajectory, error) {
	seq, err := op.Steps(psi0, n)
	if err != nil {
		return nil, err
	}
	dim := op.Dim()
	tr := &Trajectory{dim: dim, data: make([]float64, 0, (n+1)*dim)}
	for _, psi := range seq {
		tr.data = append(tr.data, psi.(*mat.VecDense).RawVector().Data...)
	}
	return tr, nil
}

// Eigenvalues returns the spectrum of K. Eigenvalues of modulus above one
// mark directions in which the linear surrogate grows.
func (op *Operator) Eigenvalues() ([]complex128, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(op.k, mat.EigenNone); !ok {
		return nil, fmt.Errorf("eigen decomposition did not converge")
	}
	return eig.Values(nil), nil
}

// Trajectory is a propagated sequence of basis vectors stored contiguously.
type Trajectory struct {
	dim  int
	data []float64
}

// Len is the number of basis vectors, one more than the step count.
func (tr *Trajectory) Len() int { return len(tr.data) / tr.dim }

func (tr *Trajectory) Dim() int { return tr.dim }

// At returns step i as a vector view over the trajectory's storage.
func (tr *Trajectory) At(i int) *mat.VecDense {
	return mat.NewVecDense(tr.dim, tr.data[i*tr.dim:(i+1)*tr.dim:(i+1)*tr.dim])
}

// State returns the physical state at step i: the first nstates entries of
// the basis vector, as a view sharing the trajectory's storage.
func (tr *Trajectory) State(i, nstates int) dynamo.State {
	off := i * tr.dim
	return dynamo.State(tr.data[off : off+nstates : off+nstates])
}

// States returns the physical-state view of every step.
func (tr *Trajectory) States(nstates int) []dynamo.State {
	out := make([]dynamo.State, tr.Len())
	for i := range out {
		out[i] = tr.State(i, nstates)
	}
	return out
}

// Matrix returns the trajectory as a (Len × Dim) matrix view, one step per
// row.
func (tr *Trajectory) Matrix() *mat.Dense {
	return mat.NewDense(tr.Len(), tr.dim, tr.data)
}
