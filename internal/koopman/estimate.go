package koopman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultRcond is the relative singular-value cutoff of the pseudo-inverse:
// singular values below DefaultRcond·σmax are treated as zero.
const DefaultRcond = 1e6 * 2.220446049250313e-16

type estimateConfig struct {
	rcond float64
}

type EstimateOption func(*estimateConfig)

// WithRcond overrides [DefaultRcond]. Non-positive values are ignored.
func WithRcond(rcond float64) EstimateOption {
	return func(c *estimateConfig) {
		if rcond > 0 {
			c.rcond = rcond
		}
	}
}

// Estimate returns the least-squares operator K = A·G⁺. G need not be
// invertible: directions it does not span are mapped to zero, which is the
// minimum-norm solution.
func Estimate(a, g mat.Matrix, opts ...EstimateOption) (*Operator, error) {
	cfg := estimateConfig{rcond: DefaultRcond}
	for _, opt := range opts {
		opt(&cfg)
	}

	ar, ac := a.Dims()
	gr, gc := g.Dims()
	if ar != ac || gr != gc || ar != gr {
		return nil, fmt.Errorf("estimate: A is %dx%d and G is %dx%d: %w", ar, ac, gr, gc, ErrDimensionMismatch)
	}

	gInv, rank, err := Pinv(g, cfg.rcond)
	if err != nil {
		return nil, err
	}

	k := mat.NewDense(ar, ar, nil)
	k.Mul(a, gInv)
	return &Operator{k: k, rank: rank}, nil
}

// Pinv returns the Moore-Penrose pseudo-inverse of m computed from its thin
// SVD, along with the numerical rank used.
func Pinv(m mat.Matrix, rcond float64) (*mat.Dense, int, error) {
	r, c := m.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, 0, ErrFactorization
	}
	sigma := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rank := 0
	if len(sigma) > 0 {
		cutoff := rcond * sigma[0]
		for _, s := range sigma {
			if s > cutoff && s > 0 {
				rank++
			}
		}
	}

	inv := mat.NewDense(c, r, nil)
	if rank == 0 {
		return inv, 0, nil
	}

	// inv = V[:, :rank] · diag(1/σ) · U[:, :rank]ᵀ
	vs := mat.DenseCopyOf(v.Slice(0, c, 0, rank))
	for j := 0; j < rank; j++ {
		col := vs.ColView(j).(*mat.VecDense)
		col.ScaleVec(1/sigma[j], col)
	}
	inv.Mul(vs, u.Slice(0, r, 0, rank).T())
	return inv, rank, nil
}
