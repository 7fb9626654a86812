package control

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

const (
	// DefaultRiccatiIterations bounds the doubling steps. Step k covers 2^k
	// steps of the plain Riccati recursion.
	DefaultRiccatiIterations = 64
	riccatiTolerance         = 1e-12
)

var ErrNotConverged = errors.New("control: riccati iteration did not converge")

// DLQR returns the discrete-time LQR gain K for x[k+1] = A x[k] + B u[k]
// with cost Σ xᵀQx + uᵀRu, so that u = −K x, together with the stabilizing
// solution P of
//
//	P = Q + AᵀPA − AᵀPB (R + BᵀPB)⁻¹ BᵀPA
//
// P is found with the structure-preserving doubling algorithm. With
// G = BR⁻¹Bᵀ and W = I + G·H each step is
//
//	A ← A W⁻¹ A
//	G ← G + A W⁻¹ G Aᵀ
//	H ← H + Aᵀ H W⁻¹ A
//
// starting from H = Q, and H converges quadratically to P. At most maxIter
// steps are taken (DefaultRiccatiIterations when maxIter <= 0).
func DLQR(a, b, q, r mat.Matrix, maxIter int) (k, p *mat.Dense, err error) {
	n, nc := a.Dims()
	br, m := b.Dims()
	qr, qc := q.Dims()
	rr, rc := r.Dims()
	if n != nc || br != n || qr != n || qc != n || rr != m || rc != m {
		return nil, nil, fmt.Errorf("dlqr: A %dx%d, B %dx%d, Q %dx%d, R %dx%d: %w", n, nc, br, m, qr, qc, rr, rc, dynamo.ErrDimensionMismatch)
	}
	if maxIter <= 0 {
		maxIter = DefaultRiccatiIterations
	}

	// G = B R⁻¹ Bᵀ
	var rbt, g mat.Dense
	if err := rbt.Solve(r, b.T()); err != nil {
		return nil, nil, fmt.Errorf("dlqr: R: %w", err)
	}
	g.Mul(b, &rbt)
	symmetrize(&g)

	ak := mat.DenseCopyOf(a)
	h := mat.DenseCopyOf(q)
	eye := identity(n)
	var (
		w, wa, wga, ga mat.Dense
		nextA, nextG   mat.Dense
		hwa, nextH     mat.Dense
	)
	for it := 0; it < maxIter; it++ {
		w.Mul(&g, h)
		w.Add(&w, eye)

		// W⁻¹A and W⁻¹GAᵀ
		if err := wa.Solve(&w, ak); err != nil {
			return nil, nil, fmt.Errorf("dlqr: %w", err)
		}
		ga.Mul(&g, ak.T())
		if err := wga.Solve(&w, &ga); err != nil {
			return nil, nil, fmt.Errorf("dlqr: %w", err)
		}

		nextA.Mul(ak, &wa)

		nextG.Mul(ak, &wga)
		nextG.Add(&nextG, &g)
		symmetrize(&nextG)

		hwa.Mul(h, &wa)
		nextH.Mul(ak.T(), &hwa)
		nextH.Add(&nextH, h)
		symmetrize(&nextH)

		if !finite(&nextH) {
			return nil, nil, ErrNotConverged
		}
		delta := maxAbsDiff(&nextH, h)
		ak.Copy(&nextA)
		g.Copy(&nextG)
		h.Copy(&nextH)
		if delta <= riccatiTolerance*(1+mat.Norm(h, math.Inf(1))) {
			gain, err := lqrGain(a, b, r, h)
			if err != nil {
				return nil, nil, err
			}
			return gain, h, nil
		}
	}
	return nil, nil, ErrNotConverged
}

// lqrGain is (R + BᵀPB)⁻¹ BᵀPA.
func lqrGain(a, b, r mat.Matrix, p *mat.Dense) (*mat.Dense, error) {
	var pa, pb, s, bpa, gain mat.Dense
	pa.Mul(p, a)
	pb.Mul(p, b)
	s.Mul(b.T(), &pb)
	s.Add(&s, r)
	bpa.Mul(b.T(), &pa)
	if err := gain.Solve(&s, &bpa); err != nil {
		return nil, fmt.Errorf("dlqr: %w", err)
	}
	return &gain, nil
}

func identity(n int) *mat.Dense {
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}

// symmetrize replaces m with (m + mᵀ)/2.
func symmetrize(m *mat.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

func finite(m mat.Matrix) bool {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func maxAbsDiff(a, b mat.Matrix) float64 {
	rows, cols := a.Dims()
	var d float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d = math.Max(d, math.Abs(a.At(i, j)-b.At(i, j)))
		}
	}
	return d
}

// ClosedLoop returns A − BK.
func ClosedLoop(a, b, k mat.Matrix) *mat.Dense {
	var bk, cl mat.Dense
	bk.Mul(b, k)
	cl.Sub(a, &bk)
	return &cl
}
