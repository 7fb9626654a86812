package control

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

func TestNone(t *testing.T) {
	ctrl := NewNone(2)
	u := ctrl.Compute(dynamo.State{1.0, 2.0}, 0.0)

	if len(u) != 2 {
		t.Errorf("expected 2 controls, got %d", len(u))
	}
	for i, v := range u {
		if v != 0 {
			t.Errorf("control[%d] should be 0, got %f", i, v)
		}
	}
}

func TestHold(t *testing.T) {
	in := dynamo.Control{0.5, -1}
	ctrl := NewHold(in)
	in[0] = 9

	for _, tt := range []float64{0, 1, 2} {
		u := ctrl.Compute(dynamo.State{tt}, tt)
		if u[0] != 0.5 || u[1] != -1 {
			t.Errorf("t=%v: expected [0.5 -1], got %v", tt, u)
		}
		u[0] = 7
	}
}

func TestLQR(t *testing.T) {
	ctrl := NewLQR(mat.NewDense(1, 2, []float64{1.0, 2.0}), dynamo.State{0.0, 0.0})

	u := ctrl.Compute(dynamo.State{0.0, 0.0}, 0.0)
	if u[0] != 0 {
		t.Errorf("expected zero control at target, got %f", u[0])
	}

	u = ctrl.Compute(dynamo.State{1.0, 0.5}, 0.0)
	if u[0] != -2 {
		t.Errorf("expected -2, got %f", u[0])
	}
}

func TestDLQRScalar(t *testing.T) {
	one := mat.NewDense(1, 1, []float64{1})
	k, p, err := DLQR(one, one, one, one, 0)
	if err != nil {
		t.Fatalf("dlqr failed: %v", err)
	}

	phi := (1 + math.Sqrt(5)) / 2
	if math.Abs(p.At(0, 0)-phi) > 1e-8 {
		t.Errorf("expected P = %f, got %f", phi, p.At(0, 0))
	}
	if math.Abs(k.At(0, 0)-phi/(1+phi)) > 1e-8 {
		t.Errorf("expected K = %f, got %f", phi/(1+phi), k.At(0, 0))
	}
}

func TestDLQRStabilizes(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0.1, 0, 1})
	b := mat.NewDense(2, 1, []float64{0.005, 0.1})
	q := mat.NewDiagDense(2, []float64{1, 1})
	r := mat.NewDense(1, 1, []float64{1})

	k, _, err := DLQR(a, b, q, r, 0)
	if err != nil {
		t.Fatalf("dlqr failed: %v", err)
	}

	var eig mat.Eigen
	if !eig.Factorize(ClosedLoop(a, b, k), mat.EigenNone) {
		t.Fatal("eigen decomposition failed")
	}
	for _, l := range eig.Values(nil) {
		if cmplx.Abs(l) >= 1 {
			t.Errorf("closed-loop eigenvalue %v outside the unit circle", l)
		}
	}
}

func TestDLQRDimensions(t *testing.T) {
	a := mat.NewDense(2, 2, nil)
	b := mat.NewDense(3, 1, nil)
	_, _, err := DLQR(a, b, mat.NewDense(2, 2, nil), mat.NewDense(1, 1, nil), 0)
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestDLQRNotConverged(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{2})
	b := mat.NewDense(1, 1, []float64{1})
	one := mat.NewDense(1, 1, []float64{1})
	_, _, err := DLQR(a, b, one, one, 2)
	if !errors.Is(err, ErrNotConverged) {
		t.Errorf("expected ErrNotConverged after two iterations, got %v", err)
	}
}

func TestLifted(t *testing.T) {
	b, err := koopman.NewPendulumBasis(4, 9.81, 1)
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := NewLifted(b, mat.NewDense(1, 3, []float64{1, 2, 3}), 3)
	if err != nil {
		t.Fatal(err)
	}

	x := dynamo.State{0.4, -0.2}
	u := ctrl.Compute(x, 0)
	want := -(0.4 + 2*(-0.2) + 3*math.Sin(0.4))
	if len(u) != 1 || math.Abs(u[0]-want) > 1e-15 {
		t.Errorf("expected [%f], got %v", want, u)
	}
}

func TestLiftedRejectsGainShape(t *testing.T) {
	b, err := koopman.NewPendulumBasis(4, 9.81, 1)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		gain *mat.Dense
		n    int
	}{
		{"columns differ from n", mat.NewDense(1, 2, nil), 3},
		{"two inputs", mat.NewDense(2, 3, nil), 3},
		{"n beyond basis", mat.NewDense(1, 5, nil), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLifted(b, tt.gain, tt.n); !errors.Is(err, dynamo.ErrDimensionMismatch) {
				t.Errorf("expected dimension mismatch, got %v", err)
			}
		})
	}
}

// Eigenvalues next to the unit circle with weak actuation. The plain
// Riccati recursion needs on the order of 10^5 steps here.
func TestDLQRSlowModes(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		1.0082, 0.01, 0,
		0, 1.0007, 0.01,
		0, 0, 0.987,
	})
	b := mat.NewDense(3, 1, []float64{0.0005, 0.001, 0.002})
	q := mat.NewDiagDense(3, []float64{3, 1, 0.1})
	r := mat.NewDense(1, 1, []float64{0.1})

	k, p, err := DLQR(a, b, q, r, 0)
	if err != nil {
		t.Fatalf("dlqr failed: %v", err)
	}

	// residual of P = Q + AᵀPA − AᵀPB·K
	var pa, apa, pb, apb, corr, res mat.Dense
	pa.Mul(p, a)
	apa.Mul(a.T(), &pa)
	pb.Mul(p, b)
	apb.Mul(a.T(), &pb)
	corr.Mul(&apb, k)
	res.Add(q, &apa)
	res.Sub(&res, &corr)
	res.Sub(&res, p)
	if d := mat.Norm(&res, math.Inf(1)); d > 1e-8*mat.Norm(p, math.Inf(1)) {
		t.Errorf("riccati residual %g too large for |P| = %g", d, mat.Norm(p, math.Inf(1)))
	}

	var eig mat.Eigen
	if !eig.Factorize(ClosedLoop(a, b, k), mat.EigenNone) {
		t.Fatal("eigen decomposition failed")
	}
	for _, l := range eig.Values(nil) {
		if cmplx.Abs(l) >= 1 {
			t.Errorf("closed-loop eigenvalue %v outside the unit circle", l)
		}
	}
}
