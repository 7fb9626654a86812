package koopman_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

var _ = Describe("Estimate", func() {
	It("identifies a linear system exactly", func() {
		a := mat.NewDense(2, 2, []float64{0.9, 0.1, -0.2, 0.95})
		bu := []float64{0, 0.05}
		rng := rand.New(rand.NewSource(11))

		acc := koopman.NewAccumulator(linearBasis{states: 2, controls: 1}, koopman.WithSnapshots())
		pairs := make([]koopman.Pair, 200)
		for i := range pairs {
			x := mat.NewVecDense(2, []float64{rng.NormFloat64(), rng.NormFloat64()})
			u := rng.NormFloat64()
			var next mat.VecDense
			next.MulVec(a, x)
			pairs[i] = koopman.Pair{
				Now:     dynamo.State(x.RawVector().Data),
				Next:    dynamo.State{next.AtVec(0) + bu[0]*u, next.AtVec(1) + bu[1]*u},
				Control: dynamo.Control{u},
			}
		}
		Expect(acc.AddAll(pairs, 4)).To(Succeed())
		op, err := acc.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Rank()).To(Equal(3))

		want := mat.NewDense(3, 3, []float64{
			0.9, 0.1, 0,
			-0.2, 0.95, 0.05,
			0, 0, 1,
		})
		Expect(mat.EqualApprox(op.Matrix(), want, 1e-9)).To(BeTrue(), "K = %v", mat.Formatted(op.Matrix()))

		By("measuring one-step residuals at round-off level")
		now, next := acc.Snapshots()
		local, err := koopman.MaxLocalErrorsFrom(op, now, next)
		Expect(err).NotTo(HaveOccurred())
		for _, e := range local {
			Expect(e).To(BeNumerically("<", 1e-9))
		}
		direct, err := koopman.MaxLocalErrors(op, linearBasis{states: 2, controls: 1}, pairs)
		Expect(err).NotTo(HaveOccurred())
		Expect(direct).To(Equal(local))
	})

	It("returns a finite operator for a singular auto-moment", func() {
		g := mat.NewDense(3, 3, []float64{
			2, 1, 0,
			1, 3, 0,
			0, 0, 0,
		})
		a := mat.NewDense(3, 3, []float64{
			1, 2, 0,
			0, 1, 0,
			4, 4, 0,
		})
		op, err := koopman.Estimate(a, g)
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Rank()).To(Equal(2))
		expectFinite(op.Matrix())
		for i := 0; i < 3; i++ {
			Expect(op.At(i, 2)).To(BeZero())
		}
	})

	It("absorbs the collinear pendulum dictionary", func() {
		b, _ := koopman.NewPendulumBasis(6, 9.81, 1)
		acc := koopman.NewAccumulator(b)
		Expect(acc.AddAll(randomPendulumPairs(300, 5), 2)).To(Succeed())
		op, err := acc.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Rank()).To(BeNumerically("<", 6))
		expectFinite(op.Matrix())
	})

	It("absorbs the duplicated fish terms", func() {
		b := koopman.NewFishBasis()
		rng := rand.New(rand.NewSource(2))
		acc := koopman.NewAccumulator(b)
		for i := 0; i < 400; i++ {
			x := dynamo.State{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64() * 0.3, rng.NormFloat64() * 0.1, rng.NormFloat64()}
			y := x.Clone()
			y[0] += 0.01 * x[3]
			Expect(acc.Add(koopman.Pair{Now: x, Next: y, Control: dynamo.Control{rng.Float64(), rng.Float64() - 0.5}})).To(Succeed())
		}
		op, err := acc.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Rank()).To(BeNumerically("<=", koopman.FishBasisDim-4))
		expectFinite(op.Matrix())
	})

	It("rejects mismatched moments", func() {
		_, err := koopman.Estimate(mat.NewDense(3, 3, nil), mat.NewDense(2, 2, nil))
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
		_, err = koopman.Estimate(mat.NewDense(2, 3, nil), mat.NewDense(2, 2, nil))
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
	})

	It("maps an all-zero auto-moment to the zero operator", func() {
		op, err := koopman.Estimate(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 2, nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(op.Rank()).To(BeZero())
		Expect(mat.Equal(op.Matrix(), mat.NewDense(2, 2, nil))).To(BeTrue())
	})

	It("inverts a well-conditioned matrix", func() {
		m := mat.NewDense(2, 2, []float64{4, 1, 2, 3})
		inv, rank, err := koopman.Pinv(m, koopman.DefaultRcond)
		Expect(err).NotTo(HaveOccurred())
		Expect(rank).To(Equal(2))
		var id mat.Dense
		id.Mul(m, inv)
		Expect(mat.EqualApprox(&id, mat.NewDiagDense(2, []float64{1, 1}), 1e-12)).To(BeTrue())
	})
})
