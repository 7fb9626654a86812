package koopman_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

var _ = Describe("Accumulator", func() {
	toy := linearBasis{states: 1, controls: 1}
	toyPairs := []koopman.Pair{
		{Now: dynamo.State{1}, Next: dynamo.State{2}, Control: dynamo.Control{3}},
		{Now: dynamo.State{-1}, Next: dynamo.State{0.5}, Control: dynamo.Control{2}},
	}

	It("sums the outer products of hand-computed basis vectors", func() {
		acc := koopman.NewAccumulator(toy)
		for _, p := range toyPairs {
			Expect(acc.Add(p)).To(Succeed())
		}
		a, g := acc.Moments()

		// ψ(now) = [1 3], [-1 2]; ψ(next) = [2 3], [0.5 2]
		Expect(mat.Equal(a, mat.NewDense(2, 2, []float64{1.5, 7, 1, 13}))).To(BeTrue(), "A = %v", mat.Formatted(a))
		Expect(mat.Equal(g, mat.NewDense(2, 2, []float64{2, 1, 1, 13}))).To(BeTrue(), "G = %v", mat.Formatted(g))
		Expect(acc.Count()).To(Equal(2))
	})

	It("matches the sum of per-pair increments", func() {
		sumA := mat.NewDense(2, 2, nil)
		sumG := mat.NewDense(2, 2, nil)
		for _, p := range toyPairs {
			a, g, err := koopman.Increment(toy, p)
			Expect(err).NotTo(HaveOccurred())
			sumA.Add(sumA, a)
			sumG.Add(sumG, g)
		}
		acc := koopman.NewAccumulator(toy)
		Expect(acc.AddAll(toyPairs, 1)).To(Succeed())
		a, g := acc.Moments()
		Expect(mat.Equal(a, sumA)).To(BeTrue())
		Expect(mat.Equal(g, sumG)).To(BeTrue())
	})

	It("keeps G symmetric for serial and parallel accumulation", func() {
		b, err := koopman.NewPendulumBasis(5, 9.81, 1)
		Expect(err).NotTo(HaveOccurred())
		pairs := randomPendulumPairs(1000, 7)

		serial := koopman.NewAccumulator(b)
		for _, p := range pairs {
			Expect(serial.Add(p)).To(Succeed())
		}
		parallel := koopman.NewAccumulator(b)
		Expect(parallel.AddAll(pairs, 4)).To(Succeed())

		sa, sg := serial.Moments()
		pa, pg := parallel.Moments()
		for i := 0; i < b.Dim(); i++ {
			for j := 0; j < b.Dim(); j++ {
				Expect(sg.At(i, j)).To(Equal(sg.At(j, i)))
				Expect(pg.At(i, j)).To(Equal(pg.At(j, i)))
			}
		}
		Expect(mat.EqualApprox(sa, pa, 1e-9)).To(BeTrue())
		Expect(mat.EqualApprox(sg, pg, 1e-9)).To(BeTrue())

		_, inc, err := koopman.Increment(b, pairs[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(mat.Equal(inc, inc.T())).To(BeTrue())
	})

	It("reduces parallel partials reproducibly", func() {
		b, _ := koopman.NewPendulumBasis(4, 9.81, 1)
		pairs := randomPendulumPairs(700, 3)

		first := koopman.NewAccumulator(b)
		Expect(first.AddAll(pairs, 3)).To(Succeed())
		second := koopman.NewAccumulator(b)
		Expect(second.AddAll(pairs, 3)).To(Succeed())

		a1, g1 := first.Moments()
		a2, g2 := second.Moments()
		Expect(mat.Equal(a1, a2)).To(BeTrue())
		Expect(mat.Equal(g1, g2)).To(BeTrue())
	})

	It("walks from empty to finalized", func() {
		acc := koopman.NewAccumulator(toy)
		Expect(acc.State()).To(Equal("empty"))
		_, err := acc.Finalize()
		Expect(err).To(MatchError(koopman.ErrEmpty))

		Expect(acc.Add(toyPairs[0])).To(Succeed())
		Expect(acc.State()).To(Equal("accumulating"))

		_, err = acc.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(acc.State()).To(Equal("finalized"))

		Expect(acc.Add(toyPairs[1])).To(MatchError(koopman.ErrFinalized))
		Expect(acc.AddAll(toyPairs, 2)).To(MatchError(koopman.ErrFinalized))
		_, err = acc.Finalize()
		Expect(err).To(MatchError(koopman.ErrFinalized))
		a, g := acc.Moments()
		Expect(a).To(BeNil())
		Expect(g).To(BeNil())
	})

	It("leaves the sums untouched when a batch contains a bad pair", func() {
		acc := koopman.NewAccumulator(toy)
		Expect(acc.Add(toyPairs[0])).To(Succeed())
		before, _ := acc.Moments()

		bad := append([]koopman.Pair{toyPairs[1]}, koopman.Pair{Now: dynamo.State{1, 2}, Next: dynamo.State{1}, Control: dynamo.Control{0}})
		Expect(acc.AddAll(bad, 2)).To(MatchError(koopman.ErrDimensionMismatch))

		after, _ := acc.Moments()
		Expect(mat.Equal(before, after)).To(BeTrue())
		Expect(acc.Count()).To(Equal(1))
	})

	It("records basis snapshots in pair order", func() {
		acc := koopman.NewAccumulator(toy, koopman.WithSnapshots())
		Expect(acc.AddAll(toyPairs, 2)).To(Succeed())
		now, next := acc.Snapshots()
		Expect(now).To(HaveLen(2))
		Expect(next).To(HaveLen(2))
		Expect(now[1].RawVector().Data).To(Equal([]float64{-1, 2}))
		Expect(next[0].RawVector().Data).To(Equal([]float64{2, 3}))
	})
})
