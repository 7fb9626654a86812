package koopman_test

import (
	"math/cmplx"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/koopman"
)

var _ = Describe("Operator", func() {
	It("rolls a freely rotating system forward", func() {
		op, err := koopman.NewOperator(mat.NewDense(2, 2, []float64{1, 0.02, 0, 1}))
		Expect(err).NotTo(HaveOccurred())

		tr, err := op.Propagate(mat.NewVecDense(2, []float64{0, 1}), 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Len()).To(Equal(4))

		want := [][]float64{{0, 1}, {0.02, 1}, {0.04, 1}}
		for i, w := range want {
			Expect(tr.At(i).AtVec(0)).To(BeNumerically("~", w[0], 1e-15))
			Expect(tr.At(i).AtVec(1)).To(BeNumerically("~", w[1], 1e-15))
		}
	})

	It("matches matrix powers and repeats bit for bit", func() {
		k := mat.NewDense(3, 3, []float64{
			0.9, 0.2, -0.1,
			0.05, 1.01, 0.3,
			0, -0.4, 0.8,
		})
		op, err := koopman.NewOperator(k)
		Expect(err).NotTo(HaveOccurred())
		psi0 := mat.NewVecDense(3, []float64{1, -2, 0.5})

		seq, err := op.Steps(psi0, 12)
		Expect(err).NotTo(HaveOccurred())

		var first []mat.Vector
		for i, v := range seq {
			var p mat.Dense
			p.Pow(k, i)
			var want mat.VecDense
			want.MulVec(&p, psi0)
			Expect(mat.EqualApprox(v, &want, 1e-12)).To(BeTrue(), "step %d", i)
			first = append(first, v)
		}
		Expect(first).To(HaveLen(13))

		By("ranging over the same sequence again")
		n := 0
		for i, v := range seq {
			Expect(mat.Equal(v, first[i])).To(BeTrue())
			n++
		}
		Expect(n).To(Equal(13))

		tr, err := op.Propagate(psi0, 12)
		Expect(err).NotTo(HaveOccurred())
		for i := range first {
			Expect(mat.Equal(tr.At(i), first[i])).To(BeTrue())
		}
	})

	It("stops early when the consumer breaks", func() {
		op, _ := koopman.NewOperator(mat.NewDense(1, 1, []float64{2}))
		seq, err := op.Steps(mat.NewVecDense(1, []float64{1}), 100)
		Expect(err).NotTo(HaveOccurred())
		last := 0.0
		for i, v := range seq {
			last = v.AtVec(0)
			if i == 3 {
				break
			}
		}
		Expect(last).To(Equal(8.0))
	})

	It("is not affected by later changes to its inputs", func() {
		k := mat.NewDense(1, 1, []float64{3})
		op, _ := koopman.NewOperator(k)
		psi0 := mat.NewVecDense(1, []float64{1})
		seq, _ := op.Steps(psi0, 1)

		k.Set(0, 0, 100)
		psi0.SetVec(0, 50)
		got := []float64{}
		for _, v := range seq {
			got = append(got, v.AtVec(0))
		}
		Expect(got).To(Equal([]float64{1, 3}))

		m := op.Matrix()
		m.Set(0, 0, -1)
		Expect(op.At(0, 0)).To(Equal(3.0))
	})

	It("exposes physical states as views of the trajectory", func() {
		op, _ := koopman.NewOperator(mat.NewDense(3, 3, []float64{1, 0.1, 0, 0, 1, 0.1, 0, 0, 1}))
		tr, err := op.Propagate(mat.NewVecDense(3, []float64{0, 0, 1}), 4)
		Expect(err).NotTo(HaveOccurred())

		s := tr.State(2, 2)
		Expect(s).To(HaveLen(2))
		Expect(cap(s)).To(Equal(2))
		Expect(s[0]).To(BeNumerically("~", 0.01, 1e-15))
		Expect(s[1]).To(BeNumerically("~", 0.2, 1e-15))

		tr.Matrix().Set(2, 0, 42)
		Expect(s[0]).To(Equal(42.0))
		Expect(tr.States(2)).To(HaveLen(5))
	})

	It("rejects vectors of the wrong size", func() {
		op, _ := koopman.NewOperator(mat.NewDense(2, 2, nil))
		_, err := op.Steps(mat.NewVecDense(3, nil), 2)
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
		_, err = op.Propagate(mat.NewVecDense(1, nil), 2)
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
		_, err = op.Apply(mat.NewVecDense(4, nil))
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
		_, err = koopman.NewOperator(mat.NewDense(2, 3, nil))
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
	})

	It("reports the spectrum", func() {
		op, _ := koopman.NewOperator(mat.NewDense(2, 2, []float64{0.5, 1, 0, 2}))
		eig, err := op.Eigenvalues()
		Expect(err).NotTo(HaveOccurred())
		Expect(eig).To(HaveLen(2))
		sort.Slice(eig, func(i, j int) bool { return cmplx.Abs(eig[i]) < cmplx.Abs(eig[j]) })
		Expect(real(eig[0])).To(BeNumerically("~", 0.5, 1e-12))
		Expect(real(eig[1])).To(BeNumerically("~", 2, 1e-12))
		Expect(imag(eig[1])).To(BeNumerically("~", 0, 1e-12))
	})
})
