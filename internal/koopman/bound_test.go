package koopman_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/koopsim/internal/koopman"
)

var _ = Describe("BoundCalculator", func() {
	It("evaluates the Lagrange remainder", func() {
		Expect(koopman.Remainder(0, 0.5)).To(BeNumerically("~", 0.5, 1e-15))
		Expect(koopman.Remainder(1, 2)).To(BeNumerically("~", 2, 1e-15))
		Expect(koopman.Remainder(2, 3)).To(BeNumerically("~", 4.5, 1e-14))
	})

	DescribeTable("starts at zero and never decreases",
		func(maxLocal float64, order int) {
			bc, err := koopman.NewBoundCalculator(0.01, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(bc.Bound(maxLocal, order, 0)).To(BeZero())

			prev := 0.0
			for k := 1; k <= 200; k++ {
				b := bc.Bound(maxLocal, order, float64(k)*0.01)
				Expect(b).To(BeNumerically(">=", prev), "step %d", k)
				prev = b
			}
		},
		Entry("order 0", 1e-3, 0),
		Entry("order 1", 0.5, 1),
		Entry("order 3", 2.0, 3),
		Entry("order 61", 1e-12, 61),
	)

	It("recovers the local error after one training step", func() {
		bc, _ := koopman.NewBoundCalculator(0.05, 6)
		Expect(bc.Bound(0.3, 5, 0.05)).To(BeNumerically("~", 0.3, 1e-15))
		Expect(bc.Bound(0.3, 1, 0.1)).To(BeNumerically("~", 0.3*4, 1e-14))
	})

	It("derives component orders from the dictionary size", func() {
		bc, _ := koopman.NewBoundCalculator(0.01, 62)
		Expect(bc.DerivativeOrder(0)).To(Equal(61))
		Expect(bc.DerivativeOrder(5)).To(Equal(56))
	})

	It("prepends an exact zero row to the curve", func() {
		bc, _ := koopman.NewBoundCalculator(0.1, 4)
		curve, err := bc.Curve([]float64{0.2, 0.01}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(curve).To(HaveLen(5))
		Expect(curve[0]).To(Equal([]float64{0, 0}))

		// component 0 has order 3, component 1 order 2
		Expect(curve[1][0]).To(BeNumerically("~", 0.2, 1e-15))
		Expect(curve[2][0]).To(BeNumerically("~", 0.2*16, 1e-13))
		Expect(curve[2][1]).To(BeNumerically("~", 0.01*8, 1e-15))
	})

	It("rejects invalid configurations", func() {
		_, err := koopman.NewBoundCalculator(0, 4)
		Expect(err).To(HaveOccurred())
		_, err = koopman.NewBoundCalculator(0.1, 0)
		Expect(err).To(HaveOccurred())

		bc, _ := koopman.NewBoundCalculator(0.1, 2)
		_, err = bc.Curve([]float64{1, 2, 3}, 4)
		Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
		_, err = bc.Curve([]float64{1}, 0)
		Expect(err).To(HaveOccurred())
	})
})
