package koopman_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

var _ = Describe("Basis", func() {
	Context("pendulum dictionary", func() {
		DescribeTable("keeps the state first and the control last",
			func(size int, theta, dtheta, u float64) {
				b, err := koopman.NewPendulumBasis(size, 9.81, 1)
				Expect(err).NotTo(HaveOccurred())

				psi, err := b.Evaluate(dynamo.State{theta, dtheta}, dynamo.Control{u})
				Expect(err).NotTo(HaveOccurred())
				Expect(psi.Len()).To(Equal(size))
				Expect(psi.AtVec(0)).To(Equal(theta))
				Expect(psi.AtVec(1)).To(Equal(dtheta))
				Expect(psi.AtVec(size - 1)).To(Equal(u))
			},
			Entry("size 3", 3, 0.3, -1.2, 0.5),
			Entry("size 4", 4, -2.9, 0.0, -0.25),
			Entry("size 5", 5, 1.0, 3.0, 0.0),
			Entry("size 6", 6, math.Pi, -0.7, 1.5),
		)

		It("evaluates the dictionary terms", func() {
			b, err := koopman.NewPendulumBasis(6, 9.81, 2)
			Expect(err).NotTo(HaveOccurred())

			psi, err := b.Evaluate(dynamo.State{0.5, 2}, dynamo.Control{0.1})
			Expect(err).NotTo(HaveOccurred())
			gl := 9.81 / 2
			Expect(psi.AtVec(2)).To(BeNumerically("~", math.Sin(0.5), 1e-15))
			Expect(psi.AtVec(3)).To(BeNumerically("~", gl*math.Cos(0.5)*2, 1e-15))
			Expect(psi.AtVec(4)).To(BeNumerically("~", gl*math.Sin(0.5)+0.1, 1e-15))
		})

		It("rejects sizes outside the supported range", func() {
			_, err := koopman.NewPendulumBasis(2, 9.81, 1)
			Expect(err).To(HaveOccurred())
			_, err = koopman.NewPendulumBasis(7, 9.81, 1)
			Expect(err).To(HaveOccurred())
		})

		It("rejects inputs of the wrong length", func() {
			b, _ := koopman.NewPendulumBasis(4, 9.81, 1)
			_, err := b.Evaluate(dynamo.State{1, 2, 3}, dynamo.Control{0})
			Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
			_, err = b.Evaluate(dynamo.State{1, 2}, dynamo.Control{})
			Expect(err).To(MatchError(koopman.ErrDimensionMismatch))
		})
	})

	Context("fish dictionary", func() {
		b := koopman.NewFishBasis()

		It("keeps the state first and the control last", func() {
			x := dynamo.State{0.4, -1.1, 0.3, 0.2, -0.05, 0.7}
			u := dynamo.Control{0.9, -0.3}
			psi, err := b.Evaluate(x, u)
			Expect(err).NotTo(HaveOccurred())
			Expect(psi.Len()).To(Equal(koopman.FishBasisDim))
			for i, v := range x {
				Expect(psi.AtVec(i)).To(Equal(v))
			}
			Expect(psi.AtVec(60)).To(Equal(u[0]))
			Expect(psi.AtVec(61)).To(Equal(u[1]))
		})

		It("zeroes every term that divides by the speed when the fish is at rest", func() {
			x := dynamo.State{1, 2, 0.5, 0, 0, -1.5}
			psi, err := b.Evaluate(x, dynamo.Control{0.4, 0.2})
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < psi.Len(); i++ {
				v := psi.AtVec(i)
				Expect(math.IsNaN(v) || math.IsInf(v, 0)).To(BeFalse(), "entry %d is %v", i, v)
			}
			for _, i := range []int{31, 35, 36, 37, 38, 39, 40, 43, 45, 51, 52, 53, 54, 55, 56, 57} {
				Expect(psi.AtVec(i)).To(BeZero(), "entry %d", i)
			}

			By("leaving yaw-rate terms untouched")
			Expect(psi.AtVec(13)).To(Equal(-1.5 * 1.5))
			Expect(psi.AtVec(47)).To(Equal(-1.5 * -1.5 * -1.5))
		})

		It("takes the limiting drift angle when only surge is zero", func() {
			psi, err := b.Evaluate(dynamo.State{0, 0, 0, 0, 2, 0}, dynamo.Control{0, 0})
			Expect(err).NotTo(HaveOccurred())
			// vy³·atan(vy/vx) with atan(+Inf) = π/2
			Expect(psi.AtVec(57)).To(BeNumerically("~", 8*math.Pi/2, 1e-12))
		})

		DescribeTable("stays finite for vanishing but nonzero velocities",
			func(vx, vy float64) {
				psi, err := b.Evaluate(dynamo.State{0, 0, 0, vx, vy, 1}, dynamo.Control{0, 0})
				Expect(err).NotTo(HaveOccurred())
				for i := 0; i < psi.Len(); i++ {
					v := psi.AtVec(i)
					Expect(math.IsNaN(v) || math.IsInf(v, 0)).To(BeFalse(), "entry %d is %v", i, v)
				}
			},
			Entry("tiny surge", 1e-170, 0.0),
			Entry("tiny surge and sway", 1e-170, 1e-170),
			Entry("subnormal sway", 0.0, 1e-320),
			Entry("tiny surge, subnormal sway", 1e-200, -5e-324),
		)

		It("divides by the speed for ordinary velocities", func() {
			vx, vy, om := 0.3, -0.4, 0.9
			psi, err := b.Evaluate(dynamo.State{0, 0, 0, vx, vy, om}, dynamo.Control{0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(psi.AtVec(37)).To(BeNumerically("~", vx*vy*vy*om/0.5, 1e-15))
			Expect(psi.AtVec(52)).To(BeNumerically("~", vx*vx*vy*om/0.5, 1e-15))
		})

		It("repeats the duplicated cubic terms", func() {
			psi, err := b.Evaluate(dynamo.State{0, 0, 0, 0.3, -0.2, 0.9}, dynamo.Control{0, 0})
			Expect(err).NotTo(HaveOccurred())
			for _, pair := range [][2]int{{28, 49}, {26, 50}, {24, 58}, {27, 59}} {
				Expect(psi.AtVec(pair[0])).To(Equal(psi.AtVec(pair[1])))
			}
		})
	})
})
