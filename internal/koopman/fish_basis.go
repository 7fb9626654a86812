package koopman

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// FishBasisDim is the size of the robotic-fish dictionary.
const FishBasisDim = 62

// FishBasis is the 62-term dictionary for the planar tail-actuated fish with
// state [x, y, ψ, vx, vy, ω] and control [u1, u2]:
//
//	0-5    the state
//	6-13   terms appearing in the equations of motion
//	14-59  terms appearing in their time derivative
//	60-61  the control
//
// Several terms use the drift angle atan(vy/vx) or divide by the planar
// speed sqrt(vx²+vy²). Both are undefined when the fish is at rest, so when
// vx and vy are both exactly zero the angle and every term that divides by
// the speed evaluate to zero. Terms divided by the speed are evaluated
// through the unit direction (vx, vy)/speed so that tiny velocities do not
// overflow.
//
// Four cubic terms appear twice (28/49, 26/50, 24/58 and 27/59), so the
// auto-moment matrix of this dictionary is always rank deficient.
type FishBasis struct{}

func NewFishBasis() *FishBasis { return &FishBasis{} }

func (*FishBasis) Dim() int        { return FishBasisDim }
func (*FishBasis) StateDim() int   { return 6 }
func (*FishBasis) ControlDim() int { return 2 }

func (b *FishBasis) Evaluate(x dynamo.State, u dynamo.Control) (*mat.VecDense, error) {
	if err := checkInput(b, x, u); err != nil {
		return nil, err
	}
	psi, vx, vy, om := x[2], x[3], x[4], x[5]

	vx2, vy2, om2 := vx*vx, vy*vy, om*om
	speed := math.Hypot(vx, vy)
	sgnOm2 := om * math.Abs(om) // sign(ω)·ω²
	sin, cos := math.Sincos(psi)

	var drift, dirX, dirY float64 // atan(vy/vx) and (vx, vy)/speed
	if speed != 0 {
		drift = math.Atan(vy / vx)
		dirX, dirY = vx/speed, vy/speed
	}
	drift2 := drift * drift

	p := make([]float64, FishBasisDim)
	copy(p, x)

	p[6] = vx*cos - vy*sin
	p[7] = vx*sin + vy*cos
	p[8] = vy * om
	p[9] = vx2
	p[10] = vy2
	p[11] = vx * om
	p[12] = vx * vy
	p[13] = sgnOm2

	p[14] = vy * om * cos
	p[15] = vx2 * cos
	p[16] = vy2 * cos
	p[17] = vx * om * sin
	p[18] = vx * vy * sin

	p[19] = vy * om * sin
	p[20] = vx2 * sin
	p[21] = vy2 * sin
	p[22] = vx * om * cos
	p[23] = vx * vy * cos

	p[24] = vx * om2
	p[25] = vx * vy * om
	p[26] = vx * vy2
	p[27] = vy * sgnOm2
	p[28] = vx2 * vx

	p[29] = vy * om2
	p[30] = vx * om * speed
	p[31] = vy * om * speed * drift
	p[32] = vx2 * vy
	p[33] = vx * sgnOm2
	p[34] = vy2 * vy
	p[35] = vx2 * vx * drift
	p[36] = vx * vy2 * drift
	p[37] = vx * vy * om * dirY
	p[38] = vx2 * vy * drift2
	p[39] = vy2 * vy * drift2
	p[40] = vx * vy * om * dirX * drift

	p[41] = vy2 * om
	p[42] = vx * vy * speed
	p[43] = vy2 * speed * drift
	p[44] = vx2 * om
	p[45] = vx2 * speed * drift
	p[46] = vx * vy * math.Abs(om) // sign(ω)·ω
	p[47] = om2 * om

	p[48] = vy * om * speed
	p[49] = vx2 * vx
	p[50] = vx * vy2
	p[51] = vx2 * vy * drift
	p[52] = vx * vy * om * dirX

	p[53] = vx * om * speed * drift
	p[54] = vx2 * vx * drift2
	p[55] = vx * vy2 * drift2
	p[56] = vx * vy * om * drift * dirY
	p[57] = vy2 * vy * drift

	p[58] = vx * om2
	p[59] = vy * sgnOm2

	p[60] = u[0]
	p[61] = u[1]

	return mat.NewVecDense(FishBasisDim, p), nil
}
