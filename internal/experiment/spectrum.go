package experiment

import (
	"math/cmplx"
	"sort"

	"github.com/san-kum/koopsim/internal/koopman"
)

// Mode is one eigenvalue of a discrete operator and its continuous-time
// counterpart log(λ)/dt.
type Mode struct {
	Discrete   complex128
	Continuous complex128
}

// Spectrum returns the modes of op sorted by decreasing modulus.
func Spectrum(op *koopman.Operator, dt float64) ([]Mode, error) {
	eig, err := op.Eigenvalues()
	if err != nil {
		return nil, err
	}
	modes := make([]Mode, len(eig))
	for i, l := range eig {
		modes[i] = Mode{Discrete: l, Continuous: cmplx.Log(l) / complex(dt, 0)}
	}
	sort.SliceStable(modes, func(i, j int) bool {
		return cmplx.Abs(modes[i].Discrete) > cmplx.Abs(modes[j].Discrete)
	})
	return modes, nil
}
