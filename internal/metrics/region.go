package metrics

import (
	"math"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// Region is the fraction of samples at which every bounded state component
// satisfies |x[i]| <= bounds[i]. A zero bound leaves its component free, so
// positions of a free-swimming body can be skipped.
type Region struct {
	name       string
	bounds     []float64
	violations int
	samples    int
}

func NewRegion(bounds []float64) *Region {
	return &Region{
		name:   "stability",
		bounds: append([]float64(nil), bounds...),
	}
}

func (s *Region) Name() string {
	return s.name
}

func (s *Region) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	for i, val := range x {
		if i >= len(s.bounds) || s.bounds[i] == 0 {
			continue
		}
		if !(math.Abs(val) <= s.bounds[i]) {
			s.violations++
			return
		}
	}
}

func (s *Region) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Region) Reset() {
	s.violations = 0
	s.samples = 0
}
