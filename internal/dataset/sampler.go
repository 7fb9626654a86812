package dataset

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
	"github.com/san-kum/koopsim/internal/sim"
)

// Pair is a training sample; see [koopman.Pair].
type Pair = koopman.Pair

// Range is a closed sampling interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r Range) draw(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Sampler draws random (state, control) points and integrates them one
// sample interval forward. Draws are sequential and seeded, so the same
// seed always yields the same pairs regardless of the worker count.
type Sampler struct {
	oracle   *sim.Oracle
	states   []Range
	controls []Range
	dt       float64
	workers  int
	rng      *rand.Rand
}

func NewSampler(oracle *sim.Oracle, states, controls []Range, dt float64, seed int64) (*Sampler, error) {
	sys := oracle.System()
	if len(states) != sys.StateDim() {
		return nil, fmt.Errorf("sampler: %d state ranges for a %d-state system: %w", len(states), sys.StateDim(), dynamo.ErrDimensionMismatch)
	}
	if len(controls) != sys.ControlDim() {
		return nil, fmt.Errorf("sampler: %d control ranges for a %d-input system: %w", len(controls), sys.ControlDim(), dynamo.ErrDimensionMismatch)
	}
	for i, r := range append(append([]Range{}, states...), controls...) {
		if r.Max < r.Min {
			return nil, fmt.Errorf("sampler: range %d is inverted [%g, %g]", i, r.Min, r.Max)
		}
	}
	if dt <= 0 {
		return nil, fmt.Errorf("sampler: sample interval must be positive, got %g", dt)
	}
	return &Sampler{
		oracle:   oracle,
		states:   states,
		controls: controls,
		dt:       dt,
		workers:  1,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// SetWorkers bounds how many pairs are integrated concurrently.
func (s *Sampler) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// Draw returns one random state and control.
func (s *Sampler) Draw() (dynamo.State, dynamo.Control) {
	x := make(dynamo.State, len(s.states))
	for i, r := range s.states {
		x[i] = r.draw(s.rng)
	}
	u := make(dynamo.Control, len(s.controls))
	for i, r := range s.controls {
		u[i] = r.draw(s.rng)
	}
	return x, u
}

// Pairs draws n points and integrates each of them one interval forward
// with its control held.
func (s *Sampler) Pairs(ctx context.Context, n int) ([]Pair, error) {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i].Now, pairs[i].Control = s.Draw()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			next, err := s.oracle.Step(pairs[i].Now, pairs[i].Control, s.dt)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			pairs[i].Next = next
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}
