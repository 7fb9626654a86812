package koopman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dynamo"
)

// parallelChunk is the smallest number of pairs worth handing to a worker.
const parallelChunk = 64

// Pair is one training sample: the state now, the state one sample
// interval later, and the control held over that interval.
type Pair struct {
	Now     dynamo.State
	Next    dynamo.State
	Control dynamo.Control
}

// Increment returns the moment contributions of one pair:
// a = ψ(next)·ψ(now)ᵀ and g = ψ(now)·ψ(now)ᵀ.
func Increment(b Basis, p Pair) (a, g *mat.Dense, err error) {
	now, next, err := evaluatePair(b, p)
	if err != nil {
		return nil, nil, err
	}
	n := b.Dim()
	a = mat.NewDense(n, n, nil)
	a.Outer(1, next, now)
	g = mat.NewDense(n, n, nil)
	g.Outer(1, now, now)
	return a, g, nil
}

func evaluatePair(b Basis, p Pair) (now, next *mat.VecDense, err error) {
	now, err = b.Evaluate(p.Now, p.Control)
	if err != nil {
		return nil, nil, fmt.Errorf("current state: %w", err)
	}
	next, err = b.Evaluate(p.Next, p.Control)
	if err != nil {
		return nil, nil, fmt.Errorf("next state: %w", err)
	}
	return now, next, nil
}

type phase int

const (
	phaseEmpty phase = iota
	phaseAccumulating
	phaseFinalized
)

func (p phase) String() string {
	switch p {
	case phaseEmpty:
		return "empty"
	case phaseAccumulating:
		return "accumulating"
	default:
		return "finalized"
	}
}

// Accumulator owns the running moment sums of one training pass. It moves
// from empty to accumulating on the first sample and to finalized when
// [Accumulator.Finalize] derives the operator; a finalized accumulator
// rejects further use and drops its moments.
type Accumulator struct {
	basis Basis
	a     *mat.Dense
	g     *mat.SymDense
	count int
	phase phase

	keepSnapshots bool
	now, next     []*mat.VecDense
}

type AccumulatorOption func(*Accumulator)

// WithSnapshots keeps ψ(now) and ψ(next) of every pair so one-step errors
// can be measured after finalization without evaluating the basis again.
func WithSnapshots() AccumulatorOption {
	return func(acc *Accumulator) { acc.keepSnapshots = true }
}

func NewAccumulator(b Basis, opts ...AccumulatorOption) *Accumulator {
	n := b.Dim()
	acc := &Accumulator{
		basis: b,
		a:     mat.NewDense(n, n, nil),
		g:     mat.NewSymDense(n, nil),
	}
	for _, opt := range opts {
		opt(acc)
	}
	return acc
}

func (acc *Accumulator) Basis() Basis { return acc.basis }

// Count is the number of pairs accumulated so far.
func (acc *Accumulator) Count() int { return acc.count }

func (acc *Accumulator) State() string { return acc.phase.String() }

// Add accumulates one pair.
func (acc *Accumulator) Add(p Pair) error {
	if acc.phase == phaseFinalized {
		return ErrFinalized
	}
	now, next, err := evaluatePair(acc.basis, p)
	if err != nil {
		return err
	}
	acc.a.RankOne(acc.a, 1, next, now)
	acc.g.SymRankOne(acc.g, 1, now)
	if acc.keepSnapshots {
		acc.now = append(acc.now, now)
		acc.next = append(acc.next, next)
	}
	acc.count++
	acc.phase = phaseAccumulating
	return nil
}

// AddAll accumulates pairs on up to workers goroutines. Each worker sums a
// contiguous span into private matrices; the partial sums are then added in
// span order, so the result is reproducible for a fixed worker count. If any
// pair fails, the accumulator is left unchanged.
func (acc *Accumulator) AddAll(pairs []Pair, workers int) error {
	if acc.phase == phaseFinalized {
		return ErrFinalized
	}
	if len(pairs) == 0 {
		return nil
	}

	n := acc.basis.Dim()
	spans := dynamo.Partition(len(pairs), workers, parallelChunk)
	partA := make([]*mat.Dense, len(spans))
	partG := make([]*mat.SymDense, len(spans))
	errs := make([]error, len(spans))

	var now, next []*mat.VecDense
	if acc.keepSnapshots {
		now = make([]*mat.VecDense, len(pairs))
		next = make([]*mat.VecDense, len(pairs))
	}

	dynamo.ParallelFor(spans, func(w int, s dynamo.Span) {
		a := mat.NewDense(n, n, nil)
		g := mat.NewSymDense(n, nil)
		for i := s.Start; i < s.End; i++ {
			psi0, psi1, err := evaluatePair(acc.basis, pairs[i])
			if err != nil {
				errs[w] = fmt.Errorf("pair %d: %w", i, err)
				return
			}
			a.RankOne(a, 1, psi1, psi0)
			g.SymRankOne(g, 1, psi0)
			if now != nil {
				now[i], next[i] = psi0, psi1
			}
		}
		partA[w], partG[w] = a, g
	})

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for w := range spans {
		acc.a.Add(acc.a, partA[w])
		acc.g.AddSym(acc.g, partG[w])
	}
	if acc.keepSnapshots {
		acc.now = append(acc.now, now...)
		acc.next = append(acc.next, next...)
	}
	acc.count += len(pairs)
	acc.phase = phaseAccumulating
	return nil
}

// Moments returns copies of the running sums A and G. Both are nil once the
// accumulator has been finalized.
func (acc *Accumulator) Moments() (a *mat.Dense, g *mat.SymDense) {
	if acc.phase == phaseFinalized {
		return nil, nil
	}
	a = mat.DenseCopyOf(acc.a)
	g = mat.NewSymDense(acc.basis.Dim(), nil)
	g.CopySym(acc.g)
	return a, g
}

// Snapshots returns the basis vectors recorded with [WithSnapshots], in the
// order the pairs were added.
func (acc *Accumulator) Snapshots() (now, next []*mat.VecDense) {
	return acc.now, acc.next
}

// Finalize estimates the operator from the accumulated moments and retires
// the accumulator.
func (acc *Accumulator) Finalize(opts ...EstimateOption) (*Operator, error) {
	switch acc.phase {
	case phaseFinalized:
		return nil, ErrFinalized
	case phaseEmpty:
		return nil, ErrEmpty
	}
	op, err := Estimate(acc.a, acc.g, opts...)
	if err != nil {
		return nil, err
	}
	acc.phase = phaseFinalized
	acc.a, acc.g = nil, nil
	return op, nil
}
