package experiment

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dataset"
	"github.com/san-kum/koopsim/internal/koopman"
)

// trainBatch is how many pairs are accumulated between progress reports.
const trainBatch = 1024

// Model is a trained operator together with its one-step error profile.
type Model struct {
	Operator *koopman.Operator
	MaxLocal []float64
	Pairs    int
	Elapsed  time.Duration

	// Basis vectors of every training pair, kept when the config asks for
	// snapshots.
	Now, Next []*mat.VecDense
}

// Train samples the configured number of random pairs and fits an operator
// to them.
func (e *Experiment) Train(ctx context.Context) (*Model, error) {
	s, err := e.sampler(0)
	if err != nil {
		return nil, err
	}
	e.progress("sampling", 0, e.cfg.Samples)
	pairs, err := s.Pairs(ctx, e.cfg.Samples)
	if err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}
	e.progress("sampling", e.cfg.Samples, e.cfg.Samples)
	return e.TrainPairs(ctx, pairs)
}

// TrainTrials fits an operator to consecutive samples of recorded trials.
func (e *Experiment) TrainTrials(ctx context.Context, trials []dataset.Trial) (*Model, error) {
	pairs, err := dataset.TrialPairs(trials)
	if err != nil {
		return nil, err
	}
	e.log.Info("training from trials", "trials", len(trials), "pairs", len(pairs))
	return e.TrainPairs(ctx, pairs)
}

func (e *Experiment) TrainPairs(ctx context.Context, pairs []koopman.Pair) (*Model, error) {
	start := time.Now()
	acc := koopman.NewAccumulator(e.basis, koopman.WithSnapshots())

	for lo := 0; lo < len(pairs); lo += trainBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+trainBatch, len(pairs))
		if err := acc.AddAll(pairs[lo:hi], e.cfg.Workers); err != nil {
			return nil, fmt.Errorf("accumulating pairs %d-%d: %w", lo, hi, err)
		}
		e.progress("accumulating", hi, len(pairs))
	}

	op, err := acc.Finalize(koopman.WithRcond(e.cfg.Rcond))
	if err != nil {
		return nil, err
	}
	if op.Rank() < op.Dim() {
		e.log.Debug("auto-moment matrix is rank deficient", "rank", op.Rank(), "dim", op.Dim())
	}

	now, next := acc.Snapshots()
	local, err := koopman.MaxLocalErrorsFrom(op, now, next)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Operator: op,
		MaxLocal: local,
		Pairs:    len(pairs),
		Elapsed:  time.Since(start),
	}
	if e.cfg.Snapshots {
		m.Now, m.Next = now, next
	}
	e.log.Info("trained operator", "model", e.cfg.Model, "dim", op.Dim(), "rank", op.Rank(), "pairs", len(pairs), "elapsed", m.Elapsed)
	return m, nil
}
