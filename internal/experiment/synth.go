package experiment

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/koopsim/internal/control"
	"github.com/san-kum/koopsim/internal/dataset"
	"github.com/san-kum/koopsim/internal/dynamo"
)

// Synth records one trial per (amplitude, bias) pair of the synth grid:
// the system starts at rest and the control [amplitude, bias] is held for
// the configured duration, sampled every dt.
func (e *Experiment) Synth(ctx context.Context) ([]dataset.Trial, error) {
	sc := e.cfg.Synth
	if e.sys.ControlDim() != 2 {
		return nil, fmt.Errorf("synth drives two inputs, %s has %d: %w", e.cfg.Model, e.sys.ControlDim(), dynamo.ErrDimensionMismatch)
	}
	if len(sc.Amplitudes) == 0 || len(sc.Biases) == 0 {
		return nil, fmt.Errorf("synth needs at least one amplitude and one bias")
	}

	type job struct {
		id string
		u  dynamo.Control
	}
	var jobs []job
	for _, a := range sc.Amplitudes {
		for _, b := range sc.Biases {
			jobs = append(jobs, job{id: fmt.Sprintf("amp%.3f_bias%+.3f", a, b), u: dynamo.Control{a, b}})
		}
	}

	trials := make([]dataset.Trial, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			x0 := make(dynamo.State, e.sys.StateDim())
			res, err := e.oracle.Closed(gctx, x0, control.NewHold(j.u), e.cfg.Dt, sc.Duration)
			if err != nil {
				return fmt.Errorf("trial %s: %w", j.id, err)
			}
			controls := make([]dynamo.Control, len(res.States))
			for k := range controls {
				controls[k] = j.u.Clone()
			}
			trials[i] = dataset.Trial{ID: j.id, States: res.States, Controls: controls}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.log.Info("synthesized trials", "trials", len(trials), "samples", len(trials[0].States))
	return trials, nil
}
