package experiment

import (
	"fmt"
	"math"

	"github.com/san-kum/koopsim/internal/dataset"
	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
)

// TrialFit compares one recorded trial against the operator's open-loop
// prediction from the trial's first sample.
type TrialFit struct {
	ID        string
	Times     []float64
	Predicted []dynamo.State
	Recorded  []dynamo.State
	RMS       []float64
}

func (e *Experiment) Fitness(op *koopman.Operator, trials []dataset.Trial) ([]TrialFit, error) {
	ns := e.basis.StateDim()
	fits := make([]TrialFit, 0, len(trials))
	for i := range trials {
		t := &trials[i]
		if t.Len() < 2 {
			return nil, fmt.Errorf("trial %s: %w", t.ID, dataset.ErrShortTrial)
		}

		psi0, err := e.basis.Evaluate(t.States[0], t.Controls[0])
		if err != nil {
			return nil, fmt.Errorf("trial %s: %w", t.ID, err)
		}
		tr, err := op.Propagate(psi0, t.Len()-1)
		if err != nil {
			return nil, fmt.Errorf("trial %s: %w", t.ID, err)
		}

		fit := TrialFit{
			ID:        t.ID,
			Times:     make([]float64, t.Len()),
			Predicted: make([]dynamo.State, t.Len()),
			Recorded:  t.States,
			RMS:       make([]float64, ns),
		}
		for k := range fit.Times {
			fit.Times[k] = float64(k) * e.cfg.Dt
			fit.Predicted[k] = tr.State(k, ns).Clone()
			for j, d := range fit.Predicted[k].Sub(t.States[k]) {
				fit.RMS[j] += d * d
			}
		}
		for j := range fit.RMS {
			fit.RMS[j] = math.Sqrt(fit.RMS[j] / float64(t.Len()))
		}
		fits = append(fits, fit)
	}
	return fits, nil
}
