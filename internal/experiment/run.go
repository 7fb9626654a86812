package experiment

import (
	"context"
	"math"
)

// Report is the outcome of a full train, predict and bound pass.
type Report struct {
	Model      *Model
	Prediction *Prediction
	Bound      [][]float64
	Metrics    map[string]float64
}

// Run trains an operator, measures its prediction error on fresh samples
// and computes the analytic bound.
func (e *Experiment) Run(ctx context.Context) (*Report, error) {
	model, err := e.Train(ctx)
	if err != nil {
		return nil, err
	}
	pred, err := e.Predict(ctx, model.Operator)
	if err != nil {
		return nil, err
	}
	bound, err := e.Bounds(model.MaxLocal)
	if err != nil {
		return nil, err
	}

	r := &Report{Model: model, Prediction: pred, Bound: bound}
	r.Metrics = Summarize(model, pred, bound)
	e.log.Info("run complete", "max_error", r.Metrics["max_error"], "violations", r.Metrics["bound_violations"])
	return r, nil
}

// Summarize condenses a run into scalar metrics.
func Summarize(model *Model, pred *Prediction, bound [][]float64) map[string]float64 {
	m := map[string]float64{
		"rank":      float64(model.Operator.Rank()),
		"pairs":     float64(model.Pairs),
		"max_local": maxOf(model.MaxLocal),
	}
	if pred == nil {
		return m
	}

	var worst, final float64
	violations := 0
	last := len(pred.MaxErrors) - 1
	for k, row := range pred.MaxErrors {
		for j, v := range row {
			worst = math.Max(worst, v)
			if k == last {
				final += v
			}
			if k < len(bound) && j < len(bound[k]) && v > bound[k][j] {
				violations++
			}
		}
	}
	m["max_error"] = worst
	m["final_error"] = final
	m["bound_violations"] = float64(violations)
	return m
}

func maxOf(xs []float64) float64 {
	out := 0.0
	for _, x := range xs {
		out = math.Max(out, x)
	}
	return out
}
