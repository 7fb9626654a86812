package optim

import (
	"context"
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/koopsim/internal/config"
	"github.com/san-kum/koopsim/internal/experiment"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Trial is one evaluated grid point. Err is set when the point could not be
// built or run; such points never win.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type Result struct {
	Best   map[string]float64
	Value  float64
	Trials []Trial
}

// Search runs every point of the grid and keeps the one with the smallest
// metricName. Points are visited in the order the parameters were given.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (*Result, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("%d parameters with %d value lists", len(g.paramNames), len(g.ranges))
	}

	res := &Result{Value: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, res); err != nil {
		return res, err
	}
	if res.Best == nil {
		return res, fmt.Errorf("no grid point produced %q", metricName)
	}
	return res, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	res *Result,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		trial := Trial{Params: maps.Clone(current), Value: math.NaN()}
		defer func() { res.Trials = append(res.Trials, trial) }()

		exp, err := buildExperiment(trial.Params)
		if err != nil {
			trial.Err = err
			return nil
		}
		report, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			trial.Err = err
			return nil
		}

		val, ok := report.Metrics[metricName]
		if !ok {
			trial.Err = fmt.Errorf("run has no metric %q", metricName)
			return nil
		}
		trial.Value = val
		if val < res.Value {
			res.Value = val
			res.Best = maps.Clone(current)
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := maps.Clone(current)
		next[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, next, buildExperiment, metricName, res); err != nil {
			return err
		}
	}
	return nil
}

// Apply sets a grid point on cfg. Names that are not config knobs are
// passed to the system as physical parameters.
func Apply(cfg *config.Config, params map[string]float64) *config.Config {
	out := cfg.Clone()
	for name, v := range params {
		switch name {
		case "basis_size":
			out.BasisSize = int(math.Round(v))
		case "samples":
			out.Samples = int(math.Round(v))
		case "substeps":
			out.Substeps = int(math.Round(v))
		case "dt":
			out.Dt = v
		case "horizon":
			out.Horizon = v
		case "rcond":
			out.Rcond = v
		default:
			if out.Params == nil {
				out.Params = make(map[string]float64)
			}
			out.Params[name] = v
		}
	}
	return out
}
