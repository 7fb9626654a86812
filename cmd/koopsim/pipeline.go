package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/koopsim/internal/dataset"
	"github.com/san-kum/koopsim/internal/experiment"
	"github.com/san-kum/koopsim/internal/optim"
	"github.com/san-kum/koopsim/internal/plot"
	"github.com/san-kum/koopsim/internal/storage"
	"github.com/san-kum/koopsim/internal/tui"
)

func trainOperator(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	var model *experiment.Model
	err = withProgress(cmd.Context(), "training "+cfg.Model, func(ctx context.Context, opts ...experiment.Option) error {
		exp, err := experiment.New(cfg, experiment.NewRegistry(), opts...)
		if err != nil {
			return err
		}
		if cfg.Trials == "" {
			model, err = exp.Train(ctx)
			return err
		}
		trials, err := dataset.LoadTrials(cfg.Trials, exp.Basis().StateDim(), exp.Basis().ControlDim())
		if err != nil {
			return err
		}
		model, err = exp.TrainTrials(ctx, trials)
		return err
	})
	if err != nil {
		return err
	}

	metrics := experiment.Summarize(model, nil, nil)
	runID, err := st.Save(metadata(cfg, "train", model.Elapsed, metrics), modelArrays(model))
	if err != nil {
		return err
	}

	fmt.Println(tui.Summary(runID, append([]tui.Row{
		{Label: "model", Value: cfg.Model},
		{Label: "elapsed", Value: model.Elapsed.Round(time.Millisecond).String()},
	}, metricRows(metrics)...)))
	return nil
}

func predictRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	var (
		run  *storedRun
		pred *experiment.Prediction
	)
	start := time.Now()
	err = withProgress(cmd.Context(), "predicting "+args[0], func(ctx context.Context, opts ...experiment.Option) error {
		r, err := loadRun(cmd, st, args[0], opts...)
		if err != nil {
			return err
		}
		run = r
		pred, err = r.exp.Predict(ctx, r.op)
		return err
	})
	if err != nil {
		return err
	}

	arrays := &storage.Arrays{
		Kd:             run.arrays.Kd,
		MaxLocalErrors: run.arrays.MaxLocalErrors,
		ErrorHistory:   pred.MaxErrors,
		Time:           pred.Times,
	}
	model := &experiment.Model{Operator: run.op, MaxLocal: run.arrays.MaxLocalErrors, Pairs: run.meta.Samples}
	metrics := experiment.Summarize(model, pred, nil)
	delete(metrics, "bound_violations")

	cfg := run.exp.Config()
	runID, err := st.Save(metadata(cfg, "predict", time.Since(start), metrics), arrays)
	if err != nil {
		return err
	}
	fmt.Println(tui.Summary(runID, metricRows(metrics)))
	return nil
}

func boundsRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	run, err := loadRun(cmd, st, args[0])
	if err != nil {
		return err
	}

	bound, err := run.exp.Bounds(run.arrays.MaxLocalErrors)
	if err != nil {
		return err
	}
	times := run.exp.Times()
	names := run.exp.Case().StateNames

	if asciiPlot {
		fig, err := plot.BoundFigure("bound", times, bound, bound, names)
		if err != nil {
			return err
		}
		fig.Panels = boundOnly(fig.Panels)
		fmt.Print(fig.ASCII())
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "t\t"+strings.Join(names, "\t"))
		for k, row := range bound {
			cells := []string{strconv.FormatFloat(times[k], 'f', 4, 64)}
			for _, v := range row {
				cells = append(cells, fmt.Sprintf("%.4e", v))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	arrays := &storage.Arrays{
		Kd:             run.arrays.Kd,
		MaxLocalErrors: run.arrays.MaxLocalErrors,
		ErrorBound:     bound,
		Time:           times,
	}
	runID, err := st.Save(metadata(run.exp.Config(), "bounds", 0, nil), arrays)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func boundOnly(panels []plot.Panel) []plot.Panel {
	for i := range panels {
		var keep []plot.Series
		for _, s := range panels[i].Series {
			if s.Name == "bound" {
				keep = append(keep, s)
			}
		}
		panels[i].Series = keep
	}
	return panels
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	var report *experiment.Report
	start := time.Now()
	err = withProgress(cmd.Context(), "running "+cfg.Model, func(ctx context.Context, opts ...experiment.Option) error {
		exp, err := experiment.New(cfg, experiment.NewRegistry(), opts...)
		if err != nil {
			return err
		}
		report, err = exp.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	arrays := modelArrays(report.Model)
	arrays.ErrorHistory = report.Prediction.MaxErrors
	arrays.ErrorBound = report.Bound
	arrays.Time = report.Prediction.Times

	meta := metadata(cfg, "run", time.Since(start), report.Metrics)
	runID, err := st.Save(meta, arrays)
	if err != nil {
		return err
	}
	meta.ID = runID
	fmt.Println(tui.Summary(runID, metricRows(report.Metrics)))

	if plotOut {
		fig, err := boundFigure(&meta, arrays)
		if err != nil {
			return err
		}
		path := filepath.Join(st.Dir(runID), "bound.png")
		if err := fig.SavePNG(path, pngWidth); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}

func sweepRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(sweeps) == 0 {
		return fmt.Errorf("at least one --param name=v1,v2,... is required")
	}

	names := make([]string, len(sweeps))
	ranges := make([][]float64, len(sweeps))
	for i, spec := range sweeps {
		names[i], ranges[i], err = parseAxis(spec)
		if err != nil {
			return err
		}
	}

	reg := experiment.NewRegistry()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		return experiment.New(optim.Apply(cfg, params), reg)
	}
	res, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), build, metric)
	if res != nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(names, "\t")+"\t"+strings.ToUpper(metric))
		for _, t := range res.Trials {
			cells := make([]string, 0, len(names)+1)
			for _, n := range names {
				cells = append(cells, strconv.FormatFloat(t.Params[n], 'g', -1, 64))
			}
			if t.Err != nil {
				cells = append(cells, "error: "+t.Err.Error())
			} else {
				cells = append(cells, fmt.Sprintf("%.4e", t.Value))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nbest: %v (%s = %.4e)\n", res.Best, metric, res.Value)
	return nil
}

func parseAxis(spec string) (string, []float64, error) {
	name, list, ok := strings.Cut(spec, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("invalid --param %q, want name=v1,v2,...", spec)
	}
	var vals []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("--param %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}
