package main

import (
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/koopsim/internal/dataset"
	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/experiment"
	"github.com/san-kum/koopsim/internal/plot"
	"github.com/san-kum/koopsim/internal/tui"
)

func rows(xs []dynamo.State) [][]float64 {
	out := make([][]float64, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func fitnessRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	run, err := loadRun(cmd, st, args[0])
	if err != nil {
		return err
	}
	exp := run.exp

	path := exp.Config().Trials
	if path == "" {
		return fmt.Errorf("no trials given; pass --trials or set trials in the config")
	}
	trials, err := dataset.LoadTrials(path, exp.Basis().StateDim(), exp.Basis().ControlDim())
	if err != nil {
		return err
	}
	fits, err := exp.Fitness(run.op, trials)
	if err != nil {
		return err
	}

	names := exp.Case().StateNames
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tSAMPLES\t"+strings.ToUpper(strings.Join(names, " RMS\t"))+" RMS")
	for _, fit := range fits {
		cells := []string{fit.ID, fmt.Sprint(len(fit.Times))}
		for _, v := range fit.RMS {
			cells = append(cells, fmt.Sprintf("%.4e", v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !plotOut {
		return nil
	}
	dir := filepath.Join(st.Dir(run.meta.ID), "fitness")
	for _, fit := range fits {
		fig, err := plot.FitFigure("trial "+fit.ID, fit.Times, rows(fit.Predicted), rows(fit.Recorded), names)
		if err != nil {
			return err
		}
		if err := fig.SavePNG(filepath.Join(dir, fit.ID+".png"), pngWidth); err != nil {
			return fmt.Errorf("trial %s: %w", fit.ID, err)
		}
	}
	fmt.Printf("wrote %d plots to %s\n", len(fits), dir)
	return nil
}

func synthTrials(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && configFile == "" {
		args = []string{"fish"}
	}
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return err
	}

	trials, err := exp.Synth(cmd.Context())
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	spec := exp.Case()
	if err := dataset.WriteTrials(f, trials, spec.StateNames, spec.ControlNames); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d trials to %s\n", len(trials), outPath)
	return nil
}

func regulateRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	run, err := loadRun(cmd, st, args[0])
	if err != nil {
		return err
	}

	reg, err := run.exp.Regulate(cmd.Context(), run.op)
	if err != nil {
		return err
	}

	eig := make([]string, len(reg.Eigenvalues))
	for i, l := range reg.Eigenvalues {
		eig[i] = fmt.Sprintf("%.4f", cmplx.Abs(l))
	}
	closedEnd := reg.Closed.States[len(reg.Closed.States)-1]
	openEnd := reg.Open.States[len(reg.Open.States)-1]

	summary := []tui.Row{
		{Label: "initial", Value: fmt.Sprintf("%.4f", []float64(reg.Initial))},
		{Label: "gain", Value: fmt.Sprintf("%.4f", mat.Row(nil, 0, reg.Gain))},
		{Label: "|eig(A-BK)|", Value: strings.Join(eig, " ")},
		{Label: "closed final", Value: fmt.Sprintf("%.4f", []float64(closedEnd))},
		{Label: "open final", Value: fmt.Sprintf("%.4f", []float64(openEnd))},
	}
	for _, r := range metricRows(reg.Closed.Metrics) {
		r.Label = "closed " + r.Label
		summary = append(summary, r)
	}
	for _, r := range metricRows(reg.Open.Metrics) {
		r.Label = "open " + r.Label
		summary = append(summary, r)
	}
	fmt.Println(tui.Summary("regulator on "+run.meta.ID, summary))

	if asciiPlot {
		names := run.exp.Case().StateNames
		fig := &plot.Figure{Times: reg.Closed.Times}
		closed, open := rows(reg.Closed.States), rows(reg.Open.States)
		for j, name := range names {
			fig.Panels = append(fig.Panels, plot.Panel{
				Title: name,
				Series: []plot.Series{
					{Name: "closed", Values: column(closed, j)},
					{Name: "open", Values: column(open, j)},
				},
			})
		}
		fmt.Print(fig.ASCII())
	}
	return nil
}

func column(rs [][]float64, j int) []float64 {
	out := make([]float64, len(rs))
	for k, r := range rs {
		out[k] = r[j]
	}
	return out
}
