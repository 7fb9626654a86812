package main

import (
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/koopsim/internal/config"
	"github.com/san-kum/koopsim/internal/experiment"
	"github.com/san-kum/koopsim/internal/koopman"
	"github.com/san-kum/koopsim/internal/plot"
	"github.com/san-kum/koopsim/internal/storage"
	"github.com/san-kum/koopsim/internal/tui"
)

const pngWidth = 7 * vg.Inch

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	return st, st.Init()
}

func metadata(cfg *config.Config, kind string, elapsed time.Duration, metrics map[string]float64) storage.RunMetadata {
	return storage.RunMetadata{
		Model:      cfg.Model,
		Kind:       kind,
		Timestamp:  time.Now(),
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Horizon:    cfg.Horizon,
		Samples:    cfg.Samples,
		BasisSize:  cfg.BasisSize,
		Integrator: cfg.Integrator,
		Elapsed:    elapsed.Seconds(),
		Config:     cfg,
		Metrics:    metrics,
	}
}

func modelArrays(m *experiment.Model) *storage.Arrays {
	return &storage.Arrays{
		Kd:             m.Operator.Rows(),
		MaxLocalErrors: m.MaxLocal,
		Ps0List:        vectorRows(m.Now),
		PsiList:        vectorRows(m.Next),
	}
}

func vectorRows(vs []*mat.VecDense) [][]float64 {
	if len(vs) == 0 {
		return nil
	}
	rows := make([][]float64, len(vs))
	for i, v := range vs {
		rows[i] = mat.Col(nil, 0, v)
	}
	return rows
}

// storedRun is a saved operator together with an experiment rebuilt from
// the config it was trained with.
type storedRun struct {
	meta   *storage.RunMetadata
	arrays *storage.Arrays
	exp    *experiment.Experiment
	op     *koopman.Operator
}

func loadRun(cmd *cobra.Command, st *storage.Store, runID string, opts ...experiment.Option) (*storedRun, error) {
	meta, err := st.Load(runID)
	if err != nil {
		return nil, err
	}
	arrays, err := st.LoadArrays(runID)
	if err != nil {
		return nil, err
	}
	kd, err := arrays.KdMatrix()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	op, err := koopman.NewOperator(kd)
	if err != nil {
		return nil, err
	}

	cfg := meta.Config
	if cfg == nil {
		if cfg = config.ForModel(meta.Model); cfg == nil {
			return nil, fmt.Errorf("run %s: unknown model %s", runID, meta.Model)
		}
	}
	if err := checkTrainedFlags(cmd, cfg); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	applyFlags(cmd, cfg)

	exp, err := experiment.New(cfg, experiment.NewRegistry(), opts...)
	if err != nil {
		return nil, err
	}
	return &storedRun{meta: meta, arrays: arrays, exp: exp, op: op}, nil
}

// checkTrainedFlags rejects flags that would change what a stored operator
// was identified with. K advances the lifted state by exactly one trained dt,
// and the remainder bound is calibrated at that step.
func checkTrainedFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("dt") && dt != cfg.Dt {
		return fmt.Errorf("--dt %g differs from the trained dt %g", dt, cfg.Dt)
	}
	if flags.Changed("basis") && basisSize != cfg.BasisSize {
		return fmt.Errorf("--basis %d differs from the trained dictionary size %d", basisSize, cfg.BasisSize)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tTIME\tBASIS\tSAMPLES\tDT\tMAX ERROR")

	for _, run := range runs {
		maxErr := "-"
		if v, ok := run.Metrics["max_error"]; ok {
			maxErr = fmt.Sprintf("%.3e", v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.4fs\t%s\n",
			run.ID,
			run.Kind,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.BasisSize,
			run.Samples,
			run.Dt,
			maxErr,
		)
	}

	return w.Flush()
}

func boundFigure(meta *storage.RunMetadata, arrays *storage.Arrays) (*plot.Figure, error) {
	if len(arrays.ErrorHistory) == 0 || len(arrays.ErrorBound) == 0 {
		return nil, fmt.Errorf("run %s has no error curves; use a run from `koopsim run`", meta.ID)
	}
	names := stateNames(meta.Model, len(arrays.ErrorHistory[0]))
	return plot.BoundFigure(meta.Model+" "+meta.ID, arrays.Time, arrays.ErrorHistory, arrays.ErrorBound, names)
}

func stateNames(model string, n int) []string {
	if c, err := experiment.NewRegistry().GetCase(model); err == nil && len(c.StateNames) == n {
		return c.StateNames
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i)
	}
	return names
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	arrays, err := st.LoadArrays(runID)
	if err != nil {
		return err
	}

	fig, err := boundFigure(meta, arrays)
	if err != nil {
		return err
	}
	if asciiPlot {
		fmt.Print(fig.ASCII())
		return nil
	}

	path := outPath
	if path == "" {
		path = filepath.Join(st.Dir(runID), "bound.png")
	}
	if err := fig.SavePNG(path, pngWidth); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	arrays, err := st.LoadArrays(runID)
	if err != nil {
		return err
	}

	rows := []tui.Row{
		{Label: "model", Value: meta.Model},
		{Label: "kind", Value: meta.Kind},
		{Label: "time", Value: meta.Timestamp.Format(time.RFC3339)},
		{Label: "integrator", Value: meta.Integrator},
		{Label: "dt", Value: strconv.FormatFloat(meta.Dt, 'g', -1, 64)},
		{Label: "horizon", Value: strconv.FormatFloat(meta.Horizon, 'g', -1, 64)},
		{Label: "samples", Value: strconv.Itoa(meta.Samples)},
		{Label: "basis size", Value: strconv.Itoa(meta.BasisSize)},
		{Label: "seed", Value: strconv.FormatInt(meta.Seed, 10)},
		{Label: "elapsed", Value: fmt.Sprintf("%.2fs", meta.Elapsed)},
	}
	rows = append(rows, metricRows(meta.Metrics)...)
	fmt.Println(tui.Summary(meta.ID, rows))

	kd, err := arrays.KdMatrix()
	if err != nil {
		return err
	}
	fmt.Printf("\nKd =\n%v\n", mat.Formatted(kd, mat.Prefix(""), mat.Excerpt(8)))

	op, err := koopman.NewOperator(kd)
	if err != nil {
		return err
	}
	modes, err := experiment.Spectrum(op, meta.Dt)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n|λ|\tλ\tlog(λ)/dt")
	for _, m := range modes {
		fmt.Fprintf(w, "%.6f\t%.6f\t%.4f\n", cmplx.Abs(m.Discrete), m.Discrete, m.Continuous)
	}
	return w.Flush()
}

func metricRows(metrics map[string]float64) []tui.Row {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]tui.Row, len(names))
	for i, name := range names {
		rows[i] = tui.Row{Label: name, Value: fmt.Sprintf("%.6g", metrics[name])}
	}
	return rows
}
