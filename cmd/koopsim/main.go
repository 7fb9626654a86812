package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/san-kum/koopsim/internal/config"
	"github.com/san-kum/koopsim/internal/experiment"
	"github.com/san-kum/koopsim/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string

	dt         float64
	horizon    float64
	samples    int
	basisSize  int
	seed       int64
	workers    int
	integrator string
	rcond      float64
	trialsPath string
	snapshots  bool

	noTUI     bool
	plotOut   bool
	asciiPlot bool
	outPath   string
	metric    string
	sweeps    []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "koopsim",
		Short:         "koopman operator identification and error bounds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".koopsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	trainCmd := &cobra.Command{
		Use:   "train [model]",
		Short: "fit an operator to sampled or recorded pairs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  trainOperator,
	}
	addExperimentFlags(trainCmd)
	trainCmd.Flags().StringVar(&trialsPath, "trials", "", "train from a trial CSV instead of random samples")
	trainCmd.Flags().BoolVar(&snapshots, "snapshots", false, "keep the basis vectors of every pair")

	predictCmd := &cobra.Command{
		Use:   "predict [run_id]",
		Short: "measure prediction error of a trained operator",
		Args:  cobra.ExactArgs(1),
		RunE:  predictRun,
	}
	addExperimentFlags(predictCmd)

	boundsCmd := &cobra.Command{
		Use:   "bounds [run_id]",
		Short: "compute the analytic error bound of a trained operator",
		Args:  cobra.ExactArgs(1),
		RunE:  boundsRun,
	}
	addExperimentFlags(boundsCmd)
	boundsCmd.Flags().BoolVar(&asciiPlot, "ascii", false, "draw the bound in the terminal")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "train, predict and bound in one pass",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExperiment,
	}
	addExperimentFlags(runCmd)
	runCmd.Flags().BoolVar(&snapshots, "snapshots", false, "keep the basis vectors of every pair")
	runCmd.Flags().BoolVar(&plotOut, "plot", false, "write bound.png into the run directory")

	fitnessCmd := &cobra.Command{
		Use:   "fitness [run_id]",
		Short: "compare an operator against recorded trials",
		Args:  cobra.ExactArgs(1),
		RunE:  fitnessRun,
	}
	fitnessCmd.Flags().StringVar(&trialsPath, "trials", "", "trial CSV to compare against (default: config trials)")
	fitnessCmd.Flags().BoolVar(&plotOut, "plot", false, "write one png per trial into the run directory")

	synthCmd := &cobra.Command{
		Use:   "synth [model]",
		Short: "generate a trial CSV by holding a grid of controls",
		Args:  cobra.MaximumNArgs(1),
		RunE:  synthTrials,
	}
	addExperimentFlags(synthCmd)
	synthCmd.Flags().StringVarP(&outPath, "out", "o", "trials.csv", "output CSV")

	regulateCmd := &cobra.Command{
		Use:   "regulate [run_id]",
		Short: "design an LQR on a trained operator and run it on the true system",
		Args:  cobra.ExactArgs(1),
		RunE:  regulateRun,
	}
	regulateCmd.Flags().BoolVar(&asciiPlot, "ascii", false, "draw the closed-loop states in the terminal")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "grid search over config knobs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepRun,
	}
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweeps, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&metric, "metric", "max_error", "metric to minimize")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot measured error against the bound",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&asciiPlot, "ascii", false, "draw in the terminal instead of writing a png")
	plotCmd.Flags().StringVarP(&outPath, "out", "o", "", "png path (default: run directory)")

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run's operator, spectrum and metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(trainCmd, predictCmd, boundsCmd, runCmd, fitnessCmd, synthCmd, regulateCmd, sweepCmd, listCmd, plotCmd, showCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "sample interval")
	cmd.Flags().Float64Var(&horizon, "horizon", config.DefaultHorizon, "prediction horizon")
	cmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "number of random pairs")
	cmd.Flags().IntVar(&basisSize, "basis", config.DefaultBasisSize, "dictionary size")
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	cmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "parallel workers")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	cmd.Flags().Float64Var(&rcond, "rcond", 0, "pseudo-inverse cutoff relative to the largest singular value (0 = default)")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable the progress view")
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// resolveConfig builds the config for model: preset or model defaults,
// then the config file, then any flag set on the command line.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if model != "" && loaded.Model != model {
			return nil, fmt.Errorf("config file is for %s, not %s", loaded.Model, model)
		}
		cfg = loaded
	} else {
		if model == "" {
			model = "pendulum"
		}
		if preset != "" {
			cfg = config.GetPreset(model, preset)
			if cfg == nil {
				return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
			}
		} else if cfg = config.ForModel(model); cfg == nil {
			return nil, fmt.Errorf("unknown model: %s", model)
		}
	}

	applyFlags(cmd, cfg)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("samples") {
		cfg.Samples = samples
	}
	if flags.Changed("basis") {
		cfg.BasisSize = basisSize
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("rcond") {
		cfg.Rcond = rcond
	}
	if flags.Changed("trials") {
		cfg.Trials = trialsPath
	}
	if flags.Changed("snapshots") {
		cfg.Snapshots = snapshots
	}
}

// useTUI reports whether the progress view should take over stderr.
func useTUI() bool {
	if noTUI || strings.EqualFold(logLevel, "debug") {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// withProgress runs job, behind the progress view when stderr is a
// terminal. job gets the experiment options to build with.
func withProgress(ctx context.Context, title string, job func(ctx context.Context, opts ...experiment.Option) error) error {
	if !useTUI() {
		return job(ctx)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return tui.Run(ctx, os.Stderr, title, func(ctx context.Context, progress func(string, int, int)) error {
		return job(ctx, experiment.WithLogger(quiet), experiment.WithProgress(progress))
	})
}
