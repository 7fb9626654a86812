package experiment

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/san-kum/koopsim/internal/config"
	"github.com/san-kum/koopsim/internal/dataset"
	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/koopman"
	"github.com/san-kum/koopsim/internal/sim"
)

// ProgressFunc receives coarse progress for a named stage. It may be called
// from several goroutines at once.
type ProgressFunc func(stage string, done, total int)

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithProgress(fn ProgressFunc) Option {
	return func(e *Experiment) { e.progress = fn }
}

// Experiment wires one configuration to its system, dictionary and
// trajectory oracle.
type Experiment struct {
	cfg      *config.Config
	reg      *Registry
	cs       Case
	sys      dynamo.System
	basis    koopman.Basis
	oracle   *sim.Oracle
	log      *slog.Logger
	progress ProgressFunc
}

func New(cfg *config.Config, reg *Registry, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cs, err := reg.GetCase(cfg.Model)
	if err != nil {
		return nil, err
	}
	newInteg, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	sys := cs.NewSystem()
	if err := applyParams(sys, cfg.Params); err != nil {
		return nil, err
	}
	basis, err := cs.NewBasis(cfg, sys)
	if err != nil {
		return nil, err
	}
	if basis.StateDim() != sys.StateDim() || basis.ControlDim() != sys.ControlDim() {
		return nil, fmt.Errorf("basis for %d states and %d inputs, system has %d and %d: %w",
			basis.StateDim(), basis.ControlDim(), sys.StateDim(), sys.ControlDim(), dynamo.ErrDimensionMismatch)
	}

	oracleOpts := []sim.Option{sim.WithSubsteps(cfg.Substeps)}
	if cfg.Tolerance > 0 {
		oracleOpts = append(oracleOpts, sim.WithTolerance(cfg.Tolerance))
	}

	e := &Experiment{
		cfg:      cfg,
		reg:      reg,
		cs:       cs,
		sys:      sys,
		basis:    basis,
		oracle:   sim.NewOracle(sys, newInteg, oracleOpts...),
		log:      slog.Default(),
		progress: func(string, int, int) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func applyParams(sys dynamo.System, params map[string]float64) error {
	if len(params) == 0 {
		return nil
	}
	c, ok := sys.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("%T has no tunable parameters", sys)
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.SetParam(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Case() Case             { return e.cs }
func (e *Experiment) System() dynamo.System  { return e.sys }
func (e *Experiment) Basis() koopman.Basis   { return e.basis }
func (e *Experiment) Oracle() *sim.Oracle    { return e.oracle }

// Times returns the sample times of the horizon, starting at zero.
func (e *Experiment) Times() []float64 {
	times := make([]float64, e.cfg.Steps())
	for k := range times {
		times[k] = float64(k) * e.cfg.Dt
	}
	return times
}

// sampler draws from the configured ranges. Training and testing use
// different streams of the same seed.
func (e *Experiment) sampler(stream int64) (*dataset.Sampler, error) {
	s, err := dataset.NewSampler(e.oracle, toRanges(e.cfg.Sampling.States), toRanges(e.cfg.Sampling.Controls), e.cfg.Dt, e.cfg.Seed+stream)
	if err != nil {
		return nil, err
	}
	s.SetWorkers(e.cfg.Workers)
	return s, nil
}

func toRanges(rs []config.Range) []dataset.Range {
	out := make([]dataset.Range, len(rs))
	for i, r := range rs {
		out[i] = dataset.Range{Min: r.Min, Max: r.Max}
	}
	return out
}

func drawState(rng *rand.Rand, rs []config.Range) dynamo.State {
	x := make(dynamo.State, len(rs))
	for i, r := range rs {
		x[i] = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	return x
}
