package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt        = 0.02
	DefaultHorizon   = 0.3
	DefaultSamples   = 1500
	DefaultBasisSize = 4
	DefaultSubsteps  = 10
	DefaultWorkers   = 4
	DefaultSeed      = 1

	FishDt        = 1.0 / 200
	FishHorizon   = 2.0
	FishBasisSize = 62
)

type Config struct {
	Model      string             `yaml:"model" json:"model"`
	Integrator string             `yaml:"integrator" json:"integrator"`
	Dt         float64            `yaml:"dt" json:"dt"`
	Horizon    float64            `yaml:"horizon" json:"horizon"`
	Samples    int                `yaml:"samples" json:"samples"`
	BasisSize  int                `yaml:"basis_size" json:"basis_size"`
	Seed       int64              `yaml:"seed" json:"seed"`
	Workers    int                `yaml:"workers" json:"workers"`
	Substeps   int                `yaml:"substeps" json:"substeps"`
	Tolerance  float64            `yaml:"tolerance" json:"tolerance"`
	Rcond      float64            `yaml:"rcond" json:"rcond"`
	Snapshots  bool               `yaml:"snapshots" json:"snapshots"`
	Trials     string             `yaml:"trials" json:"trials"`
	Sampling   SamplingConfig     `yaml:"sampling" json:"sampling"`
	Regulator  RegulatorConfig    `yaml:"regulator" json:"regulator"`
	Synth      SynthConfig        `yaml:"synth" json:"synth"`
	Params     map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// SamplingConfig bounds the random initial states and held controls drawn
// for training and for measuring prediction error.
type SamplingConfig struct {
	States   []Range `yaml:"states" json:"states"`
	Controls []Range `yaml:"controls" json:"controls"`
}

type RegulatorConfig struct {
	Q          []float64 `yaml:"q" json:"q"`
	R          float64   `yaml:"r" json:"r"`
	Duration   float64   `yaml:"duration" json:"duration"`
	InitState  []float64 `yaml:"init_state,omitempty" json:"init_state,omitempty"`
	Ranges     []Range   `yaml:"ranges" json:"ranges"`
	Iterations int       `yaml:"iterations" json:"iterations"`
}

// SynthConfig describes the grid of held controls used to generate
// recorded-style trials.
type SynthConfig struct {
	Amplitudes []float64 `yaml:"amplitudes" json:"amplitudes"`
	Biases     []float64 `yaml:"biases" json:"biases"`
	Duration   float64   `yaml:"duration" json:"duration"`
}

// Steps is the number of sample times in the horizon, counting t = 0.
func (c *Config) Steps() int {
	return int(math.Round(c.Horizon/c.Dt)) + 1
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "pendulum",
		Integrator: "rk4",
		Dt:         DefaultDt,
		Horizon:    DefaultHorizon,
		Samples:    DefaultSamples,
		BasisSize:  DefaultBasisSize,
		Seed:       DefaultSeed,
		Workers:    DefaultWorkers,
		Substeps:   DefaultSubsteps,
		Sampling: SamplingConfig{
			States:   []Range{{-2 * math.Pi, 2 * math.Pi}, {-5, 5}},
			Controls: []Range{{-5, 5}},
		},
		Regulator: RegulatorConfig{
			Q:          []float64{3, 1, 0.1},
			R:          0.1,
			Duration:   10,
			Ranges:     []Range{{-math.Pi, math.Pi}, {-2, 2}},
			Iterations: 64,
		},
	}
}

// DefaultFishConfig matches the 200 Hz recordings of the robotic fish.
func DefaultFishConfig() *Config {
	return &Config{
		Model:      "fish",
		Integrator: "rk4",
		Dt:         FishDt,
		Horizon:    FishHorizon,
		Samples:    3000,
		BasisSize:  FishBasisSize,
		Seed:       DefaultSeed,
		Workers:    DefaultWorkers,
		Substeps:   DefaultSubsteps,
		Sampling: SamplingConfig{
			States: []Range{
				{0, 0}, {0, 0}, {-math.Pi, math.Pi},
				{0, 0.3}, {-0.05, 0.05}, {-1, 1},
			},
			Controls: []Range{{0.5, 1}, {-1, 1}},
		},
		Synth: SynthConfig{
			Amplitudes: []float64{0.5, 2.0 / 3, 5.0 / 6, 1},
			Biases:     []float64{-1, -0.8, -0.6, -0.4, 0, 0.4, 0.6, 0.8, 1},
			Duration:   FishHorizon,
		},
	}
}

// ForModel returns the defaults for model, or nil if it is unknown.
func ForModel(model string) *Config {
	switch model {
	case "pendulum":
		return DefaultConfig()
	case "fish":
		return DefaultFishConfig()
	}
	return nil
}

// Load reads a YAML config on top of the defaults of the model it names.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var head struct {
		Model string `yaml:"model" json:"model"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if head.Model != "" {
		if cfg = ForModel(head.Model); cfg == nil {
			return nil, fmt.Errorf("unknown model: %s", head.Model)
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy, so presets can be modified safely.
func (c *Config) Clone() *Config {
	out := *c
	out.Sampling.States = append([]Range(nil), c.Sampling.States...)
	out.Sampling.Controls = append([]Range(nil), c.Sampling.Controls...)
	out.Regulator.Q = append([]float64(nil), c.Regulator.Q...)
	out.Regulator.InitState = append([]float64(nil), c.Regulator.InitState...)
	out.Regulator.Ranges = append([]Range(nil), c.Regulator.Ranges...)
	out.Synth.Amplitudes = append([]float64(nil), c.Synth.Amplitudes...)
	out.Synth.Biases = append([]float64(nil), c.Synth.Biases...)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.Horizon < 0 {
		errs = append(errs, fmt.Errorf("horizon must not be negative, got %g", c.Horizon))
	}
	if c.Samples < 1 {
		errs = append(errs, fmt.Errorf("samples must be positive, got %d", c.Samples))
	}
	if c.BasisSize < 1 {
		errs = append(errs, fmt.Errorf("basis_size must be positive, got %d", c.BasisSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Substeps < 1 {
		errs = append(errs, fmt.Errorf("substeps must be positive, got %d", c.Substeps))
	}
	if c.Rcond < 0 {
		errs = append(errs, fmt.Errorf("rcond must not be negative, got %g", c.Rcond))
	}
	for i, r := range c.Sampling.States {
		if r.Max < r.Min {
			errs = append(errs, fmt.Errorf("sampling.states[%d]: max %g below min %g", i, r.Max, r.Min))
		}
	}
	for i, r := range c.Sampling.Controls {
		if r.Max < r.Min {
			errs = append(errs, fmt.Errorf("sampling.controls[%d]: max %g below min %g", i, r.Max, r.Min))
		}
	}
	if c.Regulator.R < 0 {
		errs = append(errs, fmt.Errorf("regulator.r must not be negative, got %g", c.Regulator.R))
	}
	for i, q := range c.Regulator.Q {
		if q < 0 {
			errs = append(errs, fmt.Errorf("regulator.q[%d] must not be negative, got %g", i, q))
		}
	}
	return errors.Join(errs...)
}
