package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/koopsim/internal/config"
	"github.com/san-kum/koopsim/internal/dynamo"
	"github.com/san-kum/koopsim/internal/integrators"
	"github.com/san-kum/koopsim/internal/koopman"
	"github.com/san-kum/koopsim/internal/metrics"
	"github.com/san-kum/koopsim/internal/physics"
)

// Case is one case study: a physical system and the dictionary used to
// lift it.
type Case struct {
	Name         string
	StateNames   []string
	ControlNames []string
	NewSystem    func() dynamo.System
	NewBasis     func(cfg *config.Config, sys dynamo.System) (koopman.Basis, error)
}

type Registry struct {
	cases       map[string]Case
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		cases:       make(map[string]Case),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.cases["pendulum"] = Case{
		Name:         "pendulum",
		StateNames:   []string{"theta", "dtheta"},
		ControlNames: []string{"u"},
		NewSystem:    func() dynamo.System { return physics.NewPendulum() },
		NewBasis: func(cfg *config.Config, sys dynamo.System) (koopman.Basis, error) {
			p, ok := sys.(*physics.Pendulum)
			if !ok {
				return nil, fmt.Errorf("pendulum basis needs a pendulum, got %T", sys)
			}
			return koopman.NewPendulumBasis(cfg.BasisSize, p.Gravity, p.Length)
		},
	}
	r.cases["fish"] = Case{
		Name:         "fish",
		StateNames:   []string{"x", "y", "psi", "vx", "vy", "omega"},
		ControlNames: []string{"u1", "u2"},
		NewSystem:    func() dynamo.System { return physics.NewFish() },
		NewBasis: func(cfg *config.Config, _ dynamo.System) (koopman.Basis, error) {
			if cfg.BasisSize != koopman.FishBasisDim {
				return nil, fmt.Errorf("fish basis has %d terms, config asks for %d", koopman.FishBasisDim, cfg.BasisSize)
			}
			return koopman.NewFishBasis(), nil
		},
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	return r
}

// Register adds or replaces a case study.
func (r *Registry) Register(c Case) {
	r.cases[c.Name] = c
}

func (r *Registry) GetCase(name string) (Case, error) {
	c, ok := r.cases[name]
	if !ok {
		return Case{}, fmt.Errorf("unknown model: %s", name)
	}
	return c, nil
}

// GetIntegrator returns a constructor, since integrators keep scratch
// buffers and must not be shared between goroutines.
func (r *Registry) GetIntegrator(name string) (func() dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.cases)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the closed-loop metrics recorded for a regulator
// run under cfg. The stability region is the one the regulator starts
// from, and input cost uses the regulator's R weight.
func (r *Registry) DefaultMetrics(cfg *config.Config, sys dynamo.System) []dynamo.Metric {
	ranges := cfg.Regulator.Ranges
	if len(ranges) == 0 {
		ranges = cfg.Sampling.States
	}
	bounds := make([]float64, len(ranges))
	for i, rg := range ranges {
		bounds[i] = math.Max(math.Abs(rg.Min), math.Abs(rg.Max))
	}
	weights := make([]float64, sys.ControlDim())
	for i := range weights {
		weights[i] = cfg.Regulator.R
	}

	ms := []dynamo.Metric{
		metrics.NewRegion(bounds),
		metrics.NewInputCost(weights),
	}
	if p, ok := sys.(*physics.Pendulum); ok && cfg.Model == "pendulum" {
		ms = append(ms, metrics.NewEnergy(p.Mass, p.Length, p.Gravity))
	}
	return ms
}
