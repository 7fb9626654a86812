package config

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"baseline": DefaultConfig(),
		"minimal":  withPendulum(func(c *Config) { c.BasisSize = 3 }),
		"energy":   withPendulum(func(c *Config) { c.BasisSize = 5 }),
		"collinear": withPendulum(func(c *Config) {
			c.BasisSize = 6
		}),
		"small_angle": withPendulum(func(c *Config) {
			c.Sampling.States = []Range{{-0.3, 0.3}, {-1, 1}}
			c.Sampling.Controls = []Range{{-1, 1}}
		}),
		"long_horizon": withPendulum(func(c *Config) {
			c.Horizon = 1.0
			c.Samples = 3000
		}),
		"adaptive": withPendulum(func(c *Config) {
			c.Integrator = "rk45"
			c.Tolerance = 1e-10
		}),
	},
	"fish": {
		"lab": DefaultFishConfig(),
		"cruise": withFish(func(c *Config) {
			c.Sampling.Controls = []Range{{0.8, 1}, {-0.2, 0.2}}
			c.Synth.Biases = []float64{-0.2, 0, 0.2}
		}),
		"turning": withFish(func(c *Config) {
			c.Sampling.Controls = []Range{{0.5, 1}, {0.5, 1}}
			c.Synth.Biases = []float64{0.5, 0.75, 1}
		}),
	},
}

func withPendulum(fn func(*Config)) *Config {
	c := DefaultConfig()
	fn(c)
	return c
}

func withFish(fn func(*Config)) *Config {
	c := DefaultFishConfig()
	fn(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}
