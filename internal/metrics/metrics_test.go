package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/koopsim/internal/dynamo"
)

func TestEnergyUpright(t *testing.T) {
	m := NewEnergy(1.0, 1.0, 9.81)
	m.Observe(dynamo.State{0, 0}, dynamo.Control{0}, 0)
	if m.Value() != 0 {
		t.Errorf("expected zero energy upright at rest, got %f", m.Value())
	}
}

func TestEnergyValue(t *testing.T) {
	m := NewEnergy(1.0, 1.0, 9.81)

	theta := math.Pi / 4
	omega := 2.0
	x := dynamo.State{theta, omega}

	expected := 0.5*omega*omega + 9.81*(math.Cos(theta)-1)
	if math.Abs(m.At(x)-expected) > 1e-12 {
		t.Errorf("expected energy %f, got %f", expected, m.At(x))
	}

	m.Observe(x, nil, 0)
	m.Observe(dynamo.State{math.Pi, 0}, nil, 0.1)
	mean := (math.Abs(expected) + 2*9.81) / 2
	if math.Abs(m.Value()-mean) > 1e-12 {
		t.Errorf("expected mean magnitude %f, got %f", mean, m.Value())
	}
}

func TestEnergyReset(t *testing.T) {
	m := NewEnergy(1.0, 1.0, 9.81)

	m.Observe(dynamo.State{1.0, 1.0}, dynamo.Control{}, 0)
	if m.Value() == 0 {
		t.Error("expected non-zero energy")
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestInputCost(t *testing.T) {
	m := NewInputCost([]float64{0.5})
	m.Observe(nil, dynamo.Control{2, -3}, 0)
	m.Observe(nil, dynamo.Control{0, 1}, 0.1)

	// (0.5·4 + 9 + 1) / 2
	if m.Value() != 6 {
		t.Errorf("expected mean cost 6, got %f", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected zero after reset, got %f", m.Value())
	}
}

func TestRegion(t *testing.T) {
	tests := []struct {
		name   string
		bounds []float64
		states []dynamo.State
		want   float64
	}{
		{"no samples", []float64{1, 1}, nil, 1},
		{"inside", []float64{1, 1}, []dynamo.State{{0.1, 0.2}, {-0.5, 0.9}}, 1},
		{"half outside", []float64{1, 1}, []dynamo.State{{0.1, 0.2}, {2, 0}}, 0.5},
		{"per component", []float64{math.Pi, 2}, []dynamo.State{{3, -1.9}, {0, 2.5}}, 0.5},
		{"free components", []float64{0, 0, 1}, []dynamo.State{{40, -12, 0.5}, {7, 3, -0.9}}, 1},
		{"nan is outside", []float64{1}, []dynamo.State{{math.NaN()}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRegion(tt.bounds)
			for i, x := range tt.states {
				m.Observe(x, nil, float64(i))
			}
			if m.Value() != tt.want {
				t.Errorf("expected %f, got %f", tt.want, m.Value())
			}
		})
	}
}
