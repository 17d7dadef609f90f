package config

import (
	"math"
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

func testConfig() *Config {
	return &Config{
		Controls: []ControlGroup{
			{
				Name: "point",
				Variables: []ControlVariable{
					{Name: "x", InitialGuess: 0.1, Min: -1, Max: 1},
					{Name: "y", InitialGuess: 0.2, Min: -1, Max: 1},
				},
				PerturbationMagnitude: 0.01,
			},
			{
				Name: "rate",
				Variables: []ControlVariable{
					{Name: "q", InitialGuess: 0.5, Min: 0, Max: 2},
				},
				PerturbationMagnitude: 0.05,
				Scale:                 100,
				Offset:                10,
			},
		},
		Objectives: []ObjectiveConfig{
			{Name: "npv", Weight: 3},
			{Name: "co2", Weight: 1},
		},
		OutputConstraints: []OutputConstraintConfig{{Name: "pressure"}},
		Model:             ModelConfig{Realizations: []int{3, 7}},
		Optimization: OptimizationConfig{
			Algorithm:              "optpp_q_newton",
			MaxFunctionEvaluations: 10,
			Tolerance:              1e-6,
		},
	}
}

func TestToOptimizerConfig(t *testing.T) {
	opt := ToOptimizerConfig(testConfig())

	if opt.Method != "optpp_q_newton" || opt.MaxFunctions != 10 {
		t.Errorf("method/max = %s/%d", opt.Method, opt.MaxFunctions)
	}
	if len(opt.InitialValues) != 3 {
		t.Fatalf("initial values = %v", opt.InitialValues)
	}
	if opt.InitialValues[2] != 0.5 || opt.LowerBounds[2] != 0 || opt.UpperBounds[2] != 2 {
		t.Errorf("third control not flattened in order: %v %v %v",
			opt.InitialValues, opt.LowerBounds, opt.UpperBounds)
	}
	if opt.PerturbationMagnitudes[0] != 0.01 || opt.PerturbationMagnitudes[2] != 0.05 {
		t.Errorf("perturbation magnitudes = %v", opt.PerturbationMagnitudes)
	}
	if math.Abs(opt.ObjectiveWeights[0]-0.75) > 1e-12 || math.Abs(opt.ObjectiveWeights[1]-0.25) > 1e-12 {
		t.Errorf("objective weights not normalized: %v", opt.ObjectiveWeights)
	}
	// No explicit realization weights: equal split.
	if math.Abs(opt.RealizationWeights[0]-0.5) > 1e-12 {
		t.Errorf("realization weights = %v", opt.RealizationWeights)
	}
}

func TestNormalizeWeights(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, nil},
		{"all zero", []float64{0, 0}, []float64{0.5, 0.5}},
		{"sums to one", []float64{2, 2}, []float64{0.5, 0.5}},
		{"single", []float64{5}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeWeights(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("weights = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestAxisNames(t *testing.T) {
	names := AxisNames(testConfig())

	if got := names.Name(results.AxisVariable, 2); got != "rate.q" {
		t.Errorf("variable name = %s, want rate.q", got)
	}
	if got := names.Name(results.AxisObjective, 1); got != "co2" {
		t.Errorf("objective name = %s", got)
	}
	if got := names.Name(results.AxisNonlinearConstraint, 0); got != "pressure" {
		t.Errorf("constraint name = %s", got)
	}
	if got := names.Name(results.AxisRealization, 1); got != "7" {
		t.Errorf("realization label = %s, want configured id", got)
	}
	// Out of range falls back to the index.
	if got := names.Name(results.AxisPerturbation, 4); got != "4" {
		t.Errorf("fallback = %s, want 4", got)
	}
}

func TestControlScaler(t *testing.T) {
	scaler := NewControlScaler(testConfig())
	if scaler == nil {
		t.Fatal("expected a scaler for a config with scaled controls")
	}

	// First group unscaled, second group scaled.
	if got := scaler.ToUserVariable(0, 0.1); got != 0.1 {
		t.Errorf("unscaled control transformed: %v", got)
	}
	if got := scaler.ToUserVariable(2, 0.5); got != 60 {
		t.Errorf("scaled control = %v, want 0.5*100+10", got)
	}
	// Out-of-range index passes through.
	if got := scaler.ToUserVariable(9, 1.5); got != 1.5 {
		t.Errorf("out of range = %v", got)
	}
}

func TestControlScaler_NilWhenUnscaled(t *testing.T) {
	cfg := testConfig()
	for i := range cfg.Controls {
		cfg.Controls[i].Scale = 0
		cfg.Controls[i].Offset = 0
	}
	if scaler := NewControlScaler(cfg); scaler != nil {
		t.Error("expected nil scaler for unscaled controls")
	}
}
