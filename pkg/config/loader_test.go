package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

const validYAML = `
environment:
  output_folder: everest_output
controls:
  - name: point
    variables:
      - name: x
        initial_guess: 0.1
        min: -1.0
        max: 1.0
      - name: y
        initial_guess: 0.2
        min: -1.0
        max: 1.0
    perturbation_magnitude: 0.01
objective_functions:
  - name: distance
    weight: 1.0
model:
  realizations: [0, 1]
optimization:
  algorithm: optpp_q_newton
  max_function_evaluations: 4
`

func loadValid(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewLoader().Load(context.Background(), []byte(validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestLoad_Valid(t *testing.T) {
	cfg := loadValid(t)

	if cfg.Environment.OutputFolder != "everest_output" {
		t.Errorf("output folder = %s", cfg.Environment.OutputFolder)
	}
	if len(cfg.Controls) != 1 || len(cfg.Controls[0].Variables) != 2 {
		t.Fatalf("controls not decoded: %+v", cfg.Controls)
	}
	if cfg.Controls[0].Variables[1].InitialGuess != 0.2 {
		t.Errorf("initial guess = %v", cfg.Controls[0].Variables[1].InitialGuess)
	}
	if cfg.Optimization.Algorithm != "optpp_q_newton" {
		t.Errorf("algorithm = %s", cfg.Optimization.Algorithm)
	}
}

func TestLoad_DefaultOutputFolder(t *testing.T) {
	content := []byte(`
controls:
  - name: g
    variables:
      - {name: a, min: 0, max: 1}
objective_functions:
  - name: f
model:
  realizations: [0]
optimization:
  algorithm: slsqp
`)
	cfg, err := NewLoader().Load(context.Background(), content)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Environment.OutputFolder != "output" {
		t.Errorf("default output folder = %s, want output", cfg.Environment.OutputFolder)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", ":\n  - ["},
		{"empty", ""},
		{"missing controls", `
objective_functions: [{name: f}]
model: {realizations: [0]}
optimization: {algorithm: slsqp}
`},
		{"missing algorithm", `
controls: [{name: g, variables: [{name: a, min: 0, max: 1}]}]
objective_functions: [{name: f}]
model: {realizations: [0]}
optimization: {}
`},
		{"negative weight", `
controls: [{name: g, variables: [{name: a, min: 0, max: 1}]}]
objective_functions: [{name: f, weight: -1}]
model: {realizations: [0]}
optimization: {algorithm: slsqp}
`},
		{"bad log level", `
environment: {log_level: loud}
controls: [{name: g, variables: [{name: a, min: 0, max: 1}]}]
objective_functions: [{name: f}]
model: {realizations: [0]}
optimization: {algorithm: slsqp}
`},
		{"max below min", `
controls: [{name: g, variables: [{name: a, min: 1, max: 0}]}]
objective_functions: [{name: f}]
model: {realizations: [0]}
optimization: {algorithm: slsqp}
`},
		{"weight count mismatch", `
controls: [{name: g, variables: [{name: a, min: 0, max: 1}]}]
objective_functions: [{name: f}]
model: {realizations: [0, 1], realization_weights: [1.0]}
optimization: {algorithm: slsqp}
`},
		{"duplicate control", `
controls:
  - name: g
    variables:
      - {name: a, min: 0, max: 1}
      - {name: a, min: 0, max: 1}
objective_functions: [{name: f}]
model: {realizations: [0]}
optimization: {algorithm: slsqp}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().Load(context.Background(), []byte(tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !engine.IsConfig(err) && !engine.IsValidation(err) {
				t.Errorf("error not classified as config/validation: %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(cfg.Model.Realizations) != 2 {
		t.Errorf("realizations = %v", cfg.Model.Realizations)
	}

	if _, err := NewLoader().LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSchemaRegistry(t *testing.T) {
	registry := NewSchemaRegistry()

	if _, ok := registry.GetSchema("config"); !ok {
		t.Error("builtin config schema missing")
	}
	if len(registry.ListSchemas()) < 2 {
		t.Errorf("schemas = %v", registry.ListSchemas())
	}

	if err := registry.RegisterSchema("broken", "a: b: c:"); err == nil {
		t.Error("expected compile error for broken schema")
	}

	err := registry.ValidateAgainstSchema(context.Background(), "nope", map[string]any{})
	if err == nil {
		t.Error("expected error for unknown schema")
	}
}
