package config

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

// Loader parses and validates YAML optimization configurations. Documents
// pass three stages: YAML decoding, CUE schema validation of the raw
// document, and struct-tag validation of the decoded configuration.
type Loader struct {
	registry  *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a configuration loader with the built-in schemas.
func NewLoader() *Loader {
	return &Loader{
		registry:  NewSchemaRegistry(),
		validator: validator.New(),
	}
}

// Registry returns the loader's schema registry.
func (l *Loader) Registry() *SchemaRegistry { return l.registry }

// LoadFile loads and validates a configuration file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewIOError(fmt.Sprintf("cannot read config %q", path), err).WithComponent("config")
	}
	cfg, err := l.Load(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load parses and validates YAML configuration content.
func (l *Loader) Load(ctx context.Context, content []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, engine.NewConfigError("invalid YAML", err).WithComponent("config")
	}
	if raw == nil {
		return nil, engine.NewConfigError("empty configuration", nil).WithComponent("config")
	}

	if err := l.registry.ValidateConfig(ctx, raw); err != nil {
		return nil, engine.NewValidationError("configuration schema validation failed", err).WithComponent("config")
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, engine.NewConfigError("cannot decode configuration", err).WithComponent("config")
	}
	cfg.applyDefaults()

	if err := l.validator.Struct(&cfg); err != nil {
		return nil, engine.NewValidationError("configuration validation failed", err).WithComponent("config")
	}
	if err := cfg.checkConsistency(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkConsistency verifies cross-field constraints struct tags cannot
// express.
func (c *Config) checkConsistency() error {
	if n := len(c.Model.RealizationWeights); n != 0 && n != len(c.Model.Realizations) {
		return engine.NewValidationError(
			fmt.Sprintf("realization_weights has %d entries for %d realizations", n, len(c.Model.Realizations)), nil,
		).WithComponent("config")
	}
	seen := make(map[string]struct{})
	for _, group := range c.Controls {
		for _, variable := range group.Variables {
			name := group.Name + "." + variable.Name
			if _, dup := seen[name]; dup {
				return engine.NewValidationError(
					fmt.Sprintf("duplicate control %q", name), nil,
				).WithComponent("config")
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}
