package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("config", builtinConfigSchema)
	sr.RegisterSchema("controls", builtinControlsSchema)
	sr.RegisterSchema("workflow_job", builtinWorkflowJobSchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	definition := schema.LookupPath(cue.ParsePath("#" + schemaName))
	if !definition.Exists() {
		definition = schema
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := definition.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// ValidateConfig validates a decoded configuration document against the
// top-level config schema.
func (sr *SchemaRegistry) ValidateConfig(ctx context.Context, data map[string]any) error {
	return sr.ValidateAgainstSchema(ctx, "config", data)
}

// Built-in schema definitions

const builtinConfigSchema = `
// Top-level optimization configuration schema
#config: {
	environment?: {
		output_folder?: string
		random_seed?:   int
		log_level?:     "trace" | "debug" | "info" | "warn" | "error"
	}

	controls: [...#group] & [_, ...]

	objective_functions: [...{
		name:    string
		weight?: number & >=0
	}] & [_, ...]

	output_constraints?: [...{
		name:         string
		lower_bound?: number
		upper_bound?: number
	}]

	model: {
		realizations: [...int] & [_, ...]
		realization_weights?: [...number]
	}

	optimization: {
		algorithm:                 string
		max_function_evaluations?: int & >=0
		convergence_tolerance?:    number & >=0
		constraint_tolerance?:     number & >=0
	}

	install_workflow_jobs?: [...#workflow_job]

	definitions?: {[string]: _}
}

#group: {
	name: string & =~"^[a-zA-Z0-9_-]+$"
	variables: [...{
		name:           string & =~"^[a-zA-Z0-9_.-]+$"
		initial_guess?: number
		min?:           number
		max?:           number
	}] & [_, ...]
	perturbation_magnitude?: number & >=0
	scale?:                  number
	offset?:                 number
}

#workflow_job: {
	name:       string & =~"^[a-zA-Z0-9_-]+$"
	executable: string
	args?: [...string]
}
`

const builtinControlsSchema = `
#controls: [...{
	name: string & =~"^[a-zA-Z0-9_-]+$"
	variables: [...{
		name:           string & =~"^[a-zA-Z0-9_.-]+$"
		initial_guess?: number
		min?:           number
		max?:           number
	}] & [_, ...]
	perturbation_magnitude?: number & >=0
	scale?:                  number
	offset?:                 number
}]
`

const builtinWorkflowJobSchema = `
#workflow_job: {
	name:       string & =~"^[a-zA-Z0-9_-]+$"
	executable: string
	args?: [...string]
}
`
