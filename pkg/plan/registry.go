package plan

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

// DefaultNamespace is assumed when a component name carries no namespace.
const DefaultNamespace = "everest"

// StepFactory builds a plan step. Factories of steps that emit evaluation
// events draw a tag from the plan's tag sequence themselves.
type StepFactory func(p *Plan) (Step, error)

// HandlerFactory builds an event handler from a factory-specific options
// value.
type HandlerFactory func(p *Plan, opts any) (engine.EventHandler, error)

// EvaluatorFactory builds an evaluator from a factory-specific options
// value.
type EvaluatorFactory func(p *Plan, opts any) (engine.Evaluator, error)

// Registry maps namespaced component names to factories. Names have the
// form "namespace/name"; a bare name resolves in the default namespace.
type Registry[F any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]F
}

// NewRegistry creates an empty registry. The kind appears in error
// messages.
func NewRegistry[F any](kind string) *Registry[F] {
	return &Registry[F]{kind: kind, factories: make(map[string]F)}
}

// Register adds a factory under the given name. Registering the same name
// twice is a configuration error.
func (r *Registry[F]) Register(name string, factory F) error {
	key := qualify(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[key]; exists {
		return engine.NewConfigError(fmt.Sprintf("%s %q is already registered", r.kind, key), nil)
	}
	r.factories[key] = factory
	return nil
}

// Lookup resolves a name to its factory. Unknown names are plugin errors.
func (r *Registry[F]) Lookup(name string) (F, error) {
	key := qualify(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[key]
	if !ok {
		var zero F
		return zero, engine.NewPluginError(fmt.Sprintf("unknown %s %q", r.kind, key))
	}
	return factory, nil
}

// Names returns the registered names, sorted.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// qualify prefixes bare names with the default namespace. The last slash
// separates the name from its namespace.
func qualify(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return DefaultNamespace + "/" + name
}
