package plan

import (
	"context"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/report"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/stores"
	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
)

// defaultStoreFile is the store filename used when AddStore gets no path.
const defaultStoreFile = "results.db"

// PlanConfig configures a plan facade.
type PlanConfig struct {
	// Runner executes plan steps against the external engine. Required.
	Runner engine.StepRunner

	// Config is the loaded optimization configuration. Required.
	Config *config.Config

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Plan is the facade optimization runs are built with. Steps added to the
// plan dispatch to the engine's step runner; trackers, report tables and
// result stores subscribe to the plan's event bus and observe the results
// the runner emits. Steps that emit evaluation events get sequential
// source tags "tag0", "tag1", ... so handlers can be scoped to the steps
// they were created for.
//
// A Plan is not safe for concurrent use; steps run one at a time on the
// calling goroutine, matching the bus's sequential delivery.
type Plan struct {
	runner engine.StepRunner
	bus    *engine.Bus
	cfg    *config.Config
	loader *config.Loader

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	vars   map[string]any
	tagID  int
	stores []*stores.SQLiteStore

	steps      *Registry[StepFactory]
	handlers   *Registry[HandlerFactory]
	evaluators *Registry[EvaluatorFactory]
}

// NewPlan creates a plan facade with the built-in step, handler and
// evaluator factories registered.
func NewPlan(cfg PlanConfig) (*Plan, error) {
	if cfg.Runner == nil {
		return nil, engine.NewConfigError("step runner is required", nil).WithComponent("plan")
	}
	if cfg.Config == nil {
		return nil, engine.NewConfigError("configuration is required", nil).WithComponent("plan")
	}

	logger := cfg.Logger
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultLoggingConfig())
	}

	p := &Plan{
		runner:     cfg.Runner,
		bus:        engine.NewBus(),
		cfg:        cfg.Config,
		loader:     config.NewLoader(),
		logger:     logger.NewComponentLogger("plan"),
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		vars:       make(map[string]any),
		steps:      NewRegistry[StepFactory]("step"),
		handlers:   NewRegistry[HandlerFactory]("event handler"),
		evaluators: NewRegistry[EvaluatorFactory]("evaluator"),
	}
	p.registerBuiltins()
	return p, nil
}

func (p *Plan) registerBuiltins() {
	_ = p.steps.Register("optimizer", func(p *Plan) (Step, error) {
		return &OptimizerStep{plan: p, tag: p.nextTag()}, nil
	})
	_ = p.steps.Register("evaluator", func(p *Plan) (Step, error) {
		return &EvaluatorStep{plan: p, tag: p.nextTag()}, nil
	})
	_ = p.steps.Register("workflow_job", func(p *Plan) (Step, error) {
		return &WorkflowJobStep{plan: p}, nil
	})
	_ = p.handlers.Register("tracker", newTrackerComponent)
	_ = p.handlers.Register("table", newTableComponent)
	_ = p.handlers.Register("store", newStoreComponent)
	_ = p.evaluators.Register("cached_evaluator", newCachedEvaluatorComponent)
}

// Bus returns the plan's event bus, which step runners emit events on.
func (p *Plan) Bus() *engine.Bus { return p.bus }

// Config returns the plan's configuration.
func (p *Plan) Config() *config.Config { return p.cfg }

// Steps returns the step factory registry, for registering custom steps.
func (p *Plan) Steps() *Registry[StepFactory] { return p.steps }

// Handlers returns the event handler factory registry.
func (p *Plan) Handlers() *Registry[HandlerFactory] { return p.handlers }

// Evaluators returns the evaluator factory registry.
func (p *Plan) Evaluators() *Registry[EvaluatorFactory] { return p.evaluators }

// ConfigCopy returns a deep copy of the configuration, so callers can
// modify it and pass it back as a per-run override.
func (p *Plan) ConfigCopy() (*config.Config, error) {
	content, err := yaml.Marshal(p.cfg)
	if err != nil {
		return nil, engine.NewConfigError("cannot copy configuration", err).WithComponent("plan")
	}
	var out config.Config
	if err := yaml.Unmarshal(content, &out); err != nil {
		return nil, engine.NewConfigError("cannot copy configuration", err).WithComponent("plan")
	}
	return &out, nil
}

// Var returns a plan variable. Report tables resolve "$name" metadata
// references through it.
func (p *Plan) Var(name string) (any, bool) {
	value, ok := p.vars[name]
	return value, ok
}

// SetVar sets a plan variable.
func (p *Plan) SetVar(name string, value any) {
	p.vars[name] = value
}

// HasVar reports whether a plan variable is set.
func (p *Plan) HasVar(name string) bool {
	_, ok := p.vars[name]
	return ok
}

// nextTag draws the next source tag from the plan's sequence.
func (p *Plan) nextTag() string {
	tag := fmt.Sprintf("tag%d", p.tagID)
	p.tagID++
	return tag
}

// NewStep instantiates a registered step by name.
func (p *Plan) NewStep(name string) (Step, error) {
	factory, err := p.steps.Lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(p)
}

// NewHandler instantiates a registered event handler by name. The handler
// is not subscribed to the bus; the Add methods do that.
func (p *Plan) NewHandler(name string, opts any) (engine.EventHandler, error) {
	factory, err := p.handlers.Lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(p, opts)
}

// NewEvaluator instantiates a registered evaluator by name.
func (p *Plan) NewEvaluator(name string, opts any) (engine.Evaluator, error) {
	factory, err := p.evaluators.Lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(p, opts)
}

// AddOptimizer adds an optimizer step carrying the next source tag.
func (p *Plan) AddOptimizer() (*OptimizerStep, error) {
	step, err := p.NewStep("optimizer")
	if err != nil {
		return nil, err
	}
	return step.(*OptimizerStep), nil
}

// AddEvaluator adds an evaluation step carrying the next source tag.
func (p *Plan) AddEvaluator() (*EvaluatorStep, error) {
	step, err := p.NewStep("evaluator")
	if err != nil {
		return nil, err
	}
	return step.(*EvaluatorStep), nil
}

// AddWorkflowJob adds a workflow-job step. Workflow jobs emit no
// evaluation events and carry no tag.
func (p *Plan) AddWorkflowJob() (*WorkflowJobStep, error) {
	step, err := p.NewStep("workflow_job")
	if err != nil {
		return nil, err
	}
	return step.(*WorkflowJobStep), nil
}

// AddTracker attaches a result tracker to the bus and returns it.
func (p *Plan) AddTracker(opts TrackerOptions) (*Tracker, error) {
	handler, err := p.NewHandler("tracker", opts)
	if err != nil {
		return nil, err
	}
	tracker := handler.(*Tracker)
	p.bus.Subscribe(tracker)
	return tracker, nil
}

// AddTable attaches a report table handler to the bus. The tables are
// written to the configured output folder unless the options say
// otherwise.
func (p *Plan) AddTable(opts TableOptions) (*report.TableHandler, error) {
	handler, err := p.NewHandler("table", opts)
	if err != nil {
		return nil, err
	}
	tables := handler.(*report.TableHandler)
	p.bus.Subscribe(tables)
	return tables, nil
}

// AddStore attaches a result store handler to the bus. When the options
// carry no open store, one is opened under the configured output folder
// and closed with the plan.
func (p *Plan) AddStore(ctx context.Context, opts StoreOptions) (*stores.StoreHandler, error) {
	if opts.Store == nil {
		path := opts.Path
		if path == "" {
			path = filepath.Join(p.cfg.Environment.OutputFolder, defaultStoreFile)
		}
		store, err := stores.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		p.stores = append(p.stores, store)
		opts.Store = store
	}

	handler, err := p.NewHandler("store", opts)
	if err != nil {
		return nil, err
	}
	storeHandler := handler.(*stores.StoreHandler)
	p.bus.Subscribe(storeHandler)
	return storeHandler, nil
}

// AddCachedEvaluator wraps an evaluator with the caching evaluator.
func (p *Plan) AddCachedEvaluator(inner engine.Evaluator) (*CachedEvaluator, error) {
	evaluator, err := p.NewEvaluator("cached_evaluator", CachedEvaluatorOptions{Inner: inner})
	if err != nil {
		return nil, err
	}
	return evaluator.(*CachedEvaluator), nil
}

// Close releases resources the plan opened, such as result stores.
func (p *Plan) Close() error {
	var first error
	for _, store := range p.stores {
		if err := store.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.stores = nil
	return first
}

// axisNames builds the display names report tables use.
func (p *Plan) axisNames() results.Names {
	return config.AxisNames(p.cfg)
}

// variableTransform returns the plan's control transform, or nil when the
// controls are unscaled.
func (p *Plan) variableTransform() results.VariableTransform {
	if scaler := config.NewControlScaler(p.cfg); scaler != nil {
		return scaler
	}
	return nil
}

// configMap renders the configuration as a generic document, for exposure
// to plan scripts.
func (p *Plan) configMap() (map[string]any, error) {
	content, err := yaml.Marshal(p.cfg)
	if err != nil {
		return nil, engine.NewConfigError("cannot encode configuration", err).WithComponent("plan")
	}
	var out map[string]any
	if err := yaml.Unmarshal(content, &out); err != nil {
		return nil, engine.NewConfigError("cannot encode configuration", err).WithComponent("plan")
	}
	return out, nil
}

// revalidate runs a configuration override through the full load pipeline,
// so per-run overrides get the same checks as the initial configuration.
func (p *Plan) revalidate(ctx context.Context, cfg *config.Config) (*config.Config, error) {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, engine.NewConfigError("cannot encode configuration override", err).WithComponent("plan")
	}
	return p.loader.Load(ctx, content)
}

// stepTags collects the source tags of the given steps. Untagged steps,
// such as workflow jobs, contribute nothing.
func stepTags(steps []Step) []string {
	var tags []string
	for _, step := range steps {
		if step == nil {
			continue
		}
		if tag := step.Tag(); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// TableOptions configures a report table handler attached to a plan.
type TableOptions struct {
	// Track are the steps whose events feed the tables. Empty tracks every
	// event on the bus.
	Track []Step

	// Dir overrides the output directory. Defaults to the configured
	// output folder.
	Dir string

	// Kinds restricts the produced tables. Empty produces all kinds.
	Kinds []report.TableKind

	// Metadata is attached to every rendered row. String values starting
	// with "$" resolve against plan variables per event.
	Metadata map[string]any

	// MinHeaderLines overrides the minimum header height.
	MinHeaderLines int
}

func newTableComponent(p *Plan, opts any) (engine.EventHandler, error) {
	tableOpts, ok := opts.(TableOptions)
	if !ok {
		return nil, engine.NewConfigError(
			fmt.Sprintf("table handler options have type %T", opts), nil,
		).WithComponent("plan")
	}

	dir := tableOpts.Dir
	if dir == "" {
		dir = p.cfg.Environment.OutputFolder
	}

	return report.NewTableHandler(report.TableHandlerConfig{
		Dir:            dir,
		Kinds:          tableOpts.Kinds,
		Tags:           stepTags(tableOpts.Track),
		Names:          p.axisNames(),
		Metadata:       tableOpts.Metadata,
		Vars:           p.Var,
		MinHeaderLines: tableOpts.MinHeaderLines,
		Logger:         p.logger,
		Metrics:        p.metrics,
	})
}

// StoreOptions configures a result store handler attached to a plan.
type StoreOptions struct {
	// Store is an open results store. When nil, a store is opened at Path.
	Store *stores.SQLiteStore

	// Path locates the store database when Store is nil. Defaults to
	// "results.db" under the configured output folder.
	Path string

	// Track are the steps whose events are persisted. Empty persists every
	// event on the bus.
	Track []Step
}

func newStoreComponent(p *Plan, opts any) (engine.EventHandler, error) {
	storeOpts, ok := opts.(StoreOptions)
	if !ok {
		return nil, engine.NewConfigError(
			fmt.Sprintf("store handler options have type %T", opts), nil,
		).WithComponent("plan")
	}
	return stores.NewStoreHandler(stores.StoreHandlerConfig{
		Store:   storeOpts.Store,
		Tags:    stepTags(storeOpts.Track),
		Logger:  p.logger,
		Metrics: p.metrics,
	})
}
