package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
)

// VarResolver looks up a plan variable by name. Metadata values of the form
// "$name" are resolved through it before rendering.
type VarResolver func(name string) (any, bool)

// TableHandlerConfig configures a table event handler.
type TableHandlerConfig struct {
	// Dir is the output directory shared by all five table files.
	Dir string
	// Kinds restricts which tables are produced. Empty selects all kinds.
	Kinds []TableKind
	// Tags filters events by source tag. An event is handled when any of
	// these tags is present on it; an empty set accepts every event.
	Tags []string
	// Names supplies display names per axis.
	Names results.Names
	// Metadata is attached to every rendered row. String values starting
	// with "$" are resolved as plan variables on each event.
	Metadata map[string]any
	// Vars resolves "$name" metadata references. Required when Metadata
	// contains such references.
	Vars VarResolver
	// MinHeaderLines overrides the minimum header height of all tables.
	MinHeaderLines int

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
}

// TableHandler renders finished-evaluation events into report tables. It
// subscribes to finished-evaluation events only, accumulates the results of
// each event into all configured tables, and rewrites every table file that
// gained rows.
type TableHandler struct {
	tables   []*Table
	tags     []string
	metadata map[string]any
	vars     VarResolver
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
}

// NewTableHandler creates the tables and their output directory up front,
// so misconfigured output paths fail before any evaluation runs.
func NewTableHandler(cfg TableHandlerConfig) (*TableHandler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultLoggingConfig())
	}
	logger = logger.NewComponentLogger("table")

	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = TableKinds
	}

	tables := make([]*Table, 0, len(kinds))
	for _, kind := range kinds {
		table, err := NewTable(TableConfig{
			Kind:           kind,
			Dir:            cfg.Dir,
			Names:          cfg.Names,
			MinHeaderLines: cfg.MinHeaderLines,
		})
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	return &TableHandler{
		tables:   tables,
		tags:     cfg.Tags,
		metadata: cfg.Metadata,
		vars:     cfg.Vars,
		logger:   logger,
		metrics:  cfg.Metrics,
	}, nil
}

// EventTypes reports the event types the handler subscribes to.
func (h *TableHandler) EventTypes() []engine.EventType {
	return []engine.EventType{engine.EventFinishedEvaluation}
}

// HandleEvent extracts the event's results into every table and saves the
// tables that changed. Events from untracked sources are ignored. Duplicate
// deliveries of the same batch append duplicate rows; the handler does not
// deduplicate.
func (h *TableHandler) HandleEvent(ctx context.Context, event *engine.Event) error {
	if event.Type != engine.EventFinishedEvaluation || len(event.Results) == 0 {
		return nil
	}
	if !h.accepts(event) {
		return nil
	}

	metadata, err := h.resolveMetadata()
	if err != nil {
		return err
	}

	start := time.Now()
	for _, table := range h.tables {
		if !table.Add(event.Results, metadata, event.Transforms) {
			continue
		}
		if err := table.Save(); err != nil {
			return err
		}
		if h.metrics != nil {
			h.metrics.RecordTableRows(string(table.Kind()), table.Rows())
		}
		h.logger.WithField("table", string(table.Kind())).
			WithField("rows", table.Rows()).
			Debug("table updated")
	}
	if h.metrics != nil {
		h.metrics.RecordEventHandled(string(event.Type), time.Since(start))
	}
	_ = ctx
	return nil
}

// accepts applies the source-tag filter. An empty tag set accepts all
// events, which is what file replay uses; plan-attached handlers always
// carry the step's tag.
func (h *TableHandler) accepts(event *engine.Event) bool {
	if len(h.tags) == 0 {
		return true
	}
	for _, tag := range h.tags {
		if event.HasTag(tag) {
			return true
		}
	}
	return false
}

// resolveMetadata substitutes "$name" references with the current plan
// variable values. Values starting with "$$" are literals and pass through
// unchanged. The source map is never modified; resolution happens per event
// so variables updated between batches take effect.
func (h *TableHandler) resolveMetadata() (map[string]any, error) {
	if h.metadata == nil {
		return nil, nil
	}
	resolved := make(map[string]any, len(h.metadata))
	for key, value := range h.metadata {
		text, isString := value.(string)
		if !isString || !strings.HasPrefix(text, "$") || strings.HasPrefix(text, "$$") {
			resolved[key] = value
			continue
		}
		name := strings.TrimPrefix(text, "$")
		if h.vars == nil {
			return nil, engine.NewConfigError(
				fmt.Sprintf("metadata references variable %q but no resolver is configured", name), nil,
			).WithComponent("table")
		}
		current, ok := h.vars(name)
		if !ok {
			return nil, engine.NewConfigError(
				fmt.Sprintf("metadata references unknown variable %q", name), nil,
			).WithComponent("table")
		}
		resolved[key] = current
	}
	return resolved, nil
}
