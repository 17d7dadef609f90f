package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/report"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
)

// TrackWhat selects which results a tracker retains.
type TrackWhat string

const (
	// TrackBest keeps the feasible function result with the lowest
	// weighted objective.
	TrackBest TrackWhat = "best"

	// TrackLast keeps the most recent feasible function result.
	TrackLast TrackWhat = "last"

	// TrackAll keeps every delivered record.
	TrackAll TrackWhat = "all"
)

// trackerTableHeaderLines is the minimum header height of tracker tables.
// Tracker tables are ad hoc snapshots, not report files, so no padding is
// forced.
const trackerTableHeaderLines = 1

// TrackerOptions configures a result tracker.
type TrackerOptions struct {
	// What selects the retention policy. Defaults to TrackBest.
	What TrackWhat

	// ConstraintTolerance enables feasibility filtering: function results
	// with a constraint violation above it are not tracked. Nil disables
	// the test.
	ConstraintTolerance *float64

	// Track are the steps whose events are tracked. Empty tracks every
	// event on the bus.
	Track []Step
}

// Tracker retains selected result records from finished-evaluation events.
// Scripts read back the tracked variables or render them as a table after
// the steps ran.
type Tracker struct {
	what      TrackWhat
	tolerance *float64
	tags      []string
	names     results.Names
	transform results.VariableTransform
	logger    *telemetry.Logger

	tracked []results.Record
}

func newTrackerComponent(p *Plan, opts any) (engine.EventHandler, error) {
	trackerOpts, ok := opts.(TrackerOptions)
	if !ok {
		return nil, engine.NewConfigError(
			fmt.Sprintf("tracker options have type %T", opts), nil,
		).WithComponent("plan")
	}

	what := trackerOpts.What
	if what == "" {
		what = TrackBest
	}
	switch what {
	case TrackBest, TrackLast, TrackAll:
	default:
		return nil, engine.NewConfigError(
			fmt.Sprintf("unknown tracker policy %q", what), nil,
		).WithComponent("tracker")
	}

	return &Tracker{
		what:      what,
		tolerance: trackerOpts.ConstraintTolerance,
		tags:      stepTags(trackerOpts.Track),
		names:     p.axisNames(),
		transform: p.variableTransform(),
		logger:    p.logger.NewComponentLogger("tracker"),
	}, nil
}

// What returns the tracker's retention policy.
func (t *Tracker) What() TrackWhat { return t.what }

// EventTypes reports the event types the tracker subscribes to.
func (t *Tracker) EventTypes() []engine.EventType {
	return []engine.EventType{engine.EventFinishedEvaluation}
}

// HandleEvent updates the tracked records from a finished-evaluation
// event. Events from untracked sources are ignored.
func (t *Tracker) HandleEvent(ctx context.Context, event *engine.Event) error {
	if event.Type != engine.EventFinishedEvaluation || len(event.Results) == 0 {
		return nil
	}
	if !t.accepts(event) {
		return nil
	}
	if event.Transforms != nil {
		t.transform = event.Transforms
	}

	for _, record := range event.Results {
		switch t.what {
		case TrackAll:
			t.tracked = append(t.tracked, record)
		case TrackLast:
			if fn, ok := record.(*results.FunctionResults); ok && t.feasible(fn) {
				t.tracked = []results.Record{fn}
			}
		case TrackBest:
			fn, ok := record.(*results.FunctionResults)
			if !ok || fn.Functions == nil || !t.feasible(fn) {
				continue
			}
			if current := t.bestTracked(); current == nil ||
				fn.Functions.WeightedObjective < current.Functions.WeightedObjective {
				t.tracked = []results.Record{fn}
				t.logger.WithBatchID(fn.Batch).Debug("new best result")
			}
		}
	}
	_ = ctx
	return nil
}

func (t *Tracker) bestTracked() *results.FunctionResults {
	if len(t.tracked) == 0 {
		return nil
	}
	fn, _ := t.tracked[0].(*results.FunctionResults)
	return fn
}

// feasible tests the record's constraint violations against the
// configured tolerance. Records without constraint diagnostics pass.
func (t *Tracker) feasible(r *results.FunctionResults) bool {
	if t.tolerance == nil || r.Constraints == nil {
		return true
	}
	violations := [][]float64{
		r.Constraints.BoundViolation,
		r.Constraints.LinearViolation,
		r.Constraints.NonlinearViolation,
	}
	for _, values := range violations {
		for _, v := range values {
			if v > *t.tolerance {
				return false
			}
		}
	}
	return true
}

func (t *Tracker) accepts(event *engine.Event) bool {
	if len(t.tags) == 0 {
		return true
	}
	for _, tag := range t.tags {
		if event.HasTag(tag) {
			return true
		}
	}
	return false
}

// Results returns the tracked records in tracking order.
func (t *Tracker) Results() []results.Record {
	out := make([]results.Record, len(t.tracked))
	copy(out, t.tracked)
	return out
}

// Reset drops all tracked records.
func (t *Tracker) Reset() {
	t.tracked = nil
}

// Variables returns the user-space control values of the most recent
// tracked function result, or nil when none is tracked.
func (t *Tracker) Variables() []float64 {
	for i := len(t.tracked) - 1; i >= 0; i-- {
		fn, ok := t.tracked[i].(*results.FunctionResults)
		if !ok || fn.Evaluations == nil || len(fn.Evaluations.Variables) == 0 {
			continue
		}
		out := make([]float64, len(fn.Evaluations.Variables))
		for j, value := range fn.Evaluations.Variables {
			if t.transform != nil {
				value = t.transform.ToUserVariable(j, value)
			}
			out[j] = value
		}
		return out
	}
	return nil
}

// Table renders the tracked records as one of the report tables and
// returns the text. Unknown kinds are plugin errors.
func (t *Tracker) Table(kind report.TableKind) (string, error) {
	schema, err := report.SchemaFor(kind)
	if err != nil {
		return "", err
	}
	schema = schema.WithMetadata(t.metadataKeys())
	fragment := report.Extract(t.tracked, kind, schema, t.names, t.transform, nil)
	return report.Render(fragment, schema, trackerTableHeaderLines), nil
}

// metadataKeys collects the metadata keys of the tracked records,
// first-seen order across records, alphabetical within one record.
func (t *Tracker) metadataKeys() []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, record := range t.tracked {
		var fresh []string
		for key := range record.Meta() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fresh = append(fresh, key)
		}
		sort.Strings(fresh)
		keys = append(keys, fresh...)
	}
	return keys
}
