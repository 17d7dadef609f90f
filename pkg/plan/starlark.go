package plan

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"gopkg.in/yaml.v3"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/report"
)

// planValue exposes the plan facade to Starlark scripts. Plan variables
// are reachable both through get/set/has and through the mapping protocol
// (plan["name"]).
type planValue struct {
	ctx  context.Context
	plan *Plan
}

func newPlanValue(ctx context.Context, p *Plan) *planValue {
	return &planValue{ctx: ctx, plan: p}
}

var planAttrNames = []string{
	"add_evaluator", "add_optimizer", "add_store", "add_table",
	"add_tracker", "add_workflow_job", "config", "config_copy",
	"get", "has", "set",
}

func (v *planValue) String() string        { return "<plan>" }
func (v *planValue) Type() string          { return "plan" }
func (v *planValue) Freeze()               {}
func (v *planValue) Truth() starlark.Bool  { return starlark.True }
func (v *planValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: plan") }
func (v *planValue) AttrNames() []string   { return planAttrNames }

// Get implements starlark.Mapping for plan["name"].
func (v *planValue) Get(key starlark.Value) (starlark.Value, bool, error) {
	name, ok := key.(starlark.String)
	if !ok {
		return nil, false, fmt.Errorf("plan variable name must be a string, got %s", key.Type())
	}
	value, found := v.plan.Var(string(name))
	if !found {
		return starlark.None, false, nil
	}
	converted, err := toStarlarkValue(value)
	if err != nil {
		return nil, false, err
	}
	return converted, true, nil
}

// SetKey implements starlark.HasSetKey for plan["name"] = value.
func (v *planValue) SetKey(key, value starlark.Value) error {
	name, ok := key.(starlark.String)
	if !ok {
		return fmt.Errorf("plan variable name must be a string, got %s", key.Type())
	}
	converted, err := fromStarlarkValue(value)
	if err != nil {
		return err
	}
	v.plan.SetVar(string(name), converted)
	return nil
}

func (v *planValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "config":
		raw, err := v.plan.configMap()
		if err != nil {
			return nil, err
		}
		return toStarlarkValue(raw)
	case "config_copy":
		return starlark.NewBuiltin(name, v.attrConfigCopy), nil
	case "add_optimizer":
		return starlark.NewBuiltin(name, v.attrAddOptimizer), nil
	case "add_evaluator":
		return starlark.NewBuiltin(name, v.attrAddEvaluator), nil
	case "add_workflow_job":
		return starlark.NewBuiltin(name, v.attrAddWorkflowJob), nil
	case "add_tracker":
		return starlark.NewBuiltin(name, v.attrAddTracker), nil
	case "add_table":
		return starlark.NewBuiltin(name, v.attrAddTable), nil
	case "add_store":
		return starlark.NewBuiltin(name, v.attrAddStore), nil
	case "get":
		return starlark.NewBuiltin(name, v.attrGet), nil
	case "set":
		return starlark.NewBuiltin(name, v.attrSet), nil
	case "has":
		return starlark.NewBuiltin(name, v.attrHas), nil
	}
	return nil, nil
}

func (v *planValue) attrConfigCopy(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	raw, err := v.plan.configMap()
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(raw)
}

func (v *planValue) attrAddOptimizer(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	step, err := v.plan.AddOptimizer()
	if err != nil {
		return nil, err
	}
	return &stepValue{ctx: v.ctx, step: step}, nil
}

func (v *planValue) attrAddEvaluator(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	step, err := v.plan.AddEvaluator()
	if err != nil {
		return nil, err
	}
	return &stepValue{ctx: v.ctx, step: step}, nil
}

func (v *planValue) attrAddWorkflowJob(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	step, err := v.plan.AddWorkflowJob()
	if err != nil {
		return nil, err
	}
	return &workflowValue{ctx: v.ctx, step: step}, nil
}

func (v *planValue) attrAddTracker(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var (
		track     starlark.Value
		what      = string(TrackBest)
		tolerance starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"track?", &track, "what?", &what, "constraint_tolerance?", &tolerance); err != nil {
		return nil, err
	}

	steps, err := stepsFromValue(track)
	if err != nil {
		return nil, err
	}
	opts := TrackerOptions{What: TrackWhat(what), Track: steps}
	if tolerance != nil && tolerance != starlark.None {
		value, ok := starlark.AsFloat(tolerance)
		if !ok {
			return nil, fmt.Errorf("constraint_tolerance must be a number, got %s", tolerance.Type())
		}
		opts.ConstraintTolerance = &value
	}

	tracker, err := v.plan.AddTracker(opts)
	if err != nil {
		return nil, err
	}
	return &trackerValue{tracker: tracker}, nil
}

func (v *planValue) attrAddTable(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var track, metadata starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"track?", &track, "metadata?", &metadata); err != nil {
		return nil, err
	}

	steps, err := stepsFromValue(track)
	if err != nil {
		return nil, err
	}
	meta, err := mapFromValue(metadata)
	if err != nil {
		return nil, err
	}

	if _, err := v.plan.AddTable(TableOptions{Track: steps, Metadata: meta}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (v *planValue) attrAddStore(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var track starlark.Value
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"track?", &track, "path?", &path); err != nil {
		return nil, err
	}

	steps, err := stepsFromValue(track)
	if err != nil {
		return nil, err
	}
	if _, err := v.plan.AddStore(v.ctx, StoreOptions{Path: path, Track: steps}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (v *planValue) attrGet(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	fallback := starlark.Value(starlark.None)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &fallback); err != nil {
		return nil, err
	}
	value, ok := v.plan.Var(name)
	if !ok {
		return fallback, nil
	}
	return toStarlarkValue(value)
}

func (v *planValue) attrSet(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	converted, err := fromStarlarkValue(value)
	if err != nil {
		return nil, err
	}
	v.plan.SetVar(name, converted)
	return starlark.None, nil
}

func (v *planValue) attrHas(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	return starlark.Bool(v.plan.HasVar(name)), nil
}

// stepValue wraps an optimizer or evaluation step for Starlark.
type stepValue struct {
	ctx  context.Context
	step Step
}

func (v *stepValue) String() string        { return fmt.Sprintf("<step %s>", v.step.Name()) }
func (v *stepValue) Type() string          { return "step" }
func (v *stepValue) Freeze()               {}
func (v *stepValue) Truth() starlark.Bool  { return starlark.True }
func (v *stepValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: step") }
func (v *stepValue) AttrNames() []string   { return []string{"name", "run", "tag"} }

func (v *stepValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "tag":
		return starlark.String(v.step.Tag()), nil
	case "name":
		return starlark.String(v.step.Name()), nil
	case "run":
		return starlark.NewBuiltin(name, v.attrRun), nil
	}
	return nil, nil
}

func (v *stepValue) attrRun(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var cfgValue, varsValue, metaValue starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"config?", &cfgValue, "variables?", &varsValue, "metadata?", &metaValue); err != nil {
		return nil, err
	}

	var opts RunOptions
	var err error
	if opts.Config, err = configFromValue(cfgValue); err != nil {
		return nil, err
	}
	if opts.Variables, err = vectorsFromValue(varsValue); err != nil {
		return nil, err
	}
	if opts.Metadata, err = mapFromValue(metaValue); err != nil {
		return nil, err
	}

	var exit engine.ExitCode
	switch step := v.step.(type) {
	case *OptimizerStep:
		exit, err = step.Run(v.ctx, opts)
	case *EvaluatorStep:
		exit, err = step.Run(v.ctx, opts)
	default:
		return nil, engine.NewPluginError(
			fmt.Sprintf("step %q does not support run options", v.step.Name()))
	}
	if err != nil {
		return nil, err
	}
	return starlark.String(exit.String()), nil
}

// workflowValue wraps a workflow-job step for Starlark.
type workflowValue struct {
	ctx  context.Context
	step *WorkflowJobStep
}

func (v *workflowValue) String() string        { return "<step workflow_job>" }
func (v *workflowValue) Type() string          { return "workflow_job" }
func (v *workflowValue) Freeze()               {}
func (v *workflowValue) Truth() starlark.Bool  { return starlark.True }
func (v *workflowValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: workflow_job") }
func (v *workflowValue) AttrNames() []string   { return []string{"name", "run", "tag"} }

func (v *workflowValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "tag":
		return starlark.String(""), nil
	case "name":
		return starlark.String(v.step.Name()), nil
	case "run":
		return starlark.NewBuiltin(name, v.attrRun), nil
	}
	return nil, nil
}

func (v *workflowValue) attrRun(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var jobsValue starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "jobs", &jobsValue); err != nil {
		return nil, err
	}
	jobs, err := stringsFromValue(jobsValue)
	if err != nil {
		return nil, err
	}

	jobReport, err := v.step.Run(v.ctx, jobs)
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(jobReport)
}

// trackerValue wraps a result tracker for Starlark.
type trackerValue struct {
	tracker *Tracker
}

func (v *trackerValue) String() string        { return fmt.Sprintf("<tracker %s>", v.tracker.What()) }
func (v *trackerValue) Type() string          { return "tracker" }
func (v *trackerValue) Freeze()               {}
func (v *trackerValue) Truth() starlark.Bool  { return starlark.True }
func (v *trackerValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: tracker") }
func (v *trackerValue) AttrNames() []string   { return []string{"reset", "table", "variables", "what"} }

func (v *trackerValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "what":
		return starlark.String(v.tracker.What()), nil
	case "variables":
		variables := v.tracker.Variables()
		if variables == nil {
			return starlark.None, nil
		}
		return toStarlarkValue(variables)
	case "table":
		return starlark.NewBuiltin(name, v.attrTable), nil
	case "reset":
		return starlark.NewBuiltin(name, v.attrReset), nil
	}
	return nil, nil
}

func (v *trackerValue) attrTable(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var kind string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "kind", &kind); err != nil {
		return nil, err
	}
	text, err := v.tracker.Table(report.TableKind(kind))
	if err != nil {
		return nil, err
	}
	return starlark.String(text), nil
}

func (v *trackerValue) attrReset(
	_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	v.tracker.Reset()
	return starlark.None, nil
}

// stepsFromValue unpacks a step, a list of steps, or None.
func stepsFromValue(value starlark.Value) ([]Step, error) {
	if value == nil || value == starlark.None {
		return nil, nil
	}
	if step, ok := asStep(value); ok {
		return []Step{step}, nil
	}
	iterable, ok := value.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("track must be a step or a list of steps, got %s", value.Type())
	}

	var steps []Step
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		step, ok := asStep(item)
		if !ok {
			return nil, fmt.Errorf("track list contains a %s, expected steps", item.Type())
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func asStep(value starlark.Value) (Step, bool) {
	switch v := value.(type) {
	case *stepValue:
		return v.step, true
	case *workflowValue:
		return v.step, true
	}
	return nil, false
}

// configFromValue converts a script-supplied configuration dict into a
// typed configuration. Full validation happens when the step runs.
func configFromValue(value starlark.Value) (*config.Config, error) {
	if value == nil || value == starlark.None {
		return nil, nil
	}
	raw, err := fromStarlarkValue(value)
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config must be a dict, got %s", value.Type())
	}

	content, err := yaml.Marshal(m)
	if err != nil {
		return nil, engine.NewConfigError("cannot encode configuration override", err).WithComponent("script")
	}
	var cfg config.Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, engine.NewConfigError("cannot decode configuration override", err).WithComponent("script")
	}
	return &cfg, nil
}

// vectorsFromValue unpacks a vector or a list of vectors.
func vectorsFromValue(value starlark.Value) ([][]float64, error) {
	if value == nil || value == starlark.None {
		return nil, nil
	}
	iterable, ok := value.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("variables must be a list, got %s", value.Type())
	}

	var vectors [][]float64
	var flat []float64
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		if number, ok := starlark.AsFloat(item); ok {
			flat = append(flat, number)
			continue
		}
		vector, err := floatsFromValue(item)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	if len(flat) > 0 {
		if len(vectors) > 0 {
			return nil, fmt.Errorf("variables mixes numbers and vectors")
		}
		return [][]float64{flat}, nil
	}
	return vectors, nil
}

func floatsFromValue(value starlark.Value) ([]float64, error) {
	iterable, ok := value.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a list of numbers, got %s", value.Type())
	}
	var out []float64
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		number, ok := starlark.AsFloat(item)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %s", item.Type())
		}
		out = append(out, number)
	}
	return out, nil
}

func stringsFromValue(value starlark.Value) ([]string, error) {
	iterable, ok := value.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %s", value.Type())
	}
	var out []string
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		text, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %s", item.Type())
		}
		out = append(out, text)
	}
	return out, nil
}

func mapFromValue(value starlark.Value) (map[string]any, error) {
	if value == nil || value == starlark.None {
		return nil, nil
	}
	raw, err := fromStarlarkValue(value)
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a dict, got %s", value.Type())
	}
	return m, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}
	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []float64:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.Float(item)
		}
		return starlark.NewList(list), nil
	case []int:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.MakeInt(item)
		}
		return starlark.NewList(list), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.String(item)
		}
		return starlark.NewList(list), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			converted, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for key, item := range val {
			converted, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(key), converted); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]any, len(val))
		for i, item := range val {
			converted, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
