package plan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/stores"
)

// fakeRunner records step requests and optionally emits events on the
// plan's bus, standing in for the external engine.
type fakeRunner struct {
	bus      *engine.Bus
	requests []engine.StepRequest
	exit     engine.ExitCode
	err      error
	emit     func(ctx context.Context, req engine.StepRequest, bus *engine.Bus) error
}

func (r *fakeRunner) RunStep(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return engine.StepResult{}, r.err
	}
	if r.emit != nil {
		if err := r.emit(ctx, req, r.bus); err != nil {
			return engine.StepResult{}, err
		}
	}
	exit := r.exit
	if exit == engine.ExitUnknown {
		exit = engine.ExitStepFinished
	}
	return engine.StepResult{Exit: exit}, nil
}

// emitResults emits one finished-evaluation event per configured record
// batch when a step runs.
func emitResults(records ...results.Record) func(context.Context, engine.StepRequest, *engine.Bus) error {
	return func(ctx context.Context, req engine.StepRequest, bus *engine.Bus) error {
		return bus.Emit(ctx, &engine.Event{
			Type:       engine.EventFinishedEvaluation,
			Source:     req.Step,
			Tags:       []string{req.Tag},
			Results:    records,
			Transforms: req.Transforms,
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: config.EnvironmentConfig{OutputFolder: t.TempDir()},
		Controls: []config.ControlGroup{{
			Name: "point",
			Variables: []config.ControlVariable{
				{Name: "x", InitialGuess: 0.1, Min: -1, Max: 1},
				{Name: "y", InitialGuess: 0.2, Min: -1, Max: 1},
			},
			PerturbationMagnitude: 0.01,
		}},
		Objectives:   []config.ObjectiveConfig{{Name: "distance", Weight: 1}},
		Model:        config.ModelConfig{Realizations: []int{1, 2}},
		Optimization: config.OptimizationConfig{Algorithm: "slsqp", MaxFunctionEvaluations: 10},
	}
}

func newTestPlan(t *testing.T, runner *fakeRunner) *Plan {
	t.Helper()
	p, err := NewPlan(PlanConfig{Runner: runner, Config: testConfig(t)})
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	runner.bus = p.Bus()
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func functionRecord(batch int, weighted float64) *results.FunctionResults {
	return &results.FunctionResults{
		Batch:        batch,
		Realizations: 2,
		Objectives:   1,
		Functions: &results.Functions{
			WeightedObjective: weighted,
			Objectives:        []float64{weighted},
		},
		Evaluations: &results.FunctionEvaluations{
			Variables: []float64{0.1, 0.2},
		},
	}
}

func TestNewPlan_RequiresRunnerAndConfig(t *testing.T) {
	if _, err := NewPlan(PlanConfig{Config: testConfig(t)}); !engine.IsConfig(err) {
		t.Errorf("missing runner: got %v", err)
	}
	if _, err := NewPlan(PlanConfig{Runner: &fakeRunner{}}); !engine.IsConfig(err) {
		t.Errorf("missing config: got %v", err)
	}
}

func TestPlan_TagSequence(t *testing.T) {
	p := newTestPlan(t, &fakeRunner{})

	opt, err := p.AddOptimizer()
	if err != nil {
		t.Fatal(err)
	}
	eval, err := p.AddEvaluator()
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.AddOptimizer()
	if err != nil {
		t.Fatal(err)
	}
	job, err := p.AddWorkflowJob()
	if err != nil {
		t.Fatal(err)
	}

	if opt.Tag() != "tag0" || eval.Tag() != "tag1" || second.Tag() != "tag2" {
		t.Errorf("tags = %q, %q, %q", opt.Tag(), eval.Tag(), second.Tag())
	}
	if job.Tag() != "" {
		t.Errorf("workflow job has tag %q", job.Tag())
	}
}

func TestPlan_Vars(t *testing.T) {
	p := newTestPlan(t, &fakeRunner{})

	if p.HasVar("case") {
		t.Error("unset variable reported present")
	}
	p.SetVar("case", "demo")
	value, ok := p.Var("case")
	if !ok || value != "demo" {
		t.Errorf("Var = %v, %v", value, ok)
	}
	if !p.HasVar("case") {
		t.Error("set variable reported absent")
	}
}

func TestPlan_ConfigCopyIsDeep(t *testing.T) {
	p := newTestPlan(t, &fakeRunner{})

	copied, err := p.ConfigCopy()
	if err != nil {
		t.Fatalf("ConfigCopy failed: %v", err)
	}
	copied.Optimization.Algorithm = "de"
	copied.Controls[0].Variables[0].InitialGuess = 0.9

	if p.Config().Optimization.Algorithm != "slsqp" {
		t.Error("copy shares the optimization config")
	}
	if p.Config().Controls[0].Variables[0].InitialGuess != 0.1 {
		t.Error("copy shares the control variables")
	}
}

func TestPlan_UnknownComponents(t *testing.T) {
	p := newTestPlan(t, &fakeRunner{})

	if _, err := p.NewStep("annealer"); !engine.IsPlugin(err) {
		t.Errorf("unknown step: got %v", err)
	}
	if _, err := p.NewHandler("custom/sink", nil); !engine.IsPlugin(err) {
		t.Errorf("unknown handler: got %v", err)
	}
	if _, err := p.NewEvaluator("memoizer", nil); !engine.IsPlugin(err) {
		t.Errorf("unknown evaluator: got %v", err)
	}
}

func TestPlan_CustomStepFactory(t *testing.T) {
	p := newTestPlan(t, &fakeRunner{})

	err := p.Steps().Register("custom/probe", func(p *Plan) (Step, error) {
		return &EvaluatorStep{plan: p, tag: p.nextTag()}, nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	step, err := p.NewStep("custom/probe")
	if err != nil {
		t.Fatalf("NewStep failed: %v", err)
	}
	if step.Tag() != "tag0" {
		t.Errorf("custom step tag = %q", step.Tag())
	}
}

func TestPlan_AddTableRendersStepResults(t *testing.T) {
	runner := &fakeRunner{emit: emitResults(functionRecord(0, 10.0))}
	p := newTestPlan(t, runner)

	opt, err := p.AddOptimizer()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if _, err := p.AddTable(TableOptions{Track: []Step{opt}, Dir: dir}); err != nil {
		t.Fatalf("AddTable failed: %v", err)
	}

	exit, err := opt.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if exit != engine.ExitStepFinished {
		t.Errorf("exit = %v", exit)
	}

	content, err := os.ReadFile(filepath.Join(dir, "results.txt"))
	if err != nil {
		t.Fatalf("results table not written: %v", err)
	}
	if !strings.Contains(string(content), "10") {
		t.Errorf("results table missing objective value:\n%s", content)
	}
}

func TestPlan_AddStorePersistsStepResults(t *testing.T) {
	runner := &fakeRunner{emit: emitResults(functionRecord(0, 10.0))}
	p := newTestPlan(t, runner)
	ctx := context.Background()

	store, err := stores.Open(ctx, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	opt, err := p.AddOptimizer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddStore(ctx, StoreOptions{Store: store, Track: []Step{opt}}); err != nil {
		t.Fatalf("AddStore failed: %v", err)
	}

	if _, err := opt.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	count, err := store.CountRecords(ctx, stores.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("stored records = %d, want 1", count)
	}
}

func TestPlan_AddStoreOpensDefaultPath(t *testing.T) {
	runner := &fakeRunner{emit: emitResults(functionRecord(0, 10.0))}
	p := newTestPlan(t, runner)
	ctx := context.Background()

	if _, err := p.AddStore(ctx, StoreOptions{}); err != nil {
		t.Fatalf("AddStore failed: %v", err)
	}

	path := filepath.Join(p.Config().Environment.OutputFolder, "results.db")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("store database not created at %s: %v", path, err)
	}
}
