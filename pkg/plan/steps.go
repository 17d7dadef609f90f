package plan

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
)

// Step is the common surface of plan steps.
type Step interface {
	// Name is the step kind name.
	Name() string

	// Tag is the step's event source tag; empty for steps that emit no
	// evaluation events.
	Tag() string
}

// RunOptions adjust one step run.
type RunOptions struct {
	// Config overrides the plan's configuration for this run only. The
	// override is validated and translated anew.
	Config *config.Config

	// Variables are explicit vectors to evaluate instead of the configured
	// initial values.
	Variables [][]float64

	// Metadata is attached to every result record the run produces.
	Metadata map[string]any
}

// OptimizerStep runs the configured optimization algorithm.
type OptimizerStep struct {
	plan *Plan
	tag  string
}

// Name implements Step.
func (s *OptimizerStep) Name() string { return "optimizer" }

// Tag implements Step.
func (s *OptimizerStep) Tag() string { return s.tag }

// Run dispatches the optimization to the engine and blocks until it
// finished.
func (s *OptimizerStep) Run(ctx context.Context, opts RunOptions) (engine.ExitCode, error) {
	return s.plan.runStep(ctx, s.Name(), s.tag, opts)
}

// EvaluatorStep runs a single ensemble evaluation without optimizing.
type EvaluatorStep struct {
	plan *Plan
	tag  string
}

// Name implements Step.
func (s *EvaluatorStep) Name() string { return "evaluator" }

// Tag implements Step.
func (s *EvaluatorStep) Tag() string { return s.tag }

// Run dispatches the evaluation to the engine and blocks until it
// finished. Explicit variable vectors in the options replace the
// configured initial values.
func (s *EvaluatorStep) Run(ctx context.Context, opts RunOptions) (engine.ExitCode, error) {
	return s.plan.runStep(ctx, s.Name(), s.tag, opts)
}

// runStep resolves the effective configuration, dispatches the request to
// the engine and reports the exit code. Start and finished step events
// bracket the run on the bus.
func (p *Plan) runStep(ctx context.Context, step, tag string, opts RunOptions) (engine.ExitCode, error) {
	cfg := p.cfg
	if opts.Config != nil {
		validated, err := p.revalidate(ctx, opts.Config)
		if err != nil {
			return engine.ExitUnknown, err
		}
		cfg = validated
	}

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.StartStepSpan(ctx, step, tag)
		defer span.End()
	}
	if p.metrics != nil {
		p.metrics.RecordStepStarted(step)
	}
	logger := p.logger.WithStep(step).WithTag(tag)
	logger.Info("step started")
	start := time.Now()

	fail := func(err error) (engine.ExitCode, error) {
		if span != nil {
			telemetry.RecordError(span, err)
		}
		if p.metrics != nil {
			p.metrics.RecordStepCompleted(step, "error", time.Since(start))
		}
		logger.WithError(err).Error("step failed")
		return engine.ExitUnknown, err
	}

	if err := p.bus.Emit(ctx, &engine.Event{
		Type:   engine.EventStartStep,
		Source: step,
		Tags:   tagList(tag),
	}); err != nil {
		return fail(err)
	}

	var transform results.VariableTransform
	if scaler := config.NewControlScaler(cfg); scaler != nil {
		transform = scaler
	}

	result, err := p.runner.RunStep(ctx, engine.StepRequest{
		Step:       step,
		Tag:        tag,
		Config:     config.ToOptimizerConfig(cfg),
		Transforms: transform,
		Variables:  opts.Variables,
		Metadata:   opts.Metadata,
	})
	if err != nil {
		return fail(err)
	}

	if err := p.bus.Emit(ctx, &engine.Event{
		Type:   engine.EventFinishedStep,
		Source: step,
		Tags:   tagList(tag),
	}); err != nil {
		return fail(err)
	}

	if span != nil {
		telemetry.SetAttributes(span, telemetry.AttrStepExit.String(result.Exit.String()))
		telemetry.RecordSuccess(span)
	}
	if p.metrics != nil {
		p.metrics.RecordStepCompleted(step, result.Exit.String(), time.Since(start))
	}
	logger.WithField("exit", result.Exit.String()).Info("step finished")
	return result.Exit, nil
}

func tagList(tag string) []string {
	if tag == "" {
		return nil
	}
	return []string{tag}
}
