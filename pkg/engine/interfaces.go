package engine

import (
	"context"

	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// StepRunner is implemented by the external plan execution engine. RunStep
// blocks until the requested step finished; events produced while the step
// runs are delivered through the bus the engine was wired with.
type StepRunner interface {
	RunStep(ctx context.Context, req StepRequest) (StepResult, error)
}

// EventHandler receives engine events. Implementations declare the event
// types they want delivered; HandleEvent is invoked strictly sequentially
// for a given handler instance and must not be called concurrently.
type EventHandler interface {
	EventTypes() []EventType
	HandleEvent(ctx context.Context, event *Event) error
}

// EvaluatorContext carries the evaluation context of one batch.
type EvaluatorContext struct {
	// BatchID is the id assigned to this evaluation batch.
	BatchID int

	// Realizations are the model realization ids to evaluate.
	Realizations []int

	// Metadata is attached to the produced result record.
	Metadata map[string]any
}

// Evaluator computes function results for a set of variable vectors. It is
// the contract through which the engine calls back into the hosting
// framework's forward model.
type Evaluator interface {
	Eval(ctx context.Context, variables [][]float64, ec EvaluatorContext) (*results.FunctionResults, error)
}
