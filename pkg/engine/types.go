package engine

import (
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// EventType identifies the kind of an engine event.
type EventType string

const (
	// EventStartEvaluation is emitted before an evaluation batch starts.
	EventStartEvaluation EventType = "start_evaluation"

	// EventFinishedEvaluation is emitted after an evaluation batch
	// finished; its Results carry the batch's result records.
	EventFinishedEvaluation EventType = "finished_evaluation"

	// EventStartStep is emitted when a plan step starts running.
	EventStartStep EventType = "start_step"

	// EventFinishedStep is emitted when a plan step finished running.
	EventFinishedStep EventType = "finished_step"
)

// Event is one notification from the engine's dispatch. Results is only
// populated for evaluation events; Transforms, when set, maps
// optimizer-space control values back to user space.
type Event struct {
	// Type is the event type tag.
	Type EventType

	// Source identifies the emitting plan component.
	Source string

	// Tags are the source component's tags, matched against handler
	// source filters.
	Tags []string

	// Results are the result records carried by evaluation events.
	Results []results.Record

	// Transforms maps optimizer-space variables to user space.
	Transforms results.VariableTransform
}

// HasTag reports whether the event carries the given tag.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ExitCode reports how a plan step finished.
type ExitCode int

const (
	// ExitUnknown is returned when the step outcome is not known.
	ExitUnknown ExitCode = iota

	// ExitStepFinished indicates a normal completion.
	ExitStepFinished

	// ExitMaxBatchesReached indicates the optimizer hit its batch budget.
	ExitMaxBatchesReached

	// ExitUserAbort indicates the plan was aborted from a script or
	// callback.
	ExitUserAbort
)

// String returns the exit code's display name.
func (c ExitCode) String() string {
	switch c {
	case ExitStepFinished:
		return "step_finished"
	case ExitMaxBatchesReached:
		return "max_batches_reached"
	case ExitUserAbort:
		return "user_abort"
	default:
		return "unknown"
	}
}

// OptimizerConfig is the engine-internal optimization configuration a step
// request carries. It is produced by translating the user-facing
// configuration; all per-control arrays are index-aligned.
type OptimizerConfig struct {
	// Method is the optimization algorithm name.
	Method string `json:"method"`

	// MaxFunctions bounds the number of function evaluations; zero means
	// unbounded.
	MaxFunctions int `json:"max_functions,omitempty"`

	// Tolerance is the convergence tolerance.
	Tolerance float64 `json:"tolerance,omitempty"`

	// InitialValues are the optimizer-space starting values per control.
	InitialValues []float64 `json:"initial_values"`

	// LowerBounds and UpperBounds are the optimizer-space control bounds.
	LowerBounds []float64 `json:"lower_bounds"`
	UpperBounds []float64 `json:"upper_bounds"`

	// PerturbationMagnitudes are the gradient perturbation magnitudes per
	// control.
	PerturbationMagnitudes []float64 `json:"perturbation_magnitudes,omitempty"`

	// ObjectiveWeights are the normalized objective weights.
	ObjectiveWeights []float64 `json:"objective_weights"`

	// RealizationWeights are the normalized ensemble weights.
	RealizationWeights []float64 `json:"realization_weights,omitempty"`
}

// StepRequest asks the engine to run one plan step.
type StepRequest struct {
	// Step is the step kind: "optimizer", "evaluator" or "workflow_job".
	Step string

	// Tag is the step's source tag, propagated on emitted events.
	Tag string

	// Config is the translated optimizer configuration, required for
	// optimizer and evaluator steps.
	Config *OptimizerConfig

	// Transforms maps optimizer-space values back to user space on
	// emitted results.
	Transforms results.VariableTransform

	// Variables are optional explicit variable vectors to evaluate
	// instead of the configured initial values.
	Variables [][]float64

	// Metadata is attached to every result record the step produces.
	Metadata map[string]any
}

// StepResult is the outcome of a step run.
type StepResult struct {
	Exit ExitCode

	// Report carries step-specific output, such as a workflow job report.
	Report map[string]any
}
