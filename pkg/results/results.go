package results

import "strings"

// Kind discriminates the two record variants delivered by the engine.
type Kind string

const (
	// KindFunctions tags records produced by a function evaluation.
	KindFunctions Kind = "functions"

	// KindGradients tags records produced by a gradient estimation.
	KindGradients Kind = "gradients"
)

// Record is the read-only contract through which result records are
// consumed. Field resolves a dotted path such as "functions.objectives" to
// the corresponding axis-tagged field; the second return value is false when
// the record does not carry the field, which callers treat as "no column",
// never as an error.
type Record interface {
	Kind() Kind
	BatchID() int
	Meta() map[string]any
	Field(path string) (Field, bool)
	AxisLen(axis Axis) int
}

// VariableTransform maps a single optimizer-space control value back to user
// space before it is rendered or stored.
type VariableTransform interface {
	ToUserVariable(index int, value float64) float64
}

// Functions holds the aggregated objective and constraint values of a
// function evaluation.
type Functions struct {
	WeightedObjective float64   `json:"weighted_objective"`
	Objectives        []float64 `json:"objectives"`
	Constraints       []float64 `json:"constraints,omitempty"`
}

// FunctionEvaluations holds the per-realization evaluation details of a
// function evaluation batch.
type FunctionEvaluations struct {
	// Variables are the control values of the evaluated vector.
	Variables []float64 `json:"variables"`

	// Objectives are the objective values per realization, flattened
	// row-major over (realization, objective).
	Objectives []float64 `json:"objectives,omitempty"`

	// Constraints are the constraint values per realization, flattened
	// row-major over (realization, nonlinear_constraint).
	Constraints []float64 `json:"constraints,omitempty"`

	// EvaluationIDs are the simulation ids per realization.
	EvaluationIDs []int `json:"evaluation_ids,omitempty"`

	// BatchIDs are the batch ids the per-realization values originate
	// from. They differ from the record's batch id for cached results.
	BatchIDs []int `json:"batch_ids,omitempty"`
}

// ConstraintInfo holds constraint diagnostics for a function evaluation.
type ConstraintInfo struct {
	BoundLower     []float64 `json:"bound_lower,omitempty"`
	BoundUpper     []float64 `json:"bound_upper,omitempty"`
	LinearLower    []float64 `json:"linear_lower,omitempty"`
	LinearUpper    []float64 `json:"linear_upper,omitempty"`
	NonlinearLower []float64 `json:"nonlinear_lower,omitempty"`
	NonlinearUpper []float64 `json:"nonlinear_upper,omitempty"`

	BoundViolation     []float64 `json:"bound_violation,omitempty"`
	LinearViolation    []float64 `json:"linear_violation,omitempty"`
	NonlinearViolation []float64 `json:"nonlinear_violation,omitempty"`
}

// FunctionResults is one function evaluation batch's outcome.
type FunctionResults struct {
	Batch        int                  `json:"batch_id"`
	Metadata     map[string]any       `json:"metadata,omitempty"`
	Realizations int                  `json:"realizations"`
	Objectives   int                  `json:"objectives"`
	NConstraints int                  `json:"constraints"`
	Functions    *Functions           `json:"functions,omitempty"`
	Evaluations  *FunctionEvaluations `json:"evaluations,omitempty"`
	Constraints  *ConstraintInfo      `json:"constraint_info,omitempty"`
}

// Kind implements Record.
func (r *FunctionResults) Kind() Kind { return KindFunctions }

// BatchID implements Record.
func (r *FunctionResults) BatchID() int { return r.Batch }

// Meta implements Record.
func (r *FunctionResults) Meta() map[string]any { return r.Metadata }

// AxisLen implements Record.
func (r *FunctionResults) AxisLen(axis Axis) int {
	switch axis {
	case AxisRealization:
		return r.Realizations
	case AxisObjective:
		return r.Objectives
	case AxisNonlinearConstraint:
		return r.NConstraints
	case AxisVariable:
		if r.Evaluations != nil {
			return len(r.Evaluations.Variables)
		}
	}
	return 0
}

// Field implements Record. Resolution is a tagged switch over the known
// dotted paths rather than reflective attribute traversal.
func (r *FunctionResults) Field(path string) (Field, bool) {
	switch path {
	case "functions.weighted_objective":
		if r.Functions == nil {
			return Field{}, false
		}
		return Scalar(r.Functions.WeightedObjective), true
	case "functions.objectives":
		if r.Functions == nil || len(r.Functions.Objectives) == 0 {
			return Field{}, false
		}
		return FloatVector(AxisObjective, r.Functions.Objectives), true
	case "functions.constraints":
		if r.Functions == nil || len(r.Functions.Constraints) == 0 {
			return Field{}, false
		}
		return FloatVector(AxisNonlinearConstraint, r.Functions.Constraints), true
	case "evaluations.variables":
		if r.Evaluations == nil || len(r.Evaluations.Variables) == 0 {
			return Field{}, false
		}
		return FloatVector(AxisVariable, r.Evaluations.Variables), true
	case "evaluations.objectives":
		if r.Evaluations == nil || len(r.Evaluations.Objectives) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisRealization, AxisObjective},
			[]int{r.Realizations, r.Objectives},
			r.Evaluations.Objectives,
		), true
	case "evaluations.constraints":
		if r.Evaluations == nil || len(r.Evaluations.Constraints) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisRealization, AxisNonlinearConstraint},
			[]int{r.Realizations, r.NConstraints},
			r.Evaluations.Constraints,
		), true
	case "evaluations.evaluation_ids":
		if r.Evaluations == nil || len(r.Evaluations.EvaluationIDs) == 0 {
			return Field{}, false
		}
		return IntVector(AxisRealization, r.Evaluations.EvaluationIDs), true
	case "evaluations.batch_ids":
		if r.Evaluations == nil || len(r.Evaluations.BatchIDs) == 0 {
			return Field{}, false
		}
		return IntVector(AxisRealization, r.Evaluations.BatchIDs), true
	}
	if strings.HasPrefix(path, "constraint_info.") {
		return r.constraintField(strings.TrimPrefix(path, "constraint_info."))
	}
	return Field{}, false
}

func (r *FunctionResults) constraintField(name string) (Field, bool) {
	if r.Constraints == nil {
		return Field{}, false
	}
	var values []float64
	axis := AxisVariable
	switch name {
	case "bound_lower":
		values = r.Constraints.BoundLower
	case "bound_upper":
		values = r.Constraints.BoundUpper
	case "bound_violation":
		values = r.Constraints.BoundViolation
	case "linear_lower":
		values, axis = r.Constraints.LinearLower, AxisLinearConstraint
	case "linear_upper":
		values, axis = r.Constraints.LinearUpper, AxisLinearConstraint
	case "linear_violation":
		values, axis = r.Constraints.LinearViolation, AxisLinearConstraint
	case "nonlinear_lower":
		values, axis = r.Constraints.NonlinearLower, AxisNonlinearConstraint
	case "nonlinear_upper":
		values, axis = r.Constraints.NonlinearUpper, AxisNonlinearConstraint
	case "nonlinear_violation":
		values, axis = r.Constraints.NonlinearViolation, AxisNonlinearConstraint
	default:
		return Field{}, false
	}
	if len(values) == 0 {
		return Field{}, false
	}
	return FloatVector(axis, values), true
}

// Gradients holds the estimated gradients of a gradient batch.
type Gradients struct {
	// WeightedObjective is the gradient of the weighted objective per
	// control.
	WeightedObjective []float64 `json:"weighted_objective"`

	// Objectives are the per-objective gradients, flattened row-major
	// over (objective, variable).
	Objectives []float64 `json:"objectives,omitempty"`

	// Constraints are the per-constraint gradients, flattened row-major
	// over (nonlinear_constraint, variable).
	Constraints []float64 `json:"constraints,omitempty"`
}

// GradientEvaluations holds the perturbed evaluations underlying a gradient
// estimate.
type GradientEvaluations struct {
	// PerturbedVariables are flattened row-major over
	// (realization, perturbation, variable).
	PerturbedVariables []float64 `json:"perturbed_variables,omitempty"`

	// PerturbedObjectives are flattened row-major over
	// (realization, perturbation, objective).
	PerturbedObjectives []float64 `json:"perturbed_objectives,omitempty"`

	// PerturbedConstraints are flattened row-major over
	// (realization, perturbation, nonlinear_constraint).
	PerturbedConstraints []float64 `json:"perturbed_constraints,omitempty"`

	// PerturbedEvaluationIDs are flattened row-major over
	// (realization, perturbation).
	PerturbedEvaluationIDs []int `json:"perturbed_evaluation_ids,omitempty"`
}

// GradientResults is one gradient estimation batch's outcome.
type GradientResults struct {
	Batch         int                  `json:"batch_id"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
	Realizations  int                  `json:"realizations"`
	Perturbations int                  `json:"perturbations"`
	Variables     int                  `json:"variables"`
	Objectives    int                  `json:"objectives"`
	NConstraints  int                  `json:"constraints"`
	Gradients     *Gradients           `json:"gradients,omitempty"`
	Evaluations   *GradientEvaluations `json:"evaluations,omitempty"`
}

// Kind implements Record.
func (r *GradientResults) Kind() Kind { return KindGradients }

// BatchID implements Record.
func (r *GradientResults) BatchID() int { return r.Batch }

// Meta implements Record.
func (r *GradientResults) Meta() map[string]any { return r.Metadata }

// AxisLen implements Record.
func (r *GradientResults) AxisLen(axis Axis) int {
	switch axis {
	case AxisRealization:
		return r.Realizations
	case AxisPerturbation:
		return r.Perturbations
	case AxisVariable:
		return r.Variables
	case AxisObjective:
		return r.Objectives
	case AxisNonlinearConstraint:
		return r.NConstraints
	}
	return 0
}

// Field implements Record.
func (r *GradientResults) Field(path string) (Field, bool) {
	switch path {
	case "gradients.weighted_objective":
		if r.Gradients == nil || len(r.Gradients.WeightedObjective) == 0 {
			return Field{}, false
		}
		return FloatVector(AxisVariable, r.Gradients.WeightedObjective), true
	case "gradients.objectives":
		if r.Gradients == nil || len(r.Gradients.Objectives) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisObjective, AxisVariable},
			[]int{r.Objectives, r.Variables},
			r.Gradients.Objectives,
		), true
	case "gradients.constraints":
		if r.Gradients == nil || len(r.Gradients.Constraints) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisNonlinearConstraint, AxisVariable},
			[]int{r.NConstraints, r.Variables},
			r.Gradients.Constraints,
		), true
	case "evaluations.perturbed_variables":
		if r.Evaluations == nil || len(r.Evaluations.PerturbedVariables) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisRealization, AxisPerturbation, AxisVariable},
			[]int{r.Realizations, r.Perturbations, r.Variables},
			r.Evaluations.PerturbedVariables,
		), true
	case "evaluations.perturbed_objectives":
		if r.Evaluations == nil || len(r.Evaluations.PerturbedObjectives) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisRealization, AxisPerturbation, AxisObjective},
			[]int{r.Realizations, r.Perturbations, r.Objectives},
			r.Evaluations.PerturbedObjectives,
		), true
	case "evaluations.perturbed_constraints":
		if r.Evaluations == nil || len(r.Evaluations.PerturbedConstraints) == 0 {
			return Field{}, false
		}
		return FloatMatrix(
			[]Axis{AxisRealization, AxisPerturbation, AxisNonlinearConstraint},
			[]int{r.Realizations, r.Perturbations, r.NConstraints},
			r.Evaluations.PerturbedConstraints,
		), true
	case "evaluations.perturbed_evaluation_ids":
		if r.Evaluations == nil || len(r.Evaluations.PerturbedEvaluationIDs) == 0 {
			return Field{}, false
		}
		data := make([]any, len(r.Evaluations.PerturbedEvaluationIDs))
		for i, v := range r.Evaluations.PerturbedEvaluationIDs {
			data[i] = v
		}
		return Field{
			Axes:  []Axis{AxisRealization, AxisPerturbation},
			Shape: []int{r.Realizations, r.Perturbations},
			Data:  data,
		}, true
	}
	return Field{}, false
}
