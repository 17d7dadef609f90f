package config

// Config is the user-facing optimization configuration, loaded from YAML.
// It mirrors the structure optimization decks are written in: named control
// groups, weighted objectives, optional output constraints, an ensemble
// model and the optimizer settings.
type Config struct {
	// Environment configures output locations and logging.
	Environment EnvironmentConfig `yaml:"environment"`

	// Controls are the control groups defining the optimization variables.
	Controls []ControlGroup `yaml:"controls" validate:"required,min=1,dive"`

	// Objectives are the objective functions with their weights.
	Objectives []ObjectiveConfig `yaml:"objective_functions" validate:"required,min=1,dive"`

	// OutputConstraints are the nonlinear output constraints.
	OutputConstraints []OutputConstraintConfig `yaml:"output_constraints,omitempty" validate:"dive"`

	// Model configures the ensemble of model realizations.
	Model ModelConfig `yaml:"model"`

	// Optimization configures the optimizer backend.
	Optimization OptimizationConfig `yaml:"optimization"`

	// InstallWorkflowJobs declares the external workflow jobs plan scripts
	// may run.
	InstallWorkflowJobs []WorkflowJobConfig `yaml:"install_workflow_jobs,omitempty" validate:"dive"`

	// Definitions are free-form values plan scripts can reference.
	Definitions map[string]any `yaml:"definitions,omitempty"`
}

// EnvironmentConfig configures run output and logging.
type EnvironmentConfig struct {
	// OutputFolder is the directory report tables and stores are written
	// to. Defaults to "output".
	OutputFolder string `yaml:"output_folder"`

	// RandomSeed seeds the perturbation generator.
	RandomSeed int64 `yaml:"random_seed,omitempty"`

	// LogLevel overrides the logging level for this run.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
}

// ControlGroup is a named group of control variables sharing perturbation
// settings.
type ControlGroup struct {
	// Name is the group name; variables are addressed as "<group>.<name>".
	Name string `yaml:"name" validate:"required"`

	// Variables are the controls in this group.
	Variables []ControlVariable `yaml:"variables" validate:"required,min=1,dive"`

	// PerturbationMagnitude is the default gradient perturbation magnitude
	// for all variables in the group.
	PerturbationMagnitude float64 `yaml:"perturbation_magnitude,omitempty" validate:"gte=0"`

	// Scale and Offset map optimizer-space values back to user space as
	// value*scale + offset. A zero scale means unscaled.
	Scale  float64 `yaml:"scale,omitempty"`
	Offset float64 `yaml:"offset,omitempty"`
}

// ControlVariable is one optimization control.
type ControlVariable struct {
	// Name is the variable name within its group.
	Name string `yaml:"name" validate:"required"`

	// InitialGuess is the optimizer-space starting value.
	InitialGuess float64 `yaml:"initial_guess"`

	// Min and Max bound the variable in optimizer space.
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

// ObjectiveConfig is one objective function.
type ObjectiveConfig struct {
	// Name is the objective name, used as its axis label.
	Name string `yaml:"name" validate:"required"`

	// Weight is the relative weight in the total objective. Weights are
	// normalized over all objectives; zero means equal weighting.
	Weight float64 `yaml:"weight,omitempty" validate:"gte=0"`
}

// OutputConstraintConfig is one nonlinear output constraint.
type OutputConstraintConfig struct {
	// Name is the constraint name, used as its axis label.
	Name string `yaml:"name" validate:"required"`

	// LowerBound and UpperBound bound the constraint value. Nil means
	// unbounded on that side.
	LowerBound *float64 `yaml:"lower_bound,omitempty"`
	UpperBound *float64 `yaml:"upper_bound,omitempty"`
}

// ModelConfig configures the realization ensemble.
type ModelConfig struct {
	// Realizations are the realization identifiers, used as axis labels.
	Realizations []int `yaml:"realizations" validate:"required,min=1"`

	// RealizationWeights weight the realizations in the ensemble average.
	// Empty means equal weights; otherwise the length must match
	// Realizations.
	RealizationWeights []float64 `yaml:"realization_weights,omitempty"`
}

// OptimizationConfig configures the optimizer backend.
type OptimizationConfig struct {
	// Algorithm is the optimization method name.
	Algorithm string `yaml:"algorithm" validate:"required"`

	// MaxFunctionEvaluations bounds the number of function evaluations;
	// zero means unbounded.
	MaxFunctionEvaluations int `yaml:"max_function_evaluations,omitempty" validate:"gte=0"`

	// Tolerance is the convergence tolerance.
	Tolerance float64 `yaml:"convergence_tolerance,omitempty" validate:"gte=0"`

	// ConstraintTolerance is the feasibility margin trackers use when
	// filtering constrained results.
	ConstraintTolerance float64 `yaml:"constraint_tolerance,omitempty" validate:"gte=0"`
}

// WorkflowJobConfig declares one external workflow job.
type WorkflowJobConfig struct {
	// Name is the job name plan scripts refer to.
	Name string `yaml:"name" validate:"required"`

	// Executable is the command to run.
	Executable string `yaml:"executable" validate:"required"`

	// Args are fixed arguments prepended to script-supplied ones.
	Args []string `yaml:"args,omitempty"`
}

// defaultOutputFolder is used when the environment leaves the output
// folder unset.
const defaultOutputFolder = "output"

// applyDefaults fills unset fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Environment.OutputFolder == "" {
		c.Environment.OutputFolder = defaultOutputFolder
	}
}
