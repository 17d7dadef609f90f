package config

import (
	"strconv"

	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// ControlNames returns the formatted control names, "<group>.<variable>",
// flattened in declaration order.
func ControlNames(cfg *Config) []string {
	var names []string
	for _, group := range cfg.Controls {
		for _, variable := range group.Variables {
			names = append(names, group.Name+"."+variable.Name)
		}
	}
	return names
}

// ObjectiveNames returns the objective names in declaration order.
func ObjectiveNames(cfg *Config) []string {
	names := make([]string, len(cfg.Objectives))
	for i, objective := range cfg.Objectives {
		names[i] = objective.Name
	}
	return names
}

// ConstraintNames returns the output constraint names in declaration order.
func ConstraintNames(cfg *Config) []string {
	if len(cfg.OutputConstraints) == 0 {
		return nil
	}
	names := make([]string, len(cfg.OutputConstraints))
	for i, constraint := range cfg.OutputConstraints {
		names[i] = constraint.Name
	}
	return names
}

// AxisNames builds the axis display names the report tables label their
// columns and rows with: formatted control names, objective names,
// constraint names and the configured realization identifiers.
func AxisNames(cfg *Config) results.Names {
	names := results.Names{
		results.AxisVariable:  ControlNames(cfg),
		results.AxisObjective: ObjectiveNames(cfg),
	}
	if constraints := ConstraintNames(cfg); constraints != nil {
		names[results.AxisNonlinearConstraint] = constraints
	}
	realizations := make([]string, len(cfg.Model.Realizations))
	for i, id := range cfg.Model.Realizations {
		realizations[i] = strconv.Itoa(id)
	}
	names[results.AxisRealization] = realizations
	return names
}
