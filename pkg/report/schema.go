package report

import (
	"fmt"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// TableKind selects one of the fixed report categories.
type TableKind string

const (
	TableResults       TableKind = "results"
	TableGradients     TableKind = "gradients"
	TableSimulations   TableKind = "simulations"
	TablePerturbations TableKind = "perturbations"
	TableConstraints   TableKind = "constraints"
)

// TableKinds lists all table kinds in report order.
var TableKinds = []TableKind{
	TableResults,
	TableGradients,
	TableSimulations,
	TablePerturbations,
	TableConstraints,
}

// Validate returns a plugin error for unknown table kinds.
func (k TableKind) Validate() error {
	switch k {
	case TableResults, TableGradients, TableSimulations, TablePerturbations, TableConstraints:
		return nil
	}
	return engine.NewPluginError(fmt.Sprintf("cannot make table for %q", string(k)))
}

// Column maps one raw result field path to its display label. Schema order
// determines output column order.
type Column struct {
	Path  string
	Label string
}

// Schema is the ordered column schema of one table kind.
type Schema []Column

// Label returns the display label for a field path.
func (s Schema) Label(path string) (string, bool) {
	for _, c := range s {
		if c.Path == path {
			return c.Label, true
		}
	}
	return "", false
}

// WithMetadata returns a copy of the schema with one metadata column
// appended per key, in the given order. Metadata columns use the bare key as
// display label.
func (s Schema) WithMetadata(keys []string) Schema {
	if len(keys) == 0 {
		return s
	}
	out := make(Schema, len(s), len(s)+len(keys))
	copy(out, s)
	for _, key := range keys {
		out = append(out, Column{Path: "metadata." + key, Label: key})
	}
	return out
}

var tableSchemas = map[TableKind]Schema{
	TableResults: {
		{Path: "batch_id", Label: "Batch"},
		{Path: "functions.weighted_objective", Label: "Total-Objective"},
		{Path: "functions.objectives", Label: "Objective"},
		{Path: "functions.constraints", Label: "Constraint"},
		{Path: "evaluations.variables", Label: "Control"},
	},
	TableGradients: {
		{Path: "batch_id", Label: "Batch"},
		{Path: "gradients.weighted_objective", Label: "Total-Gradient"},
		{Path: "gradients.objectives", Label: "Grad-objective"},
		{Path: "gradients.constraints", Label: "Grad-constraint"},
	},
	TableSimulations: {
		{Path: "batch_id", Label: "Batch"},
		{Path: "realization", Label: "Realization"},
		{Path: "variable", Label: "Control-name"},
		{Path: "evaluations.variables", Label: "Control"},
		{Path: "evaluations.objectives", Label: "Objective"},
		{Path: "evaluations.constraints", Label: "Constraint"},
		{Path: "evaluations.evaluation_ids", Label: "Simulation"},
	},
	TablePerturbations: {
		{Path: "batch_id", Label: "Batch"},
		{Path: "realization", Label: "Realization"},
		{Path: "perturbation", Label: "Perturbation"},
		{Path: "evaluations.perturbed_variables", Label: "Control"},
		{Path: "evaluations.perturbed_objectives", Label: "Objective"},
		{Path: "evaluations.perturbed_constraints", Label: "Constraint"},
		{Path: "evaluations.perturbed_evaluation_ids", Label: "Simulation"},
	},
	TableConstraints: {
		{Path: "batch_id", Label: "Batch"},
		{Path: "constraint_info.bound_lower", Label: "BCD-lower"},
		{Path: "constraint_info.bound_upper", Label: "BCD-upper"},
		{Path: "constraint_info.linear_lower", Label: "ICD-lower"},
		{Path: "constraint_info.linear_upper", Label: "ICD-upper"},
		{Path: "constraint_info.nonlinear_lower", Label: "OCD-lower"},
		{Path: "constraint_info.nonlinear_upper", Label: "OCD-upper"},
		{Path: "constraint_info.bound_violation", Label: "BCD-violation"},
		{Path: "constraint_info.linear_violation", Label: "ICD-violation"},
		{Path: "constraint_info.nonlinear_violation", Label: "OCD-violation"},
	},
}

// recordKinds maps each table kind to the record variant it consumes.
// Records of the other variant are skipped during extraction.
var recordKinds = map[TableKind]results.Kind{
	TableResults:       results.KindFunctions,
	TableGradients:     results.KindGradients,
	TableSimulations:   results.KindFunctions,
	TablePerturbations: results.KindGradients,
	TableConstraints:   results.KindFunctions,
}

// rowAxes maps each table kind to the axes its rows are the cross-product
// of. Kinds without row axes produce one row per record.
var rowAxes = map[TableKind][]results.Axis{
	TableSimulations:   {results.AxisRealization},
	TablePerturbations: {results.AxisRealization, results.AxisPerturbation},
}

// SchemaFor returns a copy of the builtin schema for a table kind.
func SchemaFor(kind TableKind) (Schema, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	base := tableSchemas[kind]
	out := make(Schema, len(base))
	copy(out, base)
	return out, nil
}
