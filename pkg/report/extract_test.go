package report

import (
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

func testNames() results.Names {
	return results.Names{
		results.AxisVariable:    {"point.x", "point.y"},
		results.AxisObjective:   {"distance"},
		results.AxisRealization: {"r1", "r2"},
	}
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
			Variables:     []float64{0.1, 0.2},
			Objectives:    []float64{weighted, weighted},
			EvaluationIDs: []int{0, 1},
		},
	}
}

func gradientRecord(batch int) *results.GradientResults {
	return &results.GradientResults{
		Batch:         batch,
		Realizations:  2,
		Perturbations: 2,
		Variables:     2,
		Objectives:    1,
		Gradients: &results.Gradients{
			WeightedObjective: []float64{1.0, 2.0},
			Objectives:        []float64{1.0, 2.0},
		},
		Evaluations: &results.GradientEvaluations{
			PerturbedVariables:  []float64{1, 2, 3, 4, 5, 6, 7, 8},
			PerturbedObjectives: []float64{0.1, 0.2, 0.3, 0.4},
		},
	}
}

func mustSchema(t *testing.T, kind TableKind) Schema {
	t.Helper()
	schema, err := SchemaFor(kind)
	if err != nil {
		t.Fatalf("SchemaFor(%s) failed: %v", kind, err)
	}
	return schema
}

func TestExtract_ResultsRowPerRecord(t *testing.T) {
	schema := mustSchema(t, TableResults)
	records := []results.Record{functionRecord(0, 10.0), functionRecord(1, 7.5)}

	fragment := Extract(records, TableResults, schema, testNames(), nil, nil)
	if fragment.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", fragment.Rows())
	}

	// One column per variable and objective, plus batch id and total.
	wantColumns := 1 + 1 + 1 + 2
	if len(fragment.columns) != wantColumns {
		t.Errorf("columns = %d, want %d", len(fragment.columns), wantColumns)
	}

	row := fragment.rows[0]
	if got := row[ColumnID{Path: "batch_id"}.key()]; got != 0 {
		t.Errorf("batch_id = %v, want 0", got)
	}
	if got := row[ColumnID{Path: "functions.weighted_objective"}.key()]; got != 10.0 {
		t.Errorf("weighted objective = %v, want 10.0", got)
	}
	key := ColumnID{Path: "evaluations.variables", Suffix: []string{"point.y"}}.key()
	if got := row[key]; got != 0.2 {
		t.Errorf("point.y = %v, want 0.2", got)
	}
}

func TestExtract_SimulationsRowPerRealization(t *testing.T) {
	schema := mustSchema(t, TableSimulations)
	fragment := Extract([]results.Record{functionRecord(0, 10.0)}, TableSimulations, schema, testNames(), nil, nil)

	if fragment.Rows() != 2 {
		t.Fatalf("rows = %d, want one per realization", fragment.Rows())
	}
	if got := fragment.rows[1][ColumnID{Path: "realization"}.key()]; got != "r2" {
		t.Errorf("realization label = %v, want r2", got)
	}
	if got := fragment.rows[1][ColumnID{Path: "evaluations.evaluation_ids"}.key()]; got != 1 {
		t.Errorf("evaluation id = %v, want 1", got)
	}
	// The variable vector has no realization axis, so it repeats per row.
	key := ColumnID{Path: "evaluations.variables", Suffix: []string{"point.x"}}.key()
	if fragment.rows[0][key] != fragment.rows[1][key] {
		t.Error("variables should broadcast over realizations")
	}
}

func TestSchema_SimulationsControlNameColumn(t *testing.T) {
	schema := mustSchema(t, TableSimulations)
	label, ok := schema.Label("variable")
	if !ok || label != "Control-name" {
		t.Fatalf("variable column label = %q, %v, want Control-name", label, ok)
	}

	// Neither record variant carries the field; the column stays absent.
	fragment := Extract([]results.Record{functionRecord(0, 10.0)}, TableSimulations, schema, testNames(), nil, nil)
	for _, id := range fragment.columns {
		if id.Path == "variable" {
			t.Error("absent field produced a column")
		}
	}
}

func TestExtract_PerturbationsCrossProduct(t *testing.T) {
	schema := mustSchema(t, TablePerturbations)
	fragment := Extract([]results.Record{gradientRecord(1)}, TablePerturbations, schema, testNames(), nil, nil)

	if fragment.Rows() != 4 {
		t.Fatalf("rows = %d, want realizations x perturbations", fragment.Rows())
	}
	last := fragment.rows[3]
	if got := last[ColumnID{Path: "realization"}.key()]; got != "r2" {
		t.Errorf("realization = %v, want r2", got)
	}
	if got := last[ColumnID{Path: "perturbation"}.key()]; got != 1 {
		t.Errorf("perturbation = %v, want 1", got)
	}
	key := ColumnID{Path: "evaluations.perturbed_variables", Suffix: []string{"point.y"}}.key()
	if got := last[key]; got != 8.0 {
		t.Errorf("perturbed point.y = %v, want 8.0", got)
	}
}

func TestExtract_SkipsWrongVariant(t *testing.T) {
	schema := mustSchema(t, TableResults)
	fragment := Extract([]results.Record{gradientRecord(0)}, TableResults, schema, testNames(), nil, nil)
	if !fragment.Empty() {
		t.Errorf("gradient records should not contribute to the results table, got %d rows", fragment.Rows())
	}
}

func TestExtract_NoPayloadNoRows(t *testing.T) {
	bare := &results.FunctionResults{Batch: 3, Realizations: 2, Objectives: 1}
	schema := mustSchema(t, TableResults)
	fragment := Extract([]results.Record{bare}, TableResults, schema, testNames(), nil, nil)
	if !fragment.Empty() {
		t.Errorf("record without schema fields produced %d rows", fragment.Rows())
	}
}

type scaleTransform struct{ factors []float64 }

func (s scaleTransform) ToUserVariable(index int, value float64) float64 {
	return value * s.factors[index]
}

func TestExtract_TransformAppliesToVariables(t *testing.T) {
	schema := mustSchema(t, TableResults)
	transform := scaleTransform{factors: []float64{10, 100}}
	fragment := Extract([]results.Record{functionRecord(0, 10.0)}, TableResults, schema, testNames(), transform, nil)

	row := fragment.rows[0]
	if got := row[ColumnID{Path: "evaluations.variables", Suffix: []string{"point.x"}}.key()]; got != 1.0 {
		t.Errorf("transformed point.x = %v, want 1.0", got)
	}
	// Objective values stay in engine space.
	if got := row[ColumnID{Path: "functions.weighted_objective"}.key()]; got != 10.0 {
		t.Errorf("weighted objective = %v, want untransformed 10.0", got)
	}
}

func TestExtract_MetadataOverlay(t *testing.T) {
	record := functionRecord(0, 10.0)
	record.Metadata = map[string]any{"opt": "own"}

	schema := mustSchema(t, TableResults).WithMetadata([]string{"opt"})
	fragment := Extract([]results.Record{record}, TableResults, schema, testNames(), nil, map[string]any{"opt": "overlay"})

	row := fragment.rows[0]
	if got := row[ColumnID{Path: "metadata.opt"}.key()]; got != "overlay" {
		t.Errorf("metadata cell = %v, want overlay", got)
	}
	if record.Metadata["opt"] != "own" {
		t.Error("record metadata was mutated")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	schema := mustSchema(t, TableSimulations)
	records := []results.Record{functionRecord(0, 10.0), functionRecord(1, 7.5)}

	first := Extract(records, TableSimulations, schema, testNames(), nil, nil)
	second := Extract(records, TableSimulations, schema, testNames(), nil, nil)

	if len(first.columns) != len(second.columns) {
		t.Fatalf("column counts differ: %d vs %d", len(first.columns), len(second.columns))
	}
	for i := range first.columns {
		if first.columns[i].key() != second.columns[i].key() {
			t.Errorf("column %d differs: %q vs %q", i, first.columns[i].key(), second.columns[i].key())
		}
	}
	if first.Rows() != second.Rows() {
		t.Errorf("row counts differ: %d vs %d", first.Rows(), second.Rows())
	}
}
