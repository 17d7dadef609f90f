package results

import (
	"testing"
)

func testFunctionResults() *FunctionResults {
	return &FunctionResults{
		Batch:        3,
		Metadata:     map[string]any{"iteration": 1},
		Realizations: 2,
		Objectives:   2,
		Functions: &Functions{
			WeightedObjective: 1.5,
			Objectives:        []float64{1.0, 2.0},
		},
		Evaluations: &FunctionEvaluations{
			Variables:     []float64{0.1, 0.2, 0.3},
			Objectives:    []float64{1.0, 2.0, 3.0, 4.0},
			EvaluationIDs: []int{10, 11},
		},
	}
}

func TestFunctionResults_FieldResolution(t *testing.T) {
	record := testFunctionResults()

	tests := []struct {
		path  string
		found bool
		axes  []Axis
	}{
		{"functions.weighted_objective", true, nil},
		{"functions.objectives", true, []Axis{AxisObjective}},
		{"functions.constraints", false, nil},
		{"evaluations.variables", true, []Axis{AxisVariable}},
		{"evaluations.objectives", true, []Axis{AxisRealization, AxisObjective}},
		{"evaluations.evaluation_ids", true, []Axis{AxisRealization}},
		{"gradients.weighted_objective", false, nil},
		{"constraint_info.bound_lower", false, nil},
		{"no.such.path", false, nil},
	}

	for _, tc := range tests {
		field, ok := record.Field(tc.path)
		if ok != tc.found {
			t.Errorf("Field(%q): found = %v, want %v", tc.path, ok, tc.found)
			continue
		}
		if !ok {
			continue
		}
		if len(field.Axes) != len(tc.axes) {
			t.Errorf("Field(%q): got %d axes, want %d", tc.path, len(field.Axes), len(tc.axes))
			continue
		}
		for i, axis := range tc.axes {
			if field.Axes[i] != axis {
				t.Errorf("Field(%q): axis %d = %s, want %s", tc.path, i, field.Axes[i], axis)
			}
		}
	}
}

func TestField_Cell(t *testing.T) {
	record := testFunctionResults()

	field, ok := record.Field("evaluations.objectives")
	if !ok {
		t.Fatal("expected evaluations.objectives to resolve")
	}

	// Row-major (realization, objective): realization 1, objective 0 -> 3.0.
	value, err := field.Cell(map[Axis]int{AxisRealization: 1, AxisObjective: 0})
	if err != nil {
		t.Fatalf("Cell failed: %v", err)
	}
	if value != 3.0 {
		t.Errorf("Cell(1, 0) = %v, want 3.0", value)
	}

	if _, err := field.Cell(map[Axis]int{AxisRealization: 5, AxisObjective: 0}); err == nil {
		t.Error("expected out-of-range index to fail")
	}
	if _, err := field.Cell(map[Axis]int{AxisRealization: 0}); err == nil {
		t.Error("expected missing axis index to fail")
	}
}

func TestField_Scalar(t *testing.T) {
	field := Scalar(42.0)
	if field.Rank() != 0 {
		t.Fatalf("scalar rank = %d, want 0", field.Rank())
	}
	value, err := field.Cell(nil)
	if err != nil {
		t.Fatalf("Cell failed: %v", err)
	}
	if value != 42.0 {
		t.Errorf("Cell() = %v, want 42.0", value)
	}
}

func TestNames_Name(t *testing.T) {
	names := Names{
		AxisVariable: {"point.x", "point.y"},
	}
	if got := names.Name(AxisVariable, 0); got != "point.x" {
		t.Errorf("Name(variable, 0) = %q, want point.x", got)
	}
	if got := names.Name(AxisVariable, 5); got != "5" {
		t.Errorf("Name(variable, 5) = %q, want index fallback", got)
	}
	if got := names.Name(AxisObjective, 1); got != "1" {
		t.Errorf("Name(objective, 1) = %q, want index fallback", got)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	encoded, err := EncodeJSON(testFunctionResults())
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}

	decoded, err := DecodeJSON(encoded)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}

	record, ok := decoded.(*FunctionResults)
	if !ok {
		t.Fatalf("decoded record has kind %s, want %s", decoded.Kind(), KindFunctions)
	}
	if record.Batch != 3 {
		t.Errorf("batch id = %d, want 3", record.Batch)
	}
	if record.Functions.WeightedObjective != 1.5 {
		t.Errorf("weighted objective = %v, want 1.5", record.Functions.WeightedObjective)
	}
}

func TestDecodeJSON_UnknownKind(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"kind":"bogus","data":{}}`)); err == nil {
		t.Error("expected unknown kind to fail")
	}
}

func TestGradientResults_PerturbedVariables(t *testing.T) {
	record := &GradientResults{
		Batch:         1,
		Realizations:  1,
		Perturbations: 2,
		Variables:     2,
		Evaluations: &GradientEvaluations{
			PerturbedVariables: []float64{0.1, 0.2, 0.3, 0.4},
		},
	}

	field, ok := record.Field("evaluations.perturbed_variables")
	if !ok {
		t.Fatal("expected perturbed_variables to resolve")
	}
	value, err := field.Cell(map[Axis]int{AxisRealization: 0, AxisPerturbation: 1, AxisVariable: 0})
	if err != nil {
		t.Fatalf("Cell failed: %v", err)
	}
	if value != 0.3 {
		t.Errorf("Cell(0, 1, 0) = %v, want 0.3", value)
	}
}
