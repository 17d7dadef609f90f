package results

import (
	"fmt"
)

// Axis identifies a dimension of a result field.
type Axis string

const (
	// AxisVariable indexes over the optimization controls.
	AxisVariable Axis = "variable"

	// AxisObjective indexes over the objective functions.
	AxisObjective Axis = "objective"

	// AxisLinearConstraint indexes over the linear input constraints.
	AxisLinearConstraint Axis = "linear_constraint"

	// AxisNonlinearConstraint indexes over the nonlinear output constraints.
	AxisNonlinearConstraint Axis = "nonlinear_constraint"

	// AxisRealization indexes over the model realizations in an ensemble.
	AxisRealization Axis = "realization"

	// AxisPerturbation indexes over the perturbations of a gradient estimate.
	AxisPerturbation Axis = "perturbation"
)

// Names maps an axis to the ordered display names used for labeling the
// positions along that axis. Entries are optional; a missing axis falls back
// to numeric indices.
type Names map[Axis][]string

// Name returns the display name for the given position along an axis, or the
// stringified index when no name is configured for that position.
func (n Names) Name(axis Axis, index int) string {
	if names, ok := n[axis]; ok && index >= 0 && index < len(names) {
		return names[index]
	}
	return fmt.Sprintf("%d", index)
}

// Field is a multi-dimensional result value tagged with the axes it is
// indexed by. Data is stored flattened in row-major order; Shape holds the
// length of each axis in the same order as Axes. A rank-zero field is a
// scalar with a single data element.
type Field struct {
	Axes  []Axis
	Shape []int
	Data  []any
}

// Scalar creates a rank-zero field holding a single value.
func Scalar(value any) Field {
	return Field{Data: []any{value}}
}

// FloatVector creates a one-dimensional field over the given axis.
func FloatVector(axis Axis, values []float64) Field {
	data := make([]any, len(values))
	for i, v := range values {
		data[i] = v
	}
	return Field{Axes: []Axis{axis}, Shape: []int{len(values)}, Data: data}
}

// IntVector creates a one-dimensional field of integers over the given axis.
func IntVector(axis Axis, values []int) Field {
	data := make([]any, len(values))
	for i, v := range values {
		data[i] = v
	}
	return Field{Axes: []Axis{axis}, Shape: []int{len(values)}, Data: data}
}

// FloatMatrix creates a field from a row-major flattened matrix with the
// given axes and shape. It panics if the shape does not match the data
// length; fields are constructed by the engine bindings from consistent
// arrays.
func FloatMatrix(axes []Axis, shape []int, values []float64) Field {
	size := 1
	for _, n := range shape {
		size *= n
	}
	if size != len(values) {
		panic(fmt.Sprintf("results: field shape %v does not match %d values", shape, len(values)))
	}
	data := make([]any, len(values))
	for i, v := range values {
		data[i] = v
	}
	return Field{Axes: axes, Shape: shape, Data: data}
}

// Rank returns the number of axes of the field.
func (f Field) Rank() int { return len(f.Axes) }

// HasAxis reports whether the field is indexed by the given axis.
func (f Field) HasAxis(axis Axis) bool {
	for _, a := range f.Axes {
		if a == axis {
			return true
		}
	}
	return false
}

// AxisLen returns the length of the given axis, or zero when the field is
// not indexed by it.
func (f Field) AxisLen(axis Axis) int {
	for i, a := range f.Axes {
		if a == axis {
			return f.Shape[i]
		}
	}
	return 0
}

// Cell returns the value at the given per-axis indices. Every axis of the
// field must have an index assignment; axes present in the map but absent
// from the field are ignored.
func (f Field) Cell(indices map[Axis]int) (any, error) {
	if f.Rank() == 0 {
		return f.Data[0], nil
	}
	offset := 0
	stride := 1
	for i := f.Rank() - 1; i >= 0; i-- {
		idx, ok := indices[f.Axes[i]]
		if !ok {
			return nil, fmt.Errorf("results: no index for axis %q", f.Axes[i])
		}
		if idx < 0 || idx >= f.Shape[i] {
			return nil, fmt.Errorf("results: index %d out of range for axis %q (length %d)", idx, f.Axes[i], f.Shape[i])
		}
		offset += idx * stride
		stride *= f.Shape[i]
	}
	return f.Data[offset], nil
}
