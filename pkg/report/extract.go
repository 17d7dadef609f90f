package report

import (
	"strings"

	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// ColumnID identifies one raw extracted column: the schema field path plus
// the axis-value suffixes a multi-dimensional field was split on.
type ColumnID struct {
	Path   string
	Suffix []string
}

func (c ColumnID) key() string {
	if len(c.Suffix) == 0 {
		return c.Path
	}
	return c.Path + "\x1f" + strings.Join(c.Suffix, "\x1f")
}

// Fragment is one batch's worth of extracted rows and columns, prior to
// accumulation. Column order is first-seen order; rows are keyed by column
// id. Cells may be absent, which renders as blank.
type Fragment struct {
	columns []ColumnID
	index   map[string]struct{}
	rows    []map[string]any
}

func newFragment() *Fragment {
	return &Fragment{index: make(map[string]struct{})}
}

// Empty reports whether the fragment holds no rows.
func (f *Fragment) Empty() bool { return len(f.rows) == 0 }

// Rows returns the number of rows in the fragment.
func (f *Fragment) Rows() int { return len(f.rows) }

func (f *Fragment) addColumn(id ColumnID) {
	key := id.key()
	if _, ok := f.index[key]; ok {
		return
	}
	f.index[key] = struct{}{}
	f.columns = append(f.columns, id)
}

// merge appends another fragment's rows, registering its columns in
// first-seen order.
func (f *Fragment) merge(other *Fragment) {
	for _, id := range other.columns {
		f.addColumn(id)
	}
	f.rows = append(f.rows, other.rows...)
}

// paths of fields holding optimizer-space control values; transformed back
// to user space before rendering.
var variablePaths = map[string]struct{}{
	"evaluations.variables":           {},
	"evaluations.perturbed_variables": {},
}

// Extract flattens a sequence of result records into a table fragment for
// the given kind. Records of the wrong variant, and records carrying none of
// the schema's fields, contribute no rows. The extraction is a pure
// transformation; records are never mutated. The optional metadata overlay
// replaces each record's own metadata; the optional transform maps control
// values back to user space.
func Extract(
	records []results.Record,
	kind TableKind,
	schema Schema,
	names results.Names,
	transform results.VariableTransform,
	metadata map[string]any,
) *Fragment {
	fragment := newFragment()
	for _, record := range records {
		if record.Kind() != recordKinds[kind] {
			continue
		}
		extractRecord(fragment, record, kind, schema, names, transform, metadata)
	}
	return fragment
}

func extractRecord(
	fragment *Fragment,
	record results.Record,
	kind TableKind,
	schema Schema,
	names results.Names,
	transform results.VariableTransform,
	metadata map[string]any,
) {
	axes := rowAxes[kind]
	shape := make([]int, len(axes))
	for i, axis := range axes {
		shape[i] = record.AxisLen(axis)
		if shape[i] == 0 {
			return
		}
	}

	meta := record.Meta()
	if metadata != nil {
		meta = metadata
	}

	pending := newFragment()
	payload := false

	enumerate(shape, func(indices []int) {
		rowIndex := make(map[results.Axis]int, len(axes))
		for i, axis := range axes {
			rowIndex[axis] = indices[i]
		}
		row := make(map[string]any)

		for _, column := range schema {
			switch {
			case column.Path == "batch_id":
				setCell(pending, row, ColumnID{Path: column.Path}, record.BatchID())
			case column.Path == "realization":
				setCell(pending, row, ColumnID{Path: column.Path}, axisLabel(names, results.AxisRealization, rowIndex[results.AxisRealization]))
			case column.Path == "perturbation":
				setCell(pending, row, ColumnID{Path: column.Path}, rowIndex[results.AxisPerturbation])
			case strings.HasPrefix(column.Path, "metadata."):
				key := strings.TrimPrefix(column.Path, "metadata.")
				if value, ok := meta[key]; ok {
					setCell(pending, row, ColumnID{Path: column.Path}, value)
					payload = true
				}
			default:
				if extractField(pending, row, record, column.Path, rowIndex, names, transform) {
					payload = true
				}
			}
		}

		pending.rows = append(pending.rows, row)
	})

	// A record that carries none of the schema's fields produces no rows:
	// a bare batch id is not a table entry.
	if payload {
		fragment.merge(pending)
	}
}

// extractField splits a field into one column per combination of its
// non-row axes and fills the row's cells. It reports whether any cell was
// produced.
func extractField(
	fragment *Fragment,
	row map[string]any,
	record results.Record,
	path string,
	rowIndex map[results.Axis]int,
	names results.Names,
	transform results.VariableTransform,
) bool {
	field, ok := record.Field(path)
	if !ok {
		return false
	}

	var columnAxes []results.Axis
	var columnShape []int
	for i, axis := range field.Axes {
		if _, isRow := rowIndex[axis]; isRow {
			continue
		}
		columnAxes = append(columnAxes, axis)
		columnShape = append(columnShape, field.Shape[i])
	}

	_, isVariablePath := variablePaths[path]

	produced := false
	enumerate(columnShape, func(indices []int) {
		cellIndex := make(map[results.Axis]int, len(rowIndex)+len(indices))
		for axis, idx := range rowIndex {
			cellIndex[axis] = idx
		}
		suffix := make([]string, len(columnAxes))
		for i, axis := range columnAxes {
			cellIndex[axis] = indices[i]
			suffix[i] = names.Name(axis, indices[i])
		}

		value, err := field.Cell(cellIndex)
		if err != nil {
			return
		}
		if isVariablePath && transform != nil {
			if v, isFloat := value.(float64); isFloat {
				value = transform.ToUserVariable(cellIndex[results.AxisVariable], v)
			}
		}
		setCell(fragment, row, ColumnID{Path: path, Suffix: suffix}, value)
		produced = true
	})
	return produced
}

func setCell(fragment *Fragment, row map[string]any, id ColumnID, value any) {
	fragment.addColumn(id)
	row[id.key()] = value
}

// axisLabel returns the configured display name for an axis position, or
// the numeric index when none is configured. Named positions keep their
// string form so realization ids from the configuration show verbatim.
func axisLabel(names results.Names, axis results.Axis, index int) any {
	if named, ok := names[axis]; ok && index >= 0 && index < len(named) {
		return named[index]
	}
	return index
}

// enumerate calls fn for every index combination of the given shape in
// row-major order. An empty shape yields a single empty combination.
func enumerate(shape []int, fn func(indices []int)) {
	indices := make([]int, len(shape))
	for {
		fn(indices)
		i := len(shape) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < shape[i] {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
