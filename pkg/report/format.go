package report

import (
	"fmt"
	"strconv"
	"strings"
)

// renderColumn is one fully resolved output column: multi-line header text
// plus formatted cell values.
type renderColumn struct {
	header string
	cells  []string
	// numeric drives right-alignment; a column is numeric when every
	// non-blank cell formats from a number.
	numeric bool
}

// Render produces the fixed-width text table for a fragment. Columns are
// reordered into schema key order, renamed to display labels with axis
// suffixes joined by newlines, and headers padded so all have the same
// number of lines (at least minHeaderLines). Raw columns without a schema
// entry are dropped; schema entries without a raw column are absent. The
// output is deterministic for a fixed fragment and schema.
func Render(fragment *Fragment, schema Schema, minHeaderLines int) string {
	if fragment == nil || fragment.Empty() {
		return ""
	}

	columns := resolveColumns(fragment, schema)
	if len(columns) == 0 {
		return ""
	}
	padHeaders(columns, minHeaderLines)
	return serialize(columns)
}

// resolveColumns reorders the fragment's columns to schema order and
// renames them. Raw columns sharing a schema path keep their first-seen
// relative order.
func resolveColumns(fragment *Fragment, schema Schema) []renderColumn {
	var columns []renderColumn
	for _, schemaColumn := range schema {
		for _, id := range fragment.columns {
			if id.Path != schemaColumn.Path {
				continue
			}
			header := schemaColumn.Label
			if len(id.Suffix) > 0 {
				header += "\n" + strings.Join(id.Suffix, "\n")
			}
			columns = append(columns, renderColumn{
				header:  header,
				cells:   formatCells(fragment, id),
				numeric: cellsNumeric(fragment, id),
			})
		}
	}
	return columns
}

func formatCells(fragment *Fragment, id ColumnID) []string {
	key := id.key()
	cells := make([]string, len(fragment.rows))
	for i, row := range fragment.rows {
		value, ok := row[key]
		if !ok {
			continue
		}
		cells[i] = formatValue(value)
	}
	return cells
}

func cellsNumeric(fragment *Fragment, id ColumnID) bool {
	key := id.key()
	seen := false
	for _, row := range fragment.rows {
		value, ok := row[key]
		if !ok {
			continue
		}
		switch value.(type) {
		case float64, float32, int, int64, int32:
			seen = true
		default:
			return false
		}
	}
	return seen
}

// formatValue renders a single cell. Floats use the shortest round-trip
// representation, matching the generic pretty-printer the reports have
// always used.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// padHeaders right-pads every header with newlines until all headers have
// the same number of lines, and at least minHeaderLines.
func padHeaders(columns []renderColumn, minHeaderLines int) {
	maxLines := minHeaderLines
	for _, column := range columns {
		if n := strings.Count(column.header, "\n") + 1; n > maxLines {
			maxLines = n
		}
	}
	for i := range columns {
		lines := strings.Count(columns[i].header, "\n") + 1
		columns[i].header += strings.Repeat("\n", maxLines-lines)
	}
}

// serialize lays the table out as space-separated fixed-width columns:
// header lines, a dashed separator row, then the data rows. There is no row
// index column.
func serialize(columns []renderColumn) string {
	headerLines := 1
	headers := make([][]string, len(columns))
	for i, column := range columns {
		headers[i] = strings.Split(column.header, "\n")
		if len(headers[i]) > headerLines {
			headerLines = len(headers[i])
		}
	}

	widths := make([]int, len(columns))
	for i, column := range columns {
		for _, line := range headers[i] {
			if len(line) > widths[i] {
				widths[i] = len(line)
			}
		}
		for _, cell := range column.cells {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for line := 0; line < headerLines; line++ {
		fields := make([]string, len(columns))
		for i := range columns {
			text := ""
			if line < len(headers[i]) {
				text = headers[i][line]
			}
			fields[i] = align(text, widths[i], columns[i].numeric)
		}
		writeRow(&b, fields)
	}

	separators := make([]string, len(columns))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	writeRow(&b, separators)

	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0].cells)
	}
	for r := 0; r < rows; r++ {
		fields := make([]string, len(columns))
		for i, column := range columns {
			fields[i] = align(column.cells[r], widths[i], column.numeric)
		}
		writeRow(&b, fields)
	}
	return b.String()
}

func align(text string, width int, right bool) string {
	if right {
		return strings.Repeat(" ", width-len(text)) + text
	}
	return text + strings.Repeat(" ", width-len(text))
}

func writeRow(b *strings.Builder, fields []string) {
	b.WriteString(strings.TrimRight(strings.Join(fields, "  "), " "))
	b.WriteByte('\n')
}
