package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// defaultMinHeaderLines is the minimum header height of the rendered tables.
const defaultMinHeaderLines = 3

// TableConfig configures a report table.
type TableConfig struct {
	// Kind selects the column schema and the record variant consumed.
	Kind TableKind
	// Dir is the output directory; created if missing.
	Dir string
	// Names supplies display names per axis for column suffixes and
	// realization labels.
	Names results.Names
	// Transform maps control values back to user space before rendering.
	// Optional.
	Transform results.VariableTransform
	// MinHeaderLines overrides the minimum header height. Zero selects the
	// default of three lines.
	MinHeaderLines int
}

// Table accumulates extracted result rows for one table kind and rewrites
// its output file on demand. Each Save renders the full accumulated table
// and overwrites the file, so the file on disk is always complete and
// consistent up to the last saved batch.
type Table struct {
	kind           TableKind
	schema         Schema
	path           string
	names          results.Names
	transform      results.VariableTransform
	minHeaderLines int

	fragment *Fragment
	metaKeys []string
	metaSeen map[string]struct{}
}

// NewTable creates a report table writing to <dir>/<kind>.txt. The output
// directory is created if missing; an existing non-directory at that path is
// a configuration error.
func NewTable(cfg TableConfig) (*Table, error) {
	schema, err := SchemaFor(cfg.Kind)
	if err != nil {
		return nil, err
	}

	if info, statErr := os.Stat(cfg.Dir); statErr == nil && !info.IsDir() {
		return nil, engine.NewConfigError(
			fmt.Sprintf("cannot write table to %q: not a directory", cfg.Dir), nil,
		).WithComponent("table")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, engine.NewIOError("cannot create table output directory", err).WithComponent("table")
	}

	minHeaderLines := cfg.MinHeaderLines
	if minHeaderLines <= 0 {
		minHeaderLines = defaultMinHeaderLines
	}

	return &Table{
		kind:           cfg.Kind,
		schema:         schema,
		path:           filepath.Join(cfg.Dir, string(cfg.Kind)+".txt"),
		names:          cfg.Names,
		transform:      cfg.Transform,
		minHeaderLines: minHeaderLines,
		fragment:       newFragment(),
		metaSeen:       make(map[string]struct{}),
	}, nil
}

// Kind returns the table's kind.
func (t *Table) Kind() TableKind { return t.kind }

// Path returns the output file path.
func (t *Table) Path() string { return t.path }

// Rows returns the number of accumulated rows.
func (t *Table) Rows() int { return t.fragment.Rows() }

// Add extracts rows from a batch of records and appends them to the table.
// The optional metadata overlay replaces each record's own metadata; the
// optional transform overrides the table's configured one for this batch.
// It reports whether any rows were added; a batch carrying none of the
// schema's fields leaves the table unchanged.
func (t *Table) Add(records []results.Record, metadata map[string]any, transform results.VariableTransform) bool {
	if transform == nil {
		transform = t.transform
	}
	t.discoverMetadataKeys(records, metadata)
	fragment := Extract(records, t.kind, t.schema.WithMetadata(t.metaKeys), t.names, transform, metadata)
	if fragment.Empty() {
		return false
	}
	t.fragment.merge(fragment)
	return true
}

// discoverMetadataKeys appends metadata keys not seen before. Keys keep
// their discovery order across batches; new keys within one batch are added
// alphabetically so column order is deterministic.
func (t *Table) discoverMetadataKeys(records []results.Record, metadata map[string]any) {
	var fresh []string
	note := func(meta map[string]any) {
		for key := range meta {
			if _, ok := t.metaSeen[key]; ok {
				continue
			}
			t.metaSeen[key] = struct{}{}
			fresh = append(fresh, key)
		}
	}
	if metadata != nil {
		note(metadata)
	} else {
		for _, record := range records {
			note(record.Meta())
		}
	}
	sort.Strings(fresh)
	t.metaKeys = append(t.metaKeys, fresh...)
}

// Save re-renders the full accumulated table and overwrites the output
// file. An empty table writes nothing and leaves any existing file alone.
func (t *Table) Save() error {
	if t.fragment.Empty() {
		return nil
	}
	text := Render(t.fragment, t.schema.WithMetadata(t.metaKeys), t.minHeaderLines)
	if err := os.WriteFile(t.path, []byte(text), 0o644); err != nil {
		return engine.NewIOError(fmt.Sprintf("cannot write table %q", t.path), err).WithComponent("table")
	}
	return nil
}
