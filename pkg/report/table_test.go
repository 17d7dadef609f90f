package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

func newTestTable(t *testing.T, kind TableKind) *Table {
	t.Helper()
	table, err := NewTable(TableConfig{
		Kind:  kind,
		Dir:   t.TempDir(),
		Names: testNames(),
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func TestNewTable_UnknownKind(t *testing.T) {
	_, err := NewTable(TableConfig{Kind: TableKind("bogus"), Dir: t.TempDir()})
	if !engine.IsPlugin(err) {
		t.Fatalf("expected plugin error for unknown kind, got %v", err)
	}
}

func TestNewTable_OutputPathNotDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewTable(TableConfig{Kind: TableResults, Dir: path})
	if !engine.IsConfig(err) {
		t.Fatalf("expected config error for non-directory output path, got %v", err)
	}
}

func TestNewTable_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	table, err := NewTable(TableConfig{Kind: TableResults, Dir: dir})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("output directory was not created: %v", err)
	}
	if table.Path() != filepath.Join(dir, "results.txt") {
		t.Errorf("path = %s", table.Path())
	}
}

func TestTable_EmptyAddDoesNotWrite(t *testing.T) {
	table := newTestTable(t, TableResults)

	bare := &results.FunctionResults{Batch: 0, Realizations: 2, Objectives: 1}
	if table.Add([]results.Record{bare}, nil, nil) {
		t.Error("Add reported rows for a record without schema fields")
	}
	if err := table.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(table.Path()); !os.IsNotExist(err) {
		t.Error("empty table wrote an output file")
	}
}

func TestTable_SaveOverwrites(t *testing.T) {
	table := newTestTable(t, TableResults)

	if !table.Add([]results.Record{functionRecord(0, 10.0)}, nil, nil) {
		t.Fatal("first Add reported no rows")
	}
	if err := table.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first, err := os.ReadFile(table.Path())
	if err != nil {
		t.Fatal(err)
	}

	if !table.Add([]results.Record{functionRecord(1, 7.5)}, nil, nil) {
		t.Fatal("second Add reported no rows")
	}
	if err := table.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := os.ReadFile(table.Path())
	if err != nil {
		t.Fatal(err)
	}

	if len(second) <= len(first) {
		t.Error("second save should contain the accumulated rows")
	}
	if !strings.Contains(string(second), "10") || !strings.Contains(string(second), "7.5") {
		t.Errorf("accumulated table missing batch values:\n%s", second)
	}
	if table.Rows() != 2 {
		t.Errorf("Rows = %d, want 2", table.Rows())
	}
}

func TestTable_MetadataColumnsGrow(t *testing.T) {
	table := newTestTable(t, TableResults)

	table.Add([]results.Record{functionRecord(0, 10.0)}, map[string]any{"phase": "first"}, nil)
	table.Add([]results.Record{functionRecord(1, 7.5)}, map[string]any{"phase": "second", "restart": 1}, nil)
	if err := table.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	text, err := os.ReadFile(table.Path())
	if err != nil {
		t.Fatal(err)
	}
	header := strings.SplitN(string(text), "\n", 2)[0]
	if !strings.Contains(header, "phase") || !strings.Contains(header, "restart") {
		t.Errorf("metadata columns missing from header %q", header)
	}
	// The late-appearing key comes after the one seen first.
	if strings.Index(header, "restart") < strings.Index(header, "phase") {
		t.Errorf("metadata columns not in discovery order: %q", header)
	}
	if !strings.Contains(string(text), "first") || !strings.Contains(string(text), "second") {
		t.Errorf("metadata values missing:\n%s", text)
	}
}

func TestTable_TransformOverride(t *testing.T) {
	table := newTestTable(t, TableResults)
	table.Add([]results.Record{functionRecord(0, 10.0)}, nil, scaleTransform{factors: []float64{1000, 1000}})
	if err := table.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	text, err := os.ReadFile(table.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "100") || !strings.Contains(string(text), "200") {
		t.Errorf("transformed control values missing:\n%s", text)
	}
}
