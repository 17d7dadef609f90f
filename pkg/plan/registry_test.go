package plan

import (
	"strings"
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

func TestRegistry_DefaultNamespace(t *testing.T) {
	registry := NewRegistry[int]("step")
	if err := registry.Register("optimizer", 1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	for _, name := range []string{"optimizer", "everest/optimizer"} {
		value, err := registry.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", name, err)
		}
		if value != 1 {
			t.Errorf("Lookup(%q) = %d", name, value)
		}
	}
}

func TestRegistry_ExplicitNamespace(t *testing.T) {
	registry := NewRegistry[int]("step")
	if err := registry.Register("custom/probe", 2); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := registry.Lookup("probe"); !engine.IsPlugin(err) {
		t.Errorf("bare name resolved a namespaced entry: %v", err)
	}
	value, err := registry.Lookup("custom/probe")
	if err != nil || value != 2 {
		t.Errorf("Lookup = %d, %v", value, err)
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	registry := NewRegistry[int]("evaluator")

	_, err := registry.Lookup("memoizer")
	if !engine.IsPlugin(err) {
		t.Fatalf("expected plugin error, got %v", err)
	}
	if !strings.Contains(err.Error(), `unknown evaluator "everest/memoizer"`) {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	registry := NewRegistry[int]("step")
	if err := registry.Register("optimizer", 1); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("everest/optimizer", 2); !engine.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	registry := NewRegistry[int]("step")
	for _, name := range []string{"workflow_job", "optimizer", "custom/probe"} {
		if err := registry.Register(name, 0); err != nil {
			t.Fatal(err)
		}
	}

	names := registry.Names()
	want := []string{"custom/probe", "everest/optimizer", "everest/workflow_job"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}
