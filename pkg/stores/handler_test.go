package stores

import (
	"context"
	"testing"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

func newTestHandler(t *testing.T, tags []string) (*StoreHandler, *SQLiteStore) {
	t.Helper()
	store := newTestStore(t)
	handler, err := NewStoreHandler(StoreHandlerConfig{Store: store, Tags: tags})
	if err != nil {
		t.Fatalf("NewStoreHandler failed: %v", err)
	}
	return handler, store
}

func TestNewStoreHandler_RequiresStore(t *testing.T) {
	_, err := NewStoreHandler(StoreHandlerConfig{})
	if !engine.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestStoreHandler_PersistsEventResults(t *testing.T) {
	handler, store := newTestHandler(t, []string{"tag0"})
	ctx := context.Background()

	event := &engine.Event{
		Type:    engine.EventFinishedEvaluation,
		Source:  "optimizer",
		Tags:    []string{"tag0"},
		Results: []results.Record{functionRecord(0, 10.0), gradientRecord(0)},
	}
	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	count, err := store.CountRecords(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("stored = %d, want 2", count)
	}
}

func TestStoreHandler_TagFilter(t *testing.T) {
	handler, store := newTestHandler(t, []string{"tag0"})
	ctx := context.Background()

	event := &engine.Event{
		Type:    engine.EventFinishedEvaluation,
		Source:  "optimizer",
		Tags:    []string{"tag1"},
		Results: []results.Record{functionRecord(0, 10.0)},
	}
	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	count, err := store.CountRecords(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("untracked event persisted %d records", count)
	}
}

func TestStoreHandler_IgnoresOtherEvents(t *testing.T) {
	handler, store := newTestHandler(t, nil)
	ctx := context.Background()

	event := &engine.Event{
		Type:    engine.EventStartEvaluation,
		Results: []results.Record{functionRecord(0, 10.0)},
	}
	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	count, err := store.CountRecords(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("start event persisted %d records", count)
	}
}
