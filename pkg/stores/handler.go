package stores

import (
	"context"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
)

// StoreHandler persists the result records of finished-evaluation events.
// Like the table handler it filters by source tag; an empty tag set
// accepts every event.
type StoreHandler struct {
	store   *SQLiteStore
	tags    []string
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// StoreHandlerConfig configures a store event handler.
type StoreHandlerConfig struct {
	// Store is the open results store. Required.
	Store *SQLiteStore

	// Tags filters events by source tag; empty accepts all.
	Tags []string

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
}

// NewStoreHandler creates a handler persisting event results to the store.
func NewStoreHandler(cfg StoreHandlerConfig) (*StoreHandler, error) {
	if cfg.Store == nil {
		return nil, engine.NewConfigError("store is required", nil).WithComponent("store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultLoggingConfig())
	}
	return &StoreHandler{
		store:   cfg.Store,
		tags:    cfg.Tags,
		logger:  logger.NewComponentLogger("store"),
		metrics: cfg.Metrics,
	}, nil
}

// EventTypes reports the event types the handler subscribes to.
func (h *StoreHandler) EventTypes() []engine.EventType {
	return []engine.EventType{engine.EventFinishedEvaluation}
}

// HandleEvent persists all records carried by the event in one
// transaction.
func (h *StoreHandler) HandleEvent(ctx context.Context, event *engine.Event) error {
	if event.Type != engine.EventFinishedEvaluation || len(event.Results) == 0 {
		return nil
	}
	if !h.accepts(event) {
		return nil
	}

	tag := ""
	if len(event.Tags) > 0 {
		tag = event.Tags[0]
	}
	if err := h.store.SaveRecords(ctx, event.Source, tag, event.Results); err != nil {
		return err
	}

	for _, record := range event.Results {
		if h.metrics != nil {
			h.metrics.RecordStoreWrite(string(record.Kind()))
		}
	}
	h.logger.WithField("records", len(event.Results)).Debug("results persisted")
	return nil
}

func (h *StoreHandler) accepts(event *engine.Event) bool {
	if len(h.tags) == 0 {
		return true
	}
	for _, tag := range h.tags {
		if event.HasTag(tag) {
			return true
		}
	}
	return false
}
