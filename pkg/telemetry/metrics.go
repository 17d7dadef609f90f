package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the optimization plan runtime.
type Metrics struct {
	config MetricsConfig

	// Plan step metrics
	stepsStarted   *prometheus.CounterVec
	stepsCompleted *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec

	// Evaluation metrics
	batchesEvaluated prometheus.Counter
	evaluations      *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec

	// Event handling metrics
	eventsHandled *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec

	// Report table metrics
	tableRows *prometheus.GaugeVec

	// Store metrics
	storeWrites *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		stepsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_started_total",
				Help:      "Total number of plan steps started",
			},
			[]string{"step"},
		),
		stepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_completed_total",
				Help:      "Total number of plan steps completed",
			},
			[]string{"step", "exit"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of plan step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),

		batchesEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_evaluated_total",
				Help:      "Total number of evaluation batches dispatched",
			},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of function evaluations",
			},
			[]string{"step"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_cache_lookups_total",
				Help:      "Total number of evaluation cache lookups",
			},
			[]string{"result"},
		),

		eventsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_handled_total",
				Help:      "Total number of events dispatched to handlers",
			},
			[]string{"type"},
		),
		eventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_handling_duration_seconds",
				Help:      "Duration of event handling in seconds",
				Buckets:   buckets,
			},
			[]string{"type"},
		),

		tableRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_rows",
				Help:      "Current number of rows accumulated per report table",
			},
			[]string{"table"},
		),

		storeWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_writes_total",
				Help:      "Total number of result records persisted",
			},
			[]string{"kind"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.stepsStarted,
		m.stepsCompleted,
		m.stepDuration,
		m.batchesEvaluated,
		m.evaluations,
		m.cacheLookups,
		m.eventsHandled,
		m.eventDuration,
		m.tableRows,
		m.storeWrites,
		m.errorsByClass,
	)

	return m, nil
}

// Step Metrics

// RecordStepStarted increments the counter for started plan steps.
func (m *Metrics) RecordStepStarted(step string) {
	if m.stepsStarted == nil {
		return
	}
	m.stepsStarted.WithLabelValues(step).Inc()
}

// RecordStepCompleted records a completed plan step with its exit status
// and duration.
func (m *Metrics) RecordStepCompleted(step, exit string, duration time.Duration) {
	if m.stepsCompleted == nil {
		return
	}
	m.stepsCompleted.WithLabelValues(step, exit).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// Evaluation Metrics

// RecordBatchEvaluated increments the batch counter.
func (m *Metrics) RecordBatchEvaluated() {
	if m.batchesEvaluated == nil {
		return
	}
	m.batchesEvaluated.Inc()
}

// RecordEvaluations adds to the per-step function evaluation counter.
func (m *Metrics) RecordEvaluations(step string, count int) {
	if m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(step).Add(float64(count))
}

// RecordCacheLookup records an evaluation cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Event Metrics

// RecordEventHandled records one handled event with its handling duration.
func (m *Metrics) RecordEventHandled(eventType string, duration time.Duration) {
	if m.eventsHandled == nil {
		return
	}
	m.eventsHandled.WithLabelValues(eventType).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// Table Metrics

// RecordTableRows sets the accumulated row count of a report table.
func (m *Metrics) RecordTableRows(table string, rows int) {
	if m.tableRows == nil {
		return
	}
	m.tableRows.WithLabelValues(table).Set(float64(rows))
}

// Store Metrics

// RecordStoreWrite records one persisted result record.
func (m *Metrics) RecordStoreWrite(kind string) {
	if m.storeWrites == nil {
		return
	}
	m.storeWrites.WithLabelValues(kind).Inc()
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
