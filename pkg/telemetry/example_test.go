package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/TNO-ropt/ropt-everest/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Plan runtime started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("plan")

	// Add step context fields
	logger = logger.WithStep("optimizer").WithTag("tag0").WithBatchID(3)

	// Log at different levels
	logger.Debug("Dispatching step to the engine")
	logger.Info("Batch evaluated")
	logger.Warn("Evaluation cache disabled")

	// Log with error
	err := fmt.Errorf("engine unreachable")
	logger.WithError(err).Error("Step failed")

	// Output varies, no output specified
}

// Example_stepTracing demonstrates tracing a plan step.
func Example_stepTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a step span
	ctx, span := tel.Tracer.StartStepSpan(ctx, "optimizer", "tag0")
	defer span.End()

	// Nested span for one evaluation batch
	_, batchSpan := tel.Tracer.StartEvaluationSpan(ctx, 3)
	defer batchSpan.End()

	batchSpan.SetAttributes(
		attribute.Int("batch.realizations", 10),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(batchSpan)
	telemetry.SetAttributes(span, telemetry.AttrStepExit.String("step_finished"))

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record step metrics
	tel.Metrics.RecordStepStarted("optimizer")

	// Simulate step execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordStepCompleted("optimizer", "step_finished", duration)

	// Record evaluation metrics
	tel.Metrics.RecordBatchEvaluated()
	tel.Metrics.RecordEvaluations("optimizer", 10)
	tel.Metrics.RecordCacheLookup(true)

	// Record handler metrics
	tel.Metrics.RecordEventHandled("finished_evaluation", 5*time.Millisecond)
	tel.Metrics.RecordTableRows("results", 12)
	tel.Metrics.RecordStoreWrite("functions")

	// Record error metrics
	tel.Metrics.RecordError("io")

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "render_tables",
		attribute.String("table.dir", "output"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Rendering report tables")

	// Simulate rendering
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Report tables rendered")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}
