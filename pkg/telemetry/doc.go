// Package telemetry provides observability instrumentation for the plan
// runtime.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) into a unified system.
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// The logger provides component-specific logging with context propagation:
//
//	logger := tel.Logger.NewComponentLogger("plan")
//	logger = logger.WithStep("optimizer").WithBatchID(3)
//	logger.Info("batch evaluated")
//	logger.WithError(err).Error("step failed")
//
// Tracing wraps plan steps and evaluation batches:
//
//	ctx, span := tel.Tracer.StartStepSpan(ctx, "optimizer", tag)
//	defer span.End()
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported trace exporters: OTLP over gRPC (production), stdout
// (development), none (testing). Metrics are exposed via HTTP at /metrics
// when enabled.
package telemetry
