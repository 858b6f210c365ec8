// Package telemetry provides observability instrumentation for typesynth.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus) and event publishing behind one
// Telemetry value carried in the context.
//
// # Usage
//
// Initialize telemetry at startup and attach it to the context:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// The search engine and the executor pick the instance up from the context.
// Without one they run uninstrumented; every Metrics and EventPublisher
// method is safe on a nil receiver.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("executor")
//	logger.WithExecutionID(id).WithFunction("fuelToCO2", "formula").Info("Step done")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Spans: "search", "execute" and one "execute.step" per function. Supported
// exporters are OTLP over gRPC, stdout and none.
//
// # Metrics
//
// Prometheus metrics are registered on a private registry and served by
// Metrics.Handler, which the API server mounts at /metrics:
//
//	typesynth_searches_total
//	typesynth_search_duration_seconds
//	typesynth_paths_found
//	typesynth_steps_total{kind,degraded}
//	typesynth_executions_total{status}
//
// # Events
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeExecutionCompleted))
//
// Event types: search.completed, execution.started, execution.step,
// execution.completed, execution.failed, policy.violation, catalog.reloaded.
//
// # Graceful Shutdown
//
// Shutdown flushes buffered events and pending spans.
package telemetry
