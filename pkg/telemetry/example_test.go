package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	fmt.Println("Telemetry ready")
	// Output: Telemetry ready
}

// Example_eventPublishing demonstrates synchronous event delivery.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Println(event.Type)
	}, telemetry.FilterByExecutionID("exec-1"))

	_ = tel.Events.PublishExecutionStarted("exec-1", "fuelToCO2")
	_ = tel.Events.PublishExecutionStarted("exec-2", "fuelToCO2")
	_ = tel.Events.PublishExecutionCompleted("exec-1", 0.9, 5*time.Millisecond)

	// Output:
	// execution.started
	// execution.completed
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DefaultConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "execute",
		telemetry.AttrPathLength.Int(2),
	)
	ic.Logger.Info("Executing path")
	ic.Metrics().RecordStep("formula", false)
	ic.Metrics().RecordExecution("success", ic.Timer.Duration())
	ic.End(nil)

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_uninstrumented shows that helpers tolerate a context without telemetry.
func Example_uninstrumented() {
	ic := telemetry.StartOperation(context.Background(), "search")
	ic.Metrics().RecordSearch(0, true, time.Millisecond)
	_ = ic.Events().PublishSearchCompleted("Fuel", "Energy", 0, 1)
	ic.End(nil)

	fmt.Println(ic.Telemetry() == nil)
	// Output: true
}
