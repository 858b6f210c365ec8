package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// PathExecutor interprets implementation descriptors along a path.
type PathExecutor struct {
	queries QueryRunner
	caller  Caller
	guard   Guard
	now     func() time.Time
}

// Option configures a PathExecutor.
type Option func(*PathExecutor)

// WithQueryRunner sets the runner used for query steps.
func WithQueryRunner(r QueryRunner) Option {
	return func(e *PathExecutor) { e.queries = r }
}

// WithCaller sets the client used for call steps.
func WithCaller(c Caller) Option {
	return func(e *PathExecutor) { e.caller = c }
}

// WithGuard sets the policy consulted before every external access.
func WithGuard(g Guard) Option {
	return func(e *PathExecutor) { e.guard = g }
}

// WithClock overrides the step timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *PathExecutor) { e.now = now }
}

// New creates an executor. Without a runner or caller the corresponding
// steps are mocked.
func New(opts ...Option) *PathExecutor {
	e := &PathExecutor{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *PathExecutor) allow(ctx context.Context, req Request) error {
	if e.guard == nil {
		return nil
	}
	return e.guard.Allow(ctx, req)
}

// Execute applies each function of path in order, starting from input.
// The returned result holds one step per function and the product of the
// step confidences. A hard failure returns the error and no result.
func (e *PathExecutor) Execute(ctx context.Context, path catalog.Path, input any, opts Options) (*Result, error) {
	executionID := uuid.New().String()
	op := telemetry.StartOperation(ctx, "execute",
		telemetry.AttrExecutionID.String(executionID),
		telemetry.AttrPathLength.Int(len(path)),
	)
	logger := op.Logger.NewComponentLogger("executor").WithExecutionID(executionID)
	events := op.Events()
	metrics := op.Metrics()

	_ = events.PublishExecutionStarted(executionID, path.String())
	logger.Debugf("Executing %d steps: %s", len(path), path)

	result := &Result{
		ExecutionID: executionID,
		Input:       input,
		Steps:       make([]Step, 0, len(path)),
		Confidence:  1,
	}

	current := input
	for i, f := range path {
		step, err := e.step(op, i, f, current, opts)
		if err != nil {
			logger.WithFunction(f.ID, implKind(f)).WithError(err).Error("Step failed")
			metrics.RecordError(engine.CodeOf(err))
			metrics.RecordExecution("failed", op.Timer.Duration())
			_ = events.PublishExecutionFailed(executionID, f.ID, err.Error())
			err = fmt.Errorf("step %d (%s): %w", i, f.ID, err)
			op.End(err)
			return nil, err
		}

		metrics.RecordStep(step.ImplKind, step.Degraded)
		_ = events.PublishExecutionStep(executionID, f.ID, step.ImplKind, step.Degraded)

		result.Steps = append(result.Steps, step)
		result.Confidence *= step.Confidence
		result.Degraded = result.Degraded || step.Degraded
		current = step.Output
	}

	result.Value = current
	result.Duration = op.Timer.Duration()

	status := "success"
	if result.Degraded {
		status = "degraded"
	}
	metrics.RecordExecution(status, result.Duration)
	_ = events.PublishExecutionCompleted(executionID, result.Confidence, result.Duration)
	logger.WithFields(map[string]interface{}{
		"confidence": result.Confidence,
		"degraded":   result.Degraded,
	}).Infof("Executed %d steps in %s", len(result.Steps), result.Duration)

	op.End(nil)
	return result, nil
}

// step runs one function against the current value.
func (e *PathExecutor) step(op *telemetry.InstrumentedContext, index int, f catalog.Function, current any, opts Options) (Step, error) {
	kind := implKind(f)
	ctx := op.Ctx
	var span trace.Span
	if tel := op.Telemetry(); tel != nil {
		ctx, span = tel.Tracer.StartStepSpan(ctx, f.ID, kind, index)
		defer span.End()
	}

	step := Step{
		ID:                 uuid.New().String(),
		Index:              index,
		FunctionID:         f.ID,
		Signature:          f.Signature(),
		ImplKind:           kind,
		Cost:               f.Cost,
		Input:              current,
		FunctionConfidence: f.Confidence,
		StartedAt:          e.now(),
	}
	if f.Impl != nil {
		step.ImplDetails = f.Impl.Details()
	}

	out, err := e.apply(ctx, f, current, opts)
	if err != nil {
		if span != nil {
			span.SetAttributes(telemetry.AttrErrorCode.String(engine.CodeOf(err)))
			telemetry.RecordError(span, err)
		}
		return Step{}, err
	}

	if out.external != "" {
		op.Metrics().RecordExternalCall(kind, out.external)
	}
	if _, denied := out.meta[MetaPolicyDenied]; denied {
		_ = op.Events().PublishPolicyViolation(f.ID, "external-access", fmt.Sprint(out.meta[MetaPolicyDenied]))
	}

	step.Output = out.value
	step.Confidence = out.confidence
	step.Degraded = out.degraded
	step.Metadata = out.meta
	step.Params = out.params
	step.DataSources = out.sources
	step.EndedAt = e.now()

	if span != nil {
		span.SetAttributes(telemetry.AttrDegraded.Bool(step.Degraded))
		telemetry.RecordSuccess(span)
	}
	if step.Degraded {
		op.Logger.WithFunction(f.ID, kind).WithField("metadata", step.Metadata).Warn("Step degraded")
	}
	return step, nil
}

func (e *PathExecutor) apply(ctx context.Context, f catalog.Function, current any, opts Options) (outcome, error) {
	if f.Arity > 0 && IsTuple(current) {
		if n := len(Components(current)); n != f.Arity {
			return outcome{}, engine.NewArgumentError(f.ID, f.Arity, n)
		}
	}

	switch impl := f.Impl.(type) {
	case catalog.Formula:
		return e.runFormula(f, impl, current, opts), nil
	case catalog.Query:
		return e.runQuery(ctx, f, impl, current, opts), nil
	case catalog.Call:
		return e.runCall(ctx, f, impl, current, opts), nil
	case catalog.Builtin:
		return runBuiltin(impl, current)
	case catalog.UnitConversion:
		return runConversion(impl, current)
	default:
		return passthrough(implKind(f), current), nil
	}
}

func implKind(f catalog.Function) string {
	if f.Impl == nil {
		return "none"
	}
	return string(f.Impl.Kind())
}
