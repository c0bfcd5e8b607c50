package action

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/logging"
	"github.com/hupe1980/agentlite/metrics"
)

// TracerName is the instrumentation scope used for spans emitted by this module.
const TracerName = "github.com/hupe1980/agentlite"

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Agent labels log entries, metrics and spans with the owning agent.
	Agent   string
	Logger  logging.Logger
	Metrics *metrics.Collector
	Tracer  trace.Tracer
}

// Executor validates requested action calls against the registry and runs
// them. Every outcome, including unknown names, invalid parameters, handler
// errors and panics, is returned as a core.Observation so the reasoning loop
// can feed it back to the model.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions
}

// NewExecutor creates an executor over reg and seals reg.
func NewExecutor(reg *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}

	reg.Seal()

	return &Executor{registry: reg, opts: opts}
}

// Registry returns the sealed registry the executor dispatches to.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute runs the named action with the given raw parameters.
//
// Error Semantics (all reported via Observation.Err):
//
//	unknown name                     -> *core.UnknownActionError
//	schema mismatch                  -> *core.InvalidParametersError
//	delegation / parameter errors    -> forwarded unchanged
//	any other handler error or panic -> *core.ActionExecutionError
//
// Logging Fields:
//
//	action: action name
//	kind: error kind of a failed call
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) core.Observation {
	logger := logging.FromContext(ctx, e.opts.Logger)
	start := time.Now()

	ctx, span := e.opts.Tracer.Start(ctx, "action.execute", trace.WithAttributes(
		attribute.String("agentlite.agent", e.opts.Agent),
		attribute.String("agentlite.action", name),
	))
	defer span.End()

	logger.Debug("action.call.start", "action", name)

	obs := e.execute(logging.NewContext(ctx, logger), name, params)

	outcome := metrics.OutcomeSuccess
	if obs.Failed() {
		outcome = core.ErrorKind(obs.Err)
		span.RecordError(obs.Err)
		span.SetStatus(codes.Error, outcome)
	}
	logging.LogActionCall(logger, name, time.Since(start), obs.Err)
	e.opts.Metrics.ObserveAction(e.opts.Agent, name, outcome)

	return obs
}

func (e *Executor) execute(ctx context.Context, name string, params map[string]any) core.Observation {
	a, err := e.registry.Lookup(name)
	if err != nil {
		return core.ErrorObservation(name, err)
	}

	if params == nil {
		params = map[string]any{}
	}

	validated, err := a.Schema().Validate(name, params)
	if err != nil {
		return core.ErrorObservation(name, err)
	}

	out, err := e.invoke(ctx, a, validated)
	if err != nil {
		if !passthrough(err) {
			err = &core.ActionExecutionError{Action: name, Cause: err}
		}
		return core.ErrorObservation(name, err)
	}

	return core.Observation{Action: name, Output: out}
}

func (e *Executor) invoke(ctx context.Context, a Action, params map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx, e.opts.Logger).Error("action.call.panic", "action", a.Name(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Invoke(ctx, params)
}

// passthrough reports errors that already carry a precise classification
// for the model and are reported as-is instead of being wrapped.
func passthrough(err error) bool {
	switch err.(type) {
	case *core.ActionExecutionError,
		*core.InvalidParametersError,
		*core.UnknownAgentError,
		*core.DelegationDepthExceededError,
		*core.DelegationTimeoutError,
		*core.DelegationFailedError:
		return true
	}
	return false
}
