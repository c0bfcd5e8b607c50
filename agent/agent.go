package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentlite/action"
	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/logging"
	"github.com/hupe1980/agentlite/memory"
	"github.com/hupe1980/agentlite/metrics"
	"github.com/hupe1980/agentlite/model"
)

// formatHint is appended to parse failure observations.
const formatHint = `Respond with exactly one "Action: action_name(param=\"value\")" line or with "Final Answer: <answer>".`

// Profile describes who an agent is and what it may do.
type Profile struct {
	// Role is a short role statement, e.g. "a careful arithmetic assistant".
	Role string
	// Description tells managers and the model what the agent is good at.
	Description string
	// Instruction adds static or task dependent guidance to the prompt.
	Instruction Instruction
	// Actions selects a subset of Options.Registry by name; empty selects all.
	Actions []string
	// Examples are few-shot transcripts appended to the prompt.
	Examples []string
}

// Options configures an Agent.
//
// Use functional options with New to override defaults.
type Options struct {
	Profile Profile
	// Registry is a shared action catalog; Profile.Actions selects from it.
	Registry *action.Registry
	// Actions are registered in addition to the registry selection.
	Actions []action.Action
	// DisableBuiltins omits the think, plan and finish actions.
	DisableBuiltins bool
	Config          Config
	Logger          logging.Logger
	Metrics         *metrics.Collector
	Tracer          trace.Tracer
	PromptBuilder   PromptBuilder
}

// Agent runs the reasoning loop for one task package at a time per call:
// render the prompt, ask the model, parse the response and either finish or
// execute the requested action and feed the observation back.
//
// An Agent holds no per-task state; concurrent Run calls on the same Agent
// are independent, each with its own memory and iteration budget.
type Agent struct {
	name        string
	profile     Profile
	client      model.Client
	executor    *action.Executor
	cfg         Config
	logger      logging.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer
	prompt      PromptBuilder
	taskHeader  func(task *core.TaskPackage) string
	description string
}

// New creates an agent named name that reasons with client.
//
// The agent is initialized with:
//   - DefaultConfig loop bounds
//   - The built-in think, plan and finish actions
//   - The DefaultPromptTemplate
//   - A no-op logger and the global otel tracer
func New(name string, client model.Client, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Config: DefaultConfig(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return newAgent(name, client, opts)
}

func newAgent(name string, client model.Client, opts Options, reserved ...action.Action) (*Agent, error) {
	if name == "" {
		return nil, errors.New("agent name must not be empty")
	}
	if client == nil {
		return nil, fmt.Errorf("agent %q: model client must not be nil", name)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	reg, err := buildRegistry(opts, reserved)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	logger := logging.OrNoOp(opts.Logger)
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(action.TracerName)
	}
	prompt := opts.PromptBuilder
	if prompt == nil {
		prompt = NewTemplatePromptBuilder("")
	}

	description := opts.Profile.Description
	if description == "" {
		description = fmt.Sprintf("Agent %s", name)
	}

	executor := action.NewExecutor(reg, func(o *action.ExecutorOptions) {
		o.Agent = name
		o.Logger = logger
		o.Metrics = opts.Metrics
		o.Tracer = tracer
	})

	return &Agent{
		name:        name,
		profile:     opts.Profile,
		client:      client,
		executor:    executor,
		cfg:         opts.Config,
		logger:      logger,
		metrics:     opts.Metrics,
		tracer:      tracer,
		prompt:      prompt,
		taskHeader:  func(task *core.TaskPackage) string { return task.Instruction },
		description: description,
	}, nil
}

func buildRegistry(opts Options, reserved []action.Action) (*action.Registry, error) {
	var (
		reg *action.Registry
		err error
	)
	switch {
	case opts.Registry == nil:
		reg, err = action.NewRegistry()
	case len(opts.Profile.Actions) > 0:
		reg, err = opts.Registry.Subset(opts.Profile.Actions...)
	default:
		reg, err = opts.Registry.Clone()
	}
	if err != nil {
		return nil, err
	}

	for _, a := range opts.Actions {
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}
	for _, a := range reserved {
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}
	if !opts.DisableBuiltins {
		for _, a := range action.Builtins() {
			if reg.Has(a.Name()) {
				continue
			}
			if err := reg.Register(a); err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}

// Name returns the agent name used for routing and task assignment.
func (a *Agent) Name() string { return a.name }

// Description returns what the agent is good at.
func (a *Agent) Description() string { return a.description }

// Profile returns the agent profile.
func (a *Agent) Profile() Profile { return a.profile }

// Registry returns the sealed action registry of the agent.
func (a *Agent) Registry() *action.Registry { return a.executor.Registry() }

// Config returns the loop bounds.
func (a *Agent) Config() Config { return a.cfg }

// NewMemory returns a fresh memory seeded with the task header of task.
func (a *Agent) NewMemory(task *core.TaskPackage) *memory.Memory {
	return memory.New(a.taskHeader(task))
}

// Invoke submits instruction as a new top-level task package, runs it and
// returns the terminal package.
func (a *Agent) Invoke(ctx context.Context, instruction string) *core.TaskPackage {
	task := core.NewTaskPackage(instruction, core.UserOriginator)
	_ = a.Run(ctx, task)
	return task
}

// Run drives task to a terminal status with a fresh memory. The returned
// error only reports that task could not be started or closed; the outcome
// of the loop is recorded on task.
func (a *Agent) Run(ctx context.Context, task *core.TaskPackage) error {
	return a.Execute(ctx, task, nil)
}

// Execute is Run with a caller supplied memory, which allows inspecting the
// turns after the loop returned. A nil mem is replaced by NewMemory(task).
func (a *Agent) Execute(ctx context.Context, task *core.TaskPackage, mem *memory.Memory) error {
	if mem == nil {
		mem = a.NewMemory(task)
	}
	if err := task.Start(a.name); err != nil {
		return err
	}

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agentlite.agent", a.name),
		attribute.String("agentlite.task_id", task.ID),
		attribute.Int("agentlite.depth", task.Depth),
	))
	defer span.End()

	logger := logging.ForTask(a.logger, a.name, task)
	logger.Info("agent.run.start")
	start := time.Now()

	result, iterations, runErr := a.loop(logging.NewContext(core.WithTask(ctx, task), logger), task, mem)

	var closeErr error
	if runErr == nil {
		if closeErr = task.Complete(result); closeErr != nil {
			runErr = closeErr
		}
	}
	if runErr != nil {
		if err := task.Fail(runErr); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
		span.RecordError(runErr)
		span.SetStatus(codes.Error, core.ErrorKind(runErr))
		logger.Debug("agent.loop.transcript", "transcript", mem.Transcript())
	}

	span.SetAttributes(
		attribute.Int("agentlite.iterations", iterations),
		attribute.Int("agentlite.actions", mem.Count(core.RoleAction)),
		attribute.String("agentlite.status", string(task.Status())),
	)
	a.metrics.ObserveTask(a.name, string(task.Status()))
	logging.LogLoopExecution(logger, a.name, iterations, time.Since(start), runErr)

	return closeErr
}

func (a *Agent) loop(ctx context.Context, task *core.TaskPackage, mem *memory.Memory) (string, int, error) {
	budget := core.NewIterationBudget(a.cfg.MaxIterations)

	instructions, err := a.instructions(task)
	if err != nil {
		return "", 0, err
	}

	parseFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return "", budget.Count(), err
		}
		if err := budget.Next(); err != nil {
			return "", budget.Count(), err
		}
		a.metrics.IncLoopIteration(a.name)

		text, err := a.reason(ctx, instructions, mem)
		if err != nil {
			return "", budget.Count(), err
		}
		mem.Append(core.ModelTurn(text))

		switch d := Parse(text, a.executor.Registry()).(type) {
		case FinalAnswer:
			return d.Answer, budget.Count(), nil

		case ParseFailure:
			parseFailures++
			logging.FromContext(ctx, a.logger).Warn("agent.parse.failed", "kind", core.ErrorKind(d.Err), "error", d.Err.Error())
			mem.Append(core.ObservationTurn(core.ErrorObservation("", d.Err).Text() + "\n" + formatHint))
			if a.cfg.MaxParseFailures > 0 && parseFailures >= a.cfg.MaxParseFailures {
				return "", budget.Count(), &core.TooManyParseFailuresError{Failures: parseFailures, Last: d.Err}
			}

		case ActionCall:
			parseFailures = 0
			if err := ctx.Err(); err != nil {
				return "", budget.Count(), err
			}

			var schema action.Schema
			if act, err := a.executor.Registry().Lookup(d.Name); err == nil {
				schema = act.Schema()
			}
			mem.Append(core.ActionTurn(action.FormatCall(d.Name, schema, d.Params)))

			obs := a.executor.Execute(ctx, d.Name, d.Params)
			mem.Append(core.ObservationTurn(obs.Text()))

			if d.Name == action.FinishActionName && !obs.Failed() {
				return obs.Output, budget.Count(), nil
			}
		}
	}
}

func (a *Agent) instructions(task *core.TaskPackage) (string, error) {
	extra, err := a.profile.Instruction.Resolve(task)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	out, err := a.prompt.Instructions(PromptData{
		Name:        a.name,
		Role:        a.profile.Role,
		Description: a.profile.Description,
		Instruction: extra,
		Actions:     describeActions(a.executor.Registry()),
		Examples:    a.profile.Examples,
		TaskID:      task.ID,
		Depth:       task.Depth,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}

// reason asks the model for the next step, retrying retryable failures with
// exponential backoff.
func (a *Agent) reason(ctx context.Context, instructions string, mem *memory.Memory) (string, error) {
	req := model.Request{
		Instructions: instructions,
		Task:         mem.Task(),
		Turns:        mem.Window(a.cfg.ContextWindow),
	}

	ctx, span := a.tracer.Start(ctx, "model.complete", trace.WithAttributes(
		attribute.String("agentlite.agent", a.name),
	))
	defer span.End()

	info := model.InfoOf(a.client)
	logger := logging.FromContext(ctx, a.logger)
	attempt := 0

	op := func() (model.Response, error) {
		attempt++
		start := time.Now()
		resp, err := a.client.Complete(ctx, req)
		dur := time.Since(start)

		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = core.ErrorKind(err)
		}
		a.metrics.ObserveModelCall(a.name, outcome, dur)
		logging.LogModelCall(logger, info.Name, resp.Tokens(), dur, err)

		switch {
		case err == nil:
			return resp, nil
		case ctx.Err() != nil:
			return resp, backoff.Permanent(ctx.Err())
		case !core.IsRetryable(err):
			return resp, backoff.Permanent(err)
		}
		return resp, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.RetryBackoff
	if a.cfg.MaxRetryBackoff > 0 {
		b.MaxInterval = a.cfg.MaxRetryBackoff
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(a.cfg.MaxModelRetries+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warn("model.call.retry", "attempt", attempt, "kind", core.ErrorKind(err), "backoff", d)
		}),
	)

	span.SetAttributes(attribute.Int("agentlite.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, core.ErrorKind(err))
		return "", err
	}

	return resp.Text, nil
}
