package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentlite/action"
	"github.com/hupe1980/agentlite/archive"
	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/logging"
	"github.com/hupe1980/agentlite/metrics"
	"github.com/hupe1980/agentlite/model"
)

const (
	// DelegateActionName is the reserved action that runs one child task.
	DelegateActionName = "delegate"
	// DelegateParallelActionName is the reserved action that runs several
	// child tasks concurrently.
	DelegateParallelActionName = "delegate_parallel"

	// AgentNameParam names the delegation target.
	AgentNameParam = "agent_name"
	// InstructionParam carries the child task instruction.
	InstructionParam = "instruction"
	// TasksParam carries the list of parallel delegations.
	TasksParam = "tasks"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Options
	Delegation DelegationConfig
	// Archive receives every child task package once its result has been
	// consumed. Nil disables archiving.
	Archive archive.Store
}

// Manager is an agent whose action set additionally contains delegate and
// delegate_parallel. Delegations create child task packages one level deeper
// than the manager's own task and run them on roster members.
//
// The only aggregation of member results is the manager's own final answer.
type Manager struct {
	*Agent
	roster     *Roster
	delegation DelegationConfig
	archive    archive.Store
}

// NewManager creates a manager that delegates to the members of roster.
func NewManager(name string, client model.Client, roster *Roster, optFns ...func(o *ManagerOptions)) (*Manager, error) {
	if roster == nil {
		return nil, fmt.Errorf("manager %q: roster must not be nil", name)
	}

	opts := ManagerOptions{
		Options:    Options{Config: DefaultConfig()},
		Delegation: DefaultDelegationConfig(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Delegation.Validate(); err != nil {
		return nil, fmt.Errorf("manager %q: %w", name, err)
	}

	m := &Manager{
		roster:     roster,
		delegation: opts.Delegation,
		archive:    opts.Archive,
	}

	a, err := newAgent(name, client, opts.Options, m.delegateAction(), m.delegateParallelAction())
	if err != nil {
		return nil, err
	}
	a.taskHeader = m.taskHeader
	m.Agent = a

	return m, nil
}

// Roster returns the delegation targets.
func (m *Manager) Roster() *Roster { return m.roster }

// Delegation returns the delegation bounds.
func (m *Manager) Delegation() DelegationConfig { return m.delegation }

func (m *Manager) taskHeader(task *core.TaskPackage) string {
	if m.roster.Len() == 0 {
		return task.Instruction
	}
	return fmt.Sprintf("%s\n\nTeam members you can delegate to:\n%s", task.Instruction, m.roster.Describe())
}

func (m *Manager) delegateAction() action.Action {
	return action.NewFunctionAction(
		DelegateActionName,
		"Delegate a sub-task to a team member and wait for its result.",
		action.NewSchema(
			action.Required(AgentNameParam, action.TypeString, "Name of the team member"),
			action.Required(InstructionParam, action.TypeString, "Self-contained instruction for the member"),
		),
		func(ctx context.Context, params map[string]any) (any, error) {
			parent := core.TaskFromContext(ctx)
			if parent == nil {
				return nil, errors.New("delegate called outside of a running task")
			}
			agentName, _ := params[AgentNameParam].(string)
			instruction, _ := params[InstructionParam].(string)
			return m.delegate(ctx, parent, agentName, instruction)
		},
	)
}

func (m *Manager) delegateParallelAction() action.Action {
	return action.NewFunctionAction(
		DelegateParallelActionName,
		`Delegate independent sub-tasks to team members concurrently. tasks is a JSON array of {"agent_name": ..., "instruction": ...} objects.`,
		action.NewSchema(
			action.Required(TasksParam, action.TypeArray, "Sub-tasks to run concurrently"),
		),
		func(ctx context.Context, params map[string]any) (any, error) {
			parent := core.TaskFromContext(ctx)
			if parent == nil {
				return nil, errors.New("delegate_parallel called outside of a running task")
			}
			items, err := parallelItems(params[TasksParam])
			if err != nil {
				return nil, err
			}
			return m.delegateParallel(ctx, parent, items), nil
		},
	)
}

type delegation struct {
	agent       string
	instruction string
}

func parallelItems(raw any) ([]delegation, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, &core.InvalidParametersError{
			Action:  DelegateParallelActionName,
			Fields:  []string{TasksParam},
			Reasons: map[string]string{TasksParam: "expected a non-empty array"},
		}
	}

	out := make([]delegation, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalidItem(i, "expected an object")
		}
		agentName, _ := obj[AgentNameParam].(string)
		if agentName == "" {
			agentName, _ = obj["agent"].(string)
		}
		instruction, _ := obj[InstructionParam].(string)
		if agentName == "" || instruction == "" {
			return nil, invalidItem(i, "agent_name and instruction are required")
		}
		out[i] = delegation{agent: agentName, instruction: instruction}
	}
	return out, nil
}

func invalidItem(i int, reason string) error {
	return &core.InvalidParametersError{
		Action:  DelegateParallelActionName,
		Fields:  []string{TasksParam},
		Reasons: map[string]string{TasksParam: fmt.Sprintf("item %d: %s", i+1, reason)},
	}
}

// delegateParallel runs every item as its own child task and blocks until
// all of them finished. Results are reported in input order; a failed item
// is rendered as an error line and never fails the whole call.
func (m *Manager) delegateParallel(ctx context.Context, parent *core.TaskPackage, items []delegation) string {
	results := make([]string, len(items))

	var g errgroup.Group
	if m.delegation.MaxParallel > 0 {
		g.SetLimit(m.delegation.MaxParallel)
	}

	for i, item := range items {
		g.Go(func() error {
			out, err := m.delegate(ctx, parent, item.agent, item.instruction)
			if err != nil {
				out = core.ErrorObservation(DelegateActionName, err).Text()
			}
			results[i] = fmt.Sprintf("[%d] %s: %s", i+1, item.agent, out)
			return nil
		})
	}
	_ = g.Wait()

	return strings.Join(results, "\n")
}

// delegate runs instruction as a child of parent on the named member.
//
// Error Semantics:
//
//	child deeper than MaxDepth -> *core.DelegationDepthExceededError (no child created)
//	name not on the roster     -> *core.UnknownAgentError (no child created)
//	child exceeded Timeout     -> *core.DelegationTimeoutError
//	child Failed               -> *core.DelegationFailedError wrapping the child diagnostic
func (m *Manager) delegate(ctx context.Context, parent *core.TaskPackage, agentName, instruction string) (out string, err error) {
	depth := parent.Depth + 1
	start := time.Now()
	logger := logging.FromContext(ctx, m.logger)

	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = core.ErrorKind(err)
		}
		m.metrics.ObserveDelegation(m.name, agentName, outcome)
		logging.LogDelegation(logger, m.name, agentName, depth, time.Since(start), err)
	}()

	if depth > m.delegation.MaxDepth {
		return "", &core.DelegationDepthExceededError{Agent: agentName, Depth: depth, MaxDepth: m.delegation.MaxDepth}
	}

	member, err := m.roster.Lookup(agentName)
	if err != nil {
		return "", err
	}

	child := parent.NewChild(instruction, m.name)

	ctx, span := m.tracer.Start(ctx, "manager.delegate", trace.WithAttributes(
		attribute.String("agentlite.manager", m.name),
		attribute.String("agentlite.member", agentName),
		attribute.String("agentlite.task_id", child.ID),
		attribute.Int("agentlite.depth", depth),
	))
	defer span.End()

	out, err = m.runChild(ctx, member.Agent, child)
	if err != nil {
		parent.RecordChildFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, core.ErrorKind(err))
	}

	if m.archive != nil {
		if saveErr := m.archive.Save(child); saveErr != nil {
			logger.Warn("manager.archive.failed", "child_id", child.ID, "error", saveErr.Error())
		}
	}

	return out, err
}

// runChild runs child on member and waits until it returns or its context
// ends. A member that ignores cancellation is abandoned: its task is closed
// here and a late answer is discarded.
func (m *Manager) runChild(ctx context.Context, member core.Agent, child *core.TaskPackage) (string, error) {
	childCtx := ctx
	var deadline time.Time
	if m.delegation.Timeout > 0 {
		var cancel context.CancelFunc
		deadline = time.Now().Add(m.delegation.Timeout)
		childCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- member.Run(childCtx, child) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-childCtx.Done():
		select {
		case runErr = <-done:
		default:
		}
	}

	if m.timedOut(ctx, childCtx, child, deadline) {
		err := &core.DelegationTimeoutError{Agent: member.Name(), TaskID: child.ID, Timeout: m.delegation.Timeout}
		child.Abort(err)
		return "", err
	}

	if !child.IsTerminal() {
		cause := runErr
		if cause == nil {
			cause = childCtx.Err()
		}
		if cause == nil {
			cause = fmt.Errorf("agent %q returned without closing the task", member.Name())
		}
		if !child.Abort(cause) && !child.IsTerminal() {
			logging.FromContext(ctx, m.logger).Error("manager.child.unresolved", "child_id", child.ID)
		}
	}

	if child.Status() == core.StatusCompleted {
		return child.Result(), nil
	}

	cause := child.Err()
	if cause == nil {
		cause = runErr
	}
	return "", &core.DelegationFailedError{Agent: member.Name(), TaskID: child.ID, Cause: cause}
}

// timedOut reports whether the delegation deadline fired before child closed.
// A child that closed in time keeps its outcome even when the deadline passed
// while the manager was collecting it.
func (m *Manager) timedOut(ctx, childCtx context.Context, child *core.TaskPackage, deadline time.Time) bool {
	if m.delegation.Timeout <= 0 || ctx.Err() != nil || !errors.Is(childCtx.Err(), context.DeadlineExceeded) {
		return false
	}
	return !child.IsTerminal() || child.CompletedAt().After(deadline)
}
