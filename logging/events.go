package logging

import (
	"time"

	"go.uber.org/zap"

	"github.com/hupe1980/agentlite/core"
)

// The helpers below route domain events to the StructuredLogger helpers when
// the logger supports them and fall back to plain key/value entries otherwise.
// Failed actions, model calls and delegations are recoverable and log at warn
// level; a failed loop logs at error level.

type actionCallLogger interface {
	LogActionCall(action string, dur time.Duration, success bool, err error)
}

type modelCallLogger interface {
	LogModelCall(model string, tokens int, dur time.Duration, success bool, err error)
}

type loopLogger interface {
	LogLoopExecution(agent string, iterations int, dur time.Duration, success bool, err error)
}

type delegationLogger interface {
	LogDelegation(manager, member string, depth int, dur time.Duration, success bool, err error)
}

// LogActionCall records the outcome of an action invocation.
func LogActionCall(l Logger, action string, dur time.Duration, err error) {
	if dl, ok := l.(actionCallLogger); ok {
		dl.LogActionCall(action, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Warn("action.call.failed", "action", action, "duration", dur, "kind", core.ErrorKind(err), "error", err.Error())
		return
	}
	l.Info("action.call.completed", "action", action, "duration", dur)
}

// LogModelCall records the outcome of a model completion.
func LogModelCall(l Logger, model string, tokens int, dur time.Duration, err error) {
	if dl, ok := l.(modelCallLogger); ok {
		dl.LogModelCall(model, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Warn("model.call.failed", "model", model, "duration", dur, "kind", core.ErrorKind(err), "error", err.Error())
		return
	}
	l.Info("model.call.completed", "model", model, "token_count", tokens, "duration", dur)
}

// LogLoopExecution records the outcome of a reasoning loop.
func LogLoopExecution(l Logger, agent string, iterations int, dur time.Duration, err error) {
	if dl, ok := l.(loopLogger); ok {
		dl.LogLoopExecution(agent, iterations, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Error("agent.loop.failed", "loop_agent", agent, "iterations", iterations, "duration", dur, "kind", core.ErrorKind(err), "error", err.Error())
		return
	}
	l.Info("agent.loop.completed", "loop_agent", agent, "iterations", iterations, "duration", dur)
}

// LogDelegation records the outcome of a delegation creating a child at
// depth.
func LogDelegation(l Logger, manager, member string, depth int, dur time.Duration, err error) {
	if dl, ok := l.(delegationLogger); ok {
		dl.LogDelegation(manager, member, depth, dur, err == nil, err)
		return
	}
	if err != nil {
		l.Warn("manager.delegate.failed", "manager", manager, "member", member, "child_depth", depth, "duration", dur, "kind", core.ErrorKind(err), "error", err.Error())
		return
	}
	l.Info("manager.delegate.completed", "manager", manager, "member", member, "child_depth", depth, "duration", dur)
}

// ForTask scopes l to agent and task so every entry carries agent, task_id
// and depth, plus parent_id for delegated tasks.
func ForTask(l Logger, agent string, t *core.TaskPackage) Logger {
	switch v := l.(type) {
	case *StructuredLogger:
		return v.WithComponent("agent").WithTask(agent, t)
	case *ZapAdapter:
		fs := []zap.Field{zap.String("agent", agent), zap.String("task_id", t.ID), zap.Int("depth", t.Depth)}
		if t.ParentID != "" {
			fs = append(fs, zap.String("parent_id", t.ParentID))
		}
		return NewZapAdapter(v.logger.With(fs...))
	case NoOpLogger:
		return v
	}

	args := []any{"agent", agent, "task_id", t.ID, "depth", t.Depth}
	if t.ParentID != "" {
		args = append(args, "parent_id", t.ParentID)
	}
	return &scopedLogger{next: l, args: args}
}

type scopedLogger struct {
	next Logger
	args []any
}

func (s *scopedLogger) with(args []any) []any {
	return append(append(make([]any, 0, len(s.args)+len(args)), s.args...), args...)
}

func (s *scopedLogger) Debug(msg string, args ...any) { s.next.Debug(msg, s.with(args)...) }
func (s *scopedLogger) Info(msg string, args ...any)  { s.next.Info(msg, s.with(args)...) }
func (s *scopedLogger) Warn(msg string, args ...any)  { s.next.Warn(msg, s.with(args)...) }
func (s *scopedLogger) Error(msg string, args ...any) { s.next.Error(msg, s.with(args)...) }
