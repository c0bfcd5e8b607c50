package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnresolvedChildren is returned when a task package is closed while one
// of its delegated children has not reached a terminal status yet.
var ErrUnresolvedChildren = errors.New("task has unresolved child tasks")

// DuplicateActionError is returned when an action name is registered twice.
type DuplicateActionError struct {
	Name string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q is already registered", e.Name)
}

// UnknownActionError reports a lookup of an action that is not registered.
type UnknownActionError struct {
	Name      string
	Available []string
}

func (e *UnknownActionError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown action %q", e.Name)
	}
	return fmt.Sprintf("unknown action %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// InvalidParametersError reports parameters that do not satisfy an action's
// schema. Fields lists the offending field names in schema order.
type InvalidParametersError struct {
	Action  string
	Fields  []string
	Reasons map[string]string
}

func (e *InvalidParametersError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if r, ok := e.Reasons[f]; ok && r != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", f, r))
			continue
		}
		parts = append(parts, f)
	}
	return fmt.Sprintf("invalid parameters for action %q: %s", e.Action, strings.Join(parts, ", "))
}

// ActionExecutionError wraps a failure raised by an action handler.
type ActionExecutionError struct {
	Action string
	Cause  error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Action, e.Cause)
}

func (e *ActionExecutionError) Unwrap() error { return e.Cause }

// UnknownAgentError reports a delegation target missing from a roster.
type UnknownAgentError struct {
	Name      string
	Available []string
}

func (e *UnknownAgentError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown agent %q", e.Name)
	}
	return fmt.Sprintf("unknown agent %q (team: %s)", e.Name, strings.Join(e.Available, ", "))
}

// DelegationDepthExceededError is returned when a delegation would create a
// task package deeper than the configured maximum.
type DelegationDepthExceededError struct {
	Agent    string
	Depth    int
	MaxDepth int
}

func (e *DelegationDepthExceededError) Error() string {
	return fmt.Sprintf("delegation to %q exceeds max depth %d (requested depth %d)", e.Agent, e.MaxDepth, e.Depth)
}

// DelegationTimeoutError reports a delegated task that did not finish within
// its per-delegation timeout.
type DelegationTimeoutError struct {
	Agent   string
	TaskID  string
	Timeout time.Duration
}

func (e *DelegationTimeoutError) Error() string {
	return fmt.Sprintf("delegation to %q (task %s) timed out after %s", e.Agent, e.TaskID, e.Timeout)
}

// DelegationFailedError propagates the Failed status of a child task package
// exactly one delegation level up.
type DelegationFailedError struct {
	Agent  string
	TaskID string
	Cause  error
}

func (e *DelegationFailedError) Error() string {
	return fmt.Sprintf("delegation to %q (task %s) failed: %v", e.Agent, e.TaskID, e.Cause)
}

func (e *DelegationFailedError) Unwrap() error { return e.Cause }

// ModelUnavailableError reports a model client that could not serve a
// completion. Rate-limit rejections set RateLimited.
type ModelUnavailableError struct {
	Provider    string
	RateLimited bool
	Cause       error
}

func (e *ModelUnavailableError) Error() string {
	msg := "model unavailable"
	if e.RateLimited {
		msg = "model rate limited"
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ModelUnavailableError) Unwrap() error { return e.Cause }

// ModelTimeoutError reports a completion that did not return in time.
type ModelTimeoutError struct {
	Provider string
	Cause    error
}

func (e *ModelTimeoutError) Error() string {
	msg := "model call timed out"
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ModelTimeoutError) Unwrap() error { return e.Cause }

// BudgetExceededError terminates a loop that used up its iteration budget
// without producing a final answer.
type BudgetExceededError struct {
	Iterations int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("iteration budget exceeded after %d iterations", e.Iterations)
}

// ParseError describes model output that could not be interpreted as a final
// answer or a single well-formed action call.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

// TooManyParseFailuresError terminates a loop after too many consecutive
// malformed model responses.
type TooManyParseFailuresError struct {
	Failures int
	Last     error
}

func (e *TooManyParseFailuresError) Error() string {
	return fmt.Sprintf("giving up after %d consecutive malformed responses: %v", e.Failures, e.Last)
}

func (e *TooManyParseFailuresError) Unwrap() error { return e.Last }

// InvalidTransitionError reports a task status change that would violate the
// monotonic Pending -> InProgress -> {Completed, Failed} lifecycle.
type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid status transition %s -> %s", e.TaskID, e.From, e.To)
}

// ErrorKind returns a stable snake_case label for err, classifying it by the
// outermost error of the taxonomy found in its chain. It is used in
// observations, log fields and metric labels.
func ErrorKind(err error) string {
	for err != nil {
		if k := kindOf(err); k != "" {
			return k
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return "error"
			}
			err = errs[0]
		default:
			return "error"
		}
	}
	return ""
}

func kindOf(err error) string {
	switch err.(type) {
	case *DuplicateActionError:
		return "duplicate_action"
	case *UnknownActionError:
		return "unknown_action"
	case *InvalidParametersError:
		return "invalid_parameters"
	case *ActionExecutionError:
		return "action_execution"
	case *UnknownAgentError:
		return "unknown_agent"
	case *DelegationDepthExceededError:
		return "delegation_depth_exceeded"
	case *DelegationTimeoutError:
		return "delegation_timeout"
	case *DelegationFailedError:
		return "delegation_failed"
	case *ModelUnavailableError:
		return "model_unavailable"
	case *ModelTimeoutError:
		return "model_timeout"
	case *BudgetExceededError:
		return "budget_exceeded"
	case *ParseError:
		return "parse_error"
	case *TooManyParseFailuresError:
		return "too_many_parse_failures"
	case *InvalidTransitionError:
		return "invalid_transition"
	}
	switch {
	case err == context.Canceled:
		return "cancelled"
	case err == context.DeadlineExceeded:
		return "deadline_exceeded"
	}
	return ""
}

// IsRetryable reports whether err is a model-level failure the reasoning loop
// may retry (unavailable, rate limited or timed out).
func IsRetryable(err error) bool {
	var unavailable *ModelUnavailableError
	if errors.As(err, &unavailable) {
		return true
	}
	var timeout *ModelTimeoutError
	return errors.As(err, &timeout)
}
