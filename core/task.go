package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a TaskPackage.
type Status string

const (
	// StatusPending marks a task that has not been picked up by an agent.
	StatusPending Status = "pending"
	// StatusInProgress marks a task whose agent loop is running.
	StatusInProgress Status = "in_progress"
	// StatusCompleted marks a task that produced a final answer.
	StatusCompleted Status = "completed"
	// StatusFailed marks a task that terminated without a final answer.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether s is Completed or Failed.
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) String() string { return string(s) }

// TaskPackage is the unit of work passed between agents. It carries the
// instruction text, the lifecycle status, the result payload and provenance
// (originating agent and parent task for delegation chains).
//
// Status transitions are monotonic: Pending -> InProgress -> {Completed,
// Failed}; a Pending task may also fail directly (for example when cancelled
// before it started). A task with delegated children cannot close while any
// child is still running.
//
// TaskPackage is safe for concurrent use; a Manager registers sibling
// children from parallel delegations on the same parent.
type TaskPackage struct {
	ID          string
	Instruction string
	Originator  string
	ParentID    string
	Depth       int
	CreatedAt   time.Time

	mu            sync.RWMutex
	status        Status
	assignee      string
	result        string
	err           error
	completedAt   time.Time
	children      []*TaskPackage
	childFailures []error
}

// NewTaskPackage creates a top-level Pending task package.
func NewTaskPackage(instruction, originator string) *TaskPackage {
	return &TaskPackage{
		ID:          NewID(),
		Instruction: instruction,
		Originator:  originator,
		CreatedAt:   time.Now().UTC(),
		status:      StatusPending,
	}
}

// NewID generates a new unique identifier for task packages.
func NewID() string { return uuid.NewString() }

// NewChild creates a Pending task package delegated from t. The child records
// t as its parent, sits one level deeper and is registered on t so that t
// cannot close before the child resolves.
func (t *TaskPackage) NewChild(instruction, originator string) *TaskPackage {
	child := NewTaskPackage(instruction, originator)
	child.ParentID = t.ID
	child.Depth = t.Depth + 1

	t.mu.Lock()
	t.children = append(t.children, child)
	t.mu.Unlock()

	return child
}

// Status returns the current lifecycle status.
func (t *TaskPackage) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Assignee returns the name of the agent executing the task.
func (t *TaskPackage) Assignee() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.assignee
}

// Result returns the final answer of a Completed task.
func (t *TaskPackage) Result() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Err returns the diagnostic of a Failed task.
func (t *TaskPackage) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// CompletedAt returns when the task reached a terminal status.
func (t *TaskPackage) CompletedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completedAt
}

// IsTerminal reports whether the task is Completed or Failed.
func (t *TaskPackage) IsTerminal() bool { return t.Status().IsTerminal() }

// Children returns a copy of the delegated child packages in creation order.
func (t *TaskPackage) Children() []*TaskPackage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TaskPackage, len(t.children))
	copy(out, t.children)
	return out
}

// Start moves a Pending task to InProgress and records the executing agent.
func (t *TaskPackage) Start(assignee string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPending {
		return &InvalidTransitionError{TaskID: t.ID, From: t.status, To: StatusInProgress}
	}

	t.status = StatusInProgress
	t.assignee = assignee

	return nil
}

// Complete closes an InProgress task with its final answer.
func (t *TaskPackage) Complete(result string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusInProgress {
		return &InvalidTransitionError{TaskID: t.ID, From: t.status, To: StatusCompleted}
	}
	if err := t.unresolvedLocked(); err != nil {
		return err
	}

	t.status = StatusCompleted
	t.result = result
	t.completedAt = time.Now().UTC()

	return nil
}

// Fail closes a Pending or InProgress task with a diagnostic. Failures of
// delegated children recorded with RecordChildFailure are joined into the
// diagnostic chain.
func (t *TaskPackage) Fail(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.status, To: StatusFailed}
	}
	if err := t.unresolvedLocked(); err != nil {
		return err
	}

	if cause == nil {
		cause = errors.New("task failed")
	}
	if len(t.childFailures) > 0 {
		cause = errors.Join(append([]error{cause}, t.childFailures...)...)
	}

	t.status = StatusFailed
	t.err = cause
	t.completedAt = time.Now().UTC()

	return nil
}

// Abort fails t on behalf of an agent that stopped responding. Open
// descendants are failed with the same cause first so that t can close. It
// reports whether t was still open.
func (t *TaskPackage) Abort(cause error) bool {
	for _, c := range t.Children() {
		c.Abort(cause)
	}
	return t.Fail(cause) == nil
}

// RecordChildFailure remembers the failure of a delegated child so that it
// shows up in this task's diagnostic chain should this task fail as well.
func (t *TaskPackage) RecordChildFailure(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.childFailures = append(t.childFailures, err)
	t.mu.Unlock()
}

// Diagnostic renders the failure chain of a Failed task, one nested failure
// per line. It returns an empty string for tasks that did not fail.
func (t *TaskPackage) Diagnostic() string {
	err := t.Err()
	if err == nil {
		return ""
	}
	var b strings.Builder
	writeDiagnostic(&b, err, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeDiagnostic(b *strings.Builder, err error, indent int) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			writeDiagnostic(b, e, indent)
		}
		return
	}
	prefix := strings.Repeat("  ", indent)
	var delegation *DelegationFailedError
	if errors.As(err, &delegation) && delegation.Cause != nil {
		fmt.Fprintf(b, "%s[%s] delegation to %q (task %s) failed\n", prefix, ErrorKind(delegation), delegation.Agent, delegation.TaskID)
		writeDiagnostic(b, delegation.Cause, indent+1)
		return
	}
	fmt.Fprintf(b, "%s[%s] %v\n", prefix, ErrorKind(err), err)
}

func (t *TaskPackage) unresolvedLocked() error {
	for _, c := range t.children {
		if !c.Status().IsTerminal() {
			return fmt.Errorf("task %s: child %s is %s: %w", t.ID, c.ID, c.Status(), ErrUnresolvedChildren)
		}
	}
	return nil
}

func (t *TaskPackage) String() string {
	return fmt.Sprintf("TaskPackage{id=%s status=%s depth=%d}", t.ID, t.Status(), t.Depth)
}
