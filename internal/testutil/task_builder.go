package testutil

import (
	"github.com/hupe1980/agentlite/core"
)

// TaskBuilder provides a fluent helper for constructing task packages in a
// given lifecycle state.
// Example:
//
//	task := NewTaskBuilder().Instruction("2+2").Started("calc").Completed("4").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type TaskBuilder struct {
	instruction string
	originator  string
	parent      *core.TaskPackage
	assignee    string
	result      *string
	err         error
}

// NewTaskBuilder creates a builder for a top-level task submitted by the user.
func NewTaskBuilder() *TaskBuilder {
	return &TaskBuilder{instruction: "task", originator: core.UserOriginator}
}

// Instruction sets the instruction text (chainable).
func (b *TaskBuilder) Instruction(s string) *TaskBuilder { b.instruction = s; return b }

// Originator sets the originator (chainable).
func (b *TaskBuilder) Originator(s string) *TaskBuilder { b.originator = s; return b }

// ChildOf creates the task as a delegated child of parent (chainable).
func (b *TaskBuilder) ChildOf(parent *core.TaskPackage) *TaskBuilder { b.parent = parent; return b }

// Started moves the task to InProgress for assignee (chainable).
func (b *TaskBuilder) Started(assignee string) *TaskBuilder { b.assignee = assignee; return b }

// Completed closes the task with result; implies Started (chainable).
func (b *TaskBuilder) Completed(result string) *TaskBuilder { b.result = &result; return b }

// Failed closes the task with err; implies Started (chainable).
func (b *TaskBuilder) Failed(err error) *TaskBuilder { b.err = err; return b }

// Build constructs the task package. It panics on an impossible state
// combination since it is only used in tests.
func (b *TaskBuilder) Build() *core.TaskPackage {
	var t *core.TaskPackage
	if b.parent != nil {
		t = b.parent.NewChild(b.instruction, b.originator)
	} else {
		t = core.NewTaskPackage(b.instruction, b.originator)
	}

	assignee := b.assignee
	if assignee == "" && (b.result != nil || b.err != nil) {
		assignee = "agent"
	}
	if assignee != "" {
		must(t.Start(assignee))
	}

	switch {
	case b.result != nil:
		must(t.Complete(*b.result))
	case b.err != nil:
		must(t.Fail(b.err))
	}

	return t
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
