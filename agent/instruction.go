package agent

import (
	"github.com/hupe1980/agentlite/core"
	"github.com/hupe1980/agentlite/internal/util"
)

// InstructionProvider derives guidance from the task package being run.
type InstructionProvider interface {
	InstructionFor(task *core.TaskPackage) (string, error)
}

// InstructionFunc adapts a function to InstructionProvider.
type InstructionFunc func(task *core.TaskPackage) (string, error)

// InstructionFor implements InstructionProvider.
func (f InstructionFunc) InstructionFor(task *core.TaskPackage) (string, error) { return f(task) }

// Instruction is agent guidance added to the prompt of every task. Static
// text is a template over TaskView, for example
//
//	"{{if .Delegated}}Answer {{.Originator}} briefly.{{end}}"
//
// The zero value adds nothing.
type Instruction struct {
	text     string
	provider InstructionProvider
}

// TaskView is the template data of a static Instruction.
type TaskView struct {
	ID          string
	Instruction string
	Originator  string
	Depth       int
	// Delegated reports that a manager created the task.
	Delegated bool
}

// NewInstructionFromText creates an Instruction from template text.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction computed by p.
func NewInstructionFromProvider(p InstructionProvider) Instruction {
	return Instruction{provider: p}
}

// NewInstructionFromFunc creates an Instruction computed by f.
func NewInstructionFromFunc(f func(task *core.TaskPackage) (string, error)) Instruction {
	return Instruction{provider: InstructionFunc(f)}
}

// IsStatic reports whether the instruction is template text.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the guidance for task.
func (i Instruction) Resolve(task *core.TaskPackage) (string, error) {
	if i.provider != nil {
		return i.provider.InstructionFor(task)
	}
	return util.RenderTemplate(i.text, TaskView{
		ID:          task.ID,
		Instruction: task.Instruction,
		Originator:  task.Originator,
		Depth:       task.Depth,
		Delegated:   task.ParentID != "",
	})
}
