package agent

import (
	"github.com/hupe1980/agentlite/action"
	"github.com/hupe1980/agentlite/internal/util"
)

// ActionInfo describes one available action in a prompt.
type ActionInfo struct {
	Name        string
	Description string
	Signature   string
}

// PromptData is the input of a PromptBuilder.
type PromptData struct {
	Name        string
	Role        string
	Description string
	Instruction string
	Actions     []ActionInfo
	Examples    []string
	TaskID      string
	Depth       int
}

// PromptBuilder renders the system instructions sent with every model request.
type PromptBuilder interface {
	Instructions(data PromptData) (string, error)
}

// DefaultPromptTemplate describes the agent, its actions and the response
// protocol understood by Parse.
const DefaultPromptTemplate = `You are {{.Name}}{{if .Role}}, {{.Role}}{{end}}.
{{- if .Description}}
{{.Description}}
{{- end}}
{{- if .Instruction}}

{{.Instruction}}
{{- end}}

Solve the task step by step. In every response either call exactly one action or give the final answer, never both.

Available actions:
{{- range .Actions}}
- {{.Signature}}: {{.Description}}
{{- end}}

To call an action, respond with a single line:
Action: action_name(param="value", other=3)

When you know the answer, respond with:
Final Answer: <your answer>
{{- if .Examples}}

Examples:
{{- range .Examples}}

{{.}}
{{- end}}
{{- end}}`

// TemplatePromptBuilder renders a text/template against PromptData.
type TemplatePromptBuilder struct {
	Template string
}

// NewTemplatePromptBuilder returns a builder for tmpl, or for
// DefaultPromptTemplate when tmpl is empty.
func NewTemplatePromptBuilder(tmpl string) *TemplatePromptBuilder {
	if tmpl == "" {
		tmpl = DefaultPromptTemplate
	}
	return &TemplatePromptBuilder{Template: tmpl}
}

// Instructions implements PromptBuilder.
func (b *TemplatePromptBuilder) Instructions(data PromptData) (string, error) {
	return util.RenderTemplate(b.Template, data)
}

func describeActions(reg *action.Registry) []ActionInfo {
	actions := reg.Actions()
	out := make([]ActionInfo, len(actions))
	for i, a := range actions {
		out[i] = ActionInfo{
			Name:        a.Name(),
			Description: a.Description(),
			Signature:   a.Schema().Signature(a.Name()),
		}
	}
	return out
}
