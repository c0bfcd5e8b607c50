package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentlite/internal/testutil"
)

func TestTemplatePromptBuilder_Default(t *testing.T) {
	b := NewTemplatePromptBuilder("")

	out, err := b.Instructions(PromptData{
		Name:        "calc",
		Role:        "an arithmetic assistant",
		Instruction: "Always show your work.",
		Actions:     describeActions(testutil.Registry(testutil.Calculator())),
		Examples:    []string{"Action: calculator(expr=\"1+1\")"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "You are calc, an arithmetic assistant.")
	assert.Contains(t, out, "Always show your work.")
	assert.Contains(t, out, "- calculator(expr: string): Evaluate a binary arithmetic expression such as 2+2")
	assert.Contains(t, out, "Action: action_name(")
	assert.Contains(t, out, "Final Answer: <your answer>")
	assert.Contains(t, out, "Examples:")
}

func TestTemplatePromptBuilder_Custom(t *testing.T) {
	b := NewTemplatePromptBuilder(`{{.Name | upper}} at depth {{.Depth}}: {{range .Actions}}{{.Name}} {{end}}`)

	out, err := b.Instructions(PromptData{
		Name:    "calc",
		Depth:   2,
		Actions: describeActions(testutil.Registry(testutil.Calculator(), testutil.Echo())),
	})
	require.NoError(t, err)
	assert.Equal(t, "CALC at depth 2: calculator shout ", out)
}

func TestTemplatePromptBuilder_InvalidTemplate(t *testing.T) {
	_, err := NewTemplatePromptBuilder("{{.Missing").Instructions(PromptData{})
	assert.Error(t, err)
}
