package action

import "context"

// Reserved names of the built-in actions.
const (
	ThinkActionName  = "think"
	PlanActionName   = "plan"
	FinishActionName = "finish"
)

// ResponseParam is the single parameter of the built-in actions.
const ResponseParam = "response"

// Think records a free-form reasoning step. It has no side effects; the
// thought stays in memory as the action turn.
func Think() Action {
	return NewFunctionAction(
		ThinkActionName,
		"Think through the problem step by step before acting. The thought is kept in memory.",
		NewSchema(Required(ResponseParam, TypeString, "Your reasoning")),
		func(context.Context, map[string]any) (any, error) { return "OK", nil },
	)
}

// Plan records a decomposition of the task into steps.
func Plan() Action {
	return NewFunctionAction(
		PlanActionName,
		"Write down a plan of the steps needed to solve the task.",
		NewSchema(Required(ResponseParam, TypeString, "The plan")),
		func(context.Context, map[string]any) (any, error) { return "OK", nil },
	)
}

// Finish ends the reasoning loop; its response becomes the task result.
func Finish() Action {
	return NewFunctionAction(
		FinishActionName,
		"Finish the task and return the final answer.",
		NewSchema(Required(ResponseParam, TypeString, "The final answer")),
		func(_ context.Context, params map[string]any) (any, error) {
			return params[ResponseParam], nil
		},
	)
}

// Builtins returns the think, plan and finish actions.
func Builtins() []Action { return []Action{Think(), Plan(), Finish()} }
