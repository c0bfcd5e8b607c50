package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/agentlite/action"
)

var binaryExpr = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*([-+*/])\s*(-?\d+(?:\.\d+)?)\s*$`)

// Calculator returns an action evaluating "a op b" expressions such as 2+2.
func Calculator() action.Action {
	return action.NewFunctionAction(
		"calculator",
		"Evaluate a binary arithmetic expression such as 2+2",
		action.NewSchema(action.Required("expr", action.TypeString, "Expression to evaluate")),
		func(_ context.Context, params map[string]any) (any, error) {
			return Eval(params["expr"].(string))
		},
	)
}

// Eval evaluates a binary arithmetic expression and formats the result
// without trailing zeros.
func Eval(expr string) (string, error) {
	m := binaryExpr.FindStringSubmatch(expr)
	if m == nil {
		return "", fmt.Errorf("unsupported expression %q", expr)
	}
	a, _ := strconv.ParseFloat(m[1], 64)
	b, _ := strconv.ParseFloat(m[3], 64)

	var v float64
	switch m[2] {
	case "+":
		v = a + b
	case "-":
		v = a - b
	case "*":
		v = a * b
	case "/":
		if b == 0 {
			return "", fmt.Errorf("division by zero")
		}
		v = a / b
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Echo returns an action answering with its text parameter in upper case.
func Echo() action.Action {
	return action.NewFunctionAction(
		"shout",
		"Repeat the text in upper case",
		action.NewSchema(action.Required("text", action.TypeString, "Text to repeat")),
		func(_ context.Context, params map[string]any) (any, error) {
			return strings.ToUpper(params["text"].(string)), nil
		},
	)
}

// Blocking returns an action that waits until its context is done and
// counts how often it was entered.
func Blocking(name string, entered *atomic.Int32) action.Action {
	return action.NewFunctionAction(name, "Wait until cancelled", action.Schema{},
		func(ctx context.Context, _ map[string]any) (any, error) {
			if entered != nil {
				entered.Add(1)
			}
			<-ctx.Done()
			return nil, ctx.Err()
		})
}

// Failing returns an action that always fails with err.
func Failing(name string, err error) action.Action {
	return action.NewFunctionAction(name, "Always fails", action.Schema{},
		func(context.Context, map[string]any) (any, error) { return nil, err })
}

// Registry builds an unsealed registry from actions and panics on error.
func Registry(actions ...action.Action) *action.Registry {
	r, err := action.NewRegistry(actions...)
	must(err)
	return r
}
