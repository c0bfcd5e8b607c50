package action

import (
	"context"
	"encoding/json"
	"fmt"
)

// Action defines a named capability an agent can invoke during its reasoning
// loop.
//
// Actions are registered in a Registry and invoked through an Executor, which
// validates the model supplied parameters against Schema before Invoke is
// called. Handlers therefore receive parameters that are already coerced to
// the declared types.
//
// Action implementations should:
//   - Provide a unique, descriptive name (snake_case recommended)
//   - Describe what the action does so the model knows when to use it
//   - Return an error instead of panicking
//   - Be safe for concurrent use (parallel delegations share registries)
type Action interface {
	// Name returns the unique identifier for this action.
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Schema returns the ordered parameter list accepted by Invoke.
	Schema() Schema

	// Invoke executes the action with validated parameters and returns its
	// textual output. A non-nil error is reported back to the model as a
	// failed observation.
	Invoke(ctx context.Context, params map[string]any) (string, error)
}

// HandlerFunc is the signature of a plain Go function exposed as an action.
// The returned value is rendered as text: strings verbatim, fmt.Stringer via
// String, everything else as JSON.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// FunctionAction is a generic adapter that exposes a plain Go function as an
// Action.
//
// A FunctionAction has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionAction struct {
	name        string
	description string
	schema      Schema
	fn          HandlerFunc
}

// NewFunctionAction constructs a FunctionAction from an explicit schema and
// handler.
//
// Example:
//
//	calc := NewFunctionAction(
//	  "calculator",
//	  "Evaluate an arithmetic expression",
//	  NewSchema(Required("expr", TypeString, "Expression such as 2+2")),
//	  func(ctx context.Context, params map[string]any) (any, error) {
//	    return eval(params["expr"].(string))
//	  },
//	)
func NewFunctionAction(name, description string, schema Schema, fn HandlerFunc) *FunctionAction {
	return &FunctionAction{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

// NewFunctionActionFromStruct derives the parameter schema from a struct
// using reflection (see SchemaFromStruct).
func NewFunctionActionFromStruct(name, description string, structType any, fn HandlerFunc) (*FunctionAction, error) {
	schema, err := SchemaFromStruct(structType)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return NewFunctionAction(name, description, schema, fn), nil
}

// NewTypedAction builds an action whose handler receives its parameters
// decoded into T. The schema is derived from T.
//
// Example:
//
//	type CalcArgs struct {
//	  Expr string `json:"expr" jsonschema:"description=Expression such as 2+2"`
//	}
//
//	calc, err := NewTypedAction("calculator", "Evaluate arithmetic",
//	  func(ctx context.Context, args CalcArgs) (any, error) { return eval(args.Expr) })
func NewTypedAction[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) (*FunctionAction, error) {
	var zero T
	return NewFunctionActionFromStruct(name, description, &zero, func(ctx context.Context, params map[string]any) (any, error) {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode parameters: %w", err)
		}
		var args T
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
		return fn(ctx, args)
	})
}

// Name returns the unique action name.
func (a *FunctionAction) Name() string { return a.name }

// Description returns the natural language description exposed to models.
func (a *FunctionAction) Description() string { return a.description }

// Schema returns the declared parameter schema.
func (a *FunctionAction) Schema() Schema { return a.schema }

// Invoke calls the wrapped function and renders its result as text.
func (a *FunctionAction) Invoke(ctx context.Context, params map[string]any) (string, error) {
	result, err := a.fn(ctx, params)
	if err != nil {
		return "", err
	}
	return renderOutput(result)
}

func renderOutput(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case error:
		return x.Error(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render output: %w", err)
	}
	return string(b), nil
}
