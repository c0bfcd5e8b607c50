package action

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/hupe1980/agentlite/core"
)

// Type is the JSON type of an action parameter.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	// TypeAny accepts any value without coercion.
	TypeAny Type = ""
)

// Field describes one named parameter of an action.
type Field struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Schema is the ordered parameter list of an action.
type Schema struct {
	Fields []Field
}

// NewSchema creates a schema from fields, keeping their order.
func NewSchema(fields ...Field) Schema { return Schema{Fields: fields} }

// Required is a shorthand for a required field.
func Required(name string, typ Type, description string) Field {
	return Field{Name: name, Type: typ, Description: description, Required: true}
}

// Optional is a shorthand for an optional field.
func Optional(name string, typ Type, description string) Field {
	return Field{Name: name, Type: typ, Description: description}
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks params against the schema on behalf of the named action and
// returns a coerced copy. Required fields must be present and non-nil; values
// are coerced to the declared type where that is lossless ("3" -> 3 for
// integers, 3 -> "3" for strings, "true" -> true, ...). Parameters not
// declared in the schema pass through unchanged.
//
// On mismatch a *core.InvalidParametersError lists every offending field in
// schema order.
func (s Schema) Validate(action string, params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	var (
		fields  []string
		reasons = map[string]string{}
	)

	for _, f := range s.Fields {
		v, ok := params[f.Name]
		if !ok || v == nil {
			delete(out, f.Name)
			if f.Required {
				fields = append(fields, f.Name)
				reasons[f.Name] = "required field is missing"
			}
			continue
		}

		cv, err := coerce(v, f.Type)
		if err != nil {
			fields = append(fields, f.Name)
			reasons[f.Name] = err.Error()
			continue
		}
		out[f.Name] = cv
	}

	if len(fields) > 0 {
		return nil, &core.InvalidParametersError{Action: action, Fields: fields, Reasons: reasons}
	}

	return out, nil
}

// Signature renders the schema as a compact call signature used in prompts,
// for example "calculator(expr: string, precision?: integer)".
func (s Schema) Signature(name string) string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		typ := string(f.Type)
		if typ == "" {
			typ = "any"
		}
		opt := ""
		if !f.Required {
			opt = "?"
		}
		parts = append(parts, fmt.Sprintf("%s%s: %s", f.Name, opt, typ))
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

// JSONSchema exports the schema as a JSON-schema object map, the shape model
// providers expect for tool declarations.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		p := map[string]any{}
		if f.Type != TypeAny {
			p["type"] = string(f.Type)
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// SchemaFromStruct derives a schema from a struct using reflection. Field
// order follows the struct declaration; names come from json tags and
// descriptions from jsonschema tags. Fields without omitempty are required.
//
// Example:
//
//	type CalcArgs struct {
//	    Expr      string `json:"expr" jsonschema:"description=Arithmetic expression"`
//	    Precision int    `json:"precision,omitempty" jsonschema:"description=Decimal places"`
//	}
func SchemaFromStruct(v any) (Schema, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	js := reflector.Reflect(v)
	if js == nil || js.Properties == nil {
		return Schema{}, fmt.Errorf("cannot derive schema from %T: not a struct", v)
	}

	required := make(map[string]bool, len(js.Required))
	for _, r := range js.Required {
		required[r] = true
	}

	fields := make([]Field, 0, js.Properties.Len())
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		f := Field{Name: pair.Key, Required: required[pair.Key]}
		if pair.Value != nil {
			f.Type = Type(pair.Value.Type)
			f.Description = pair.Value.Description
		}
		fields = append(fields, f)
	}

	return Schema{Fields: fields}, nil
}

// FormatCall renders an action invocation canonically, for example
// `calculator(expr="2+2")`. Declared fields come first in schema order,
// undeclared parameters follow sorted by name.
func FormatCall(name string, schema Schema, params map[string]any) string {
	seen := make(map[string]bool, len(params))
	parts := make([]string, 0, len(params))

	for _, f := range schema.Fields {
		v, ok := params[f.Name]
		if !ok {
			continue
		}
		seen[f.Name] = true
		parts = append(parts, f.Name+"="+formatValue(v))
	}

	extra := make([]string, 0, len(params))
	for k := range params {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, k+"="+formatValue(params[k]))
	}

	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func coerce(v any, t Type) (any, error) {
	switch t {
	case TypeAny:
		return v, nil
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case bool:
			return strconv.FormatBool(x), nil
		case json.Number:
			return x.String(), nil
		}
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
	case TypeInteger:
		switch x := v.(type) {
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return int(i), nil
			}
		case json.Number:
			if i, err := x.Int64(); err == nil {
				return int(i), nil
			}
		case int:
			return x, nil
		case int64:
			if x >= math.MinInt && x <= math.MaxInt {
				return int(x), nil
			}
		}
		if f, ok := toFloat(v); ok && isIntegral(f) {
			return int(f), nil
		}
	case TypeNumber:
		switch x := v.(type) {
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, nil
			}
		case json.Number:
			if f, err := x.Float64(); err == nil {
				return f, nil
			}
		}
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	case TypeArray:
		if a, ok := v.([]any); ok {
			return a, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out, nil
		}
	case TypeObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	default:
		return v, nil
	}

	return nil, fmt.Errorf("expected type %s, got %T", t, v)
}

// isIntegral reports whether f is a whole number that fits an int. NaN fails
// every comparison.
func isIntegral(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt && f < math.MaxInt
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
