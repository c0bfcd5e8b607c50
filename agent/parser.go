package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/agentlite/action"
	"github.com/hupe1980/agentlite/core"
)

// Decision is the interpretation of one model response: FinalAnswer,
// ActionCall or ParseFailure.
type Decision interface {
	decision()
}

// FinalAnswer terminates the loop with Answer as task result.
type FinalAnswer struct {
	Answer string
}

// ActionCall requests execution of a registered action.
type ActionCall struct {
	Name   string
	Params map[string]any
}

// ParseFailure reports a response that names an unknown action, is ambiguous
// or carries malformed parameters. Err is a *core.UnknownActionError or a
// *core.ParseError.
type ParseFailure struct {
	Err error
	Raw string
}

func (FinalAnswer) decision()  {}
func (ActionCall) decision()   {}
func (ParseFailure) decision() {}

var (
	actionMarker      = regexp.MustCompile(`(?im)^[ \t]*(?:[*_#>]+[ \t]*)?action[ \t]*\d*[ \t]*[*_]*:[*_]*[ \t]*`)
	actionInputMarker = regexp.MustCompile(`(?im)^[ \t]*action[ \t]+input[ \t]*:[ \t]*`)
	finalMarker       = regexp.MustCompile(`(?im)^[ \t]*(?:[*_#>]+[ \t]*)?final[ \t]+answer[ \t]*[*_]*:[*_]*[ \t]*`)
	identPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-.]*`)
	kwargPattern      = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*=`)
	fencePattern      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Parse interprets a model response against the actions in reg.
//
// Recognized shapes, in order of precedence:
//
//	Action: name(key="value", n=3)     keyword arguments
//	Action: name[some text]            single positional argument
//	Action: name({"key": "value"})     JSON object arguments
//	Action: name                       followed by "Action Input: {...}"
//	{"action": "name", "params": {}}   bare or fenced JSON object
//	name(key="value")                  a response consisting of one call only
//	Final Answer: text                 final answer
//
// More than one action marker, or an action marker together with a final
// answer marker, is ambiguous. Any other text is taken as the final answer.
func Parse(text string, reg *action.Registry) Decision {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failure(text, "empty response")
	}

	actions := actionMarker.FindAllStringIndex(trimmed, -1)
	finals := finalMarker.FindAllStringIndex(trimmed, -1)

	switch {
	case len(actions) > 1:
		return failure(text, fmt.Sprintf("found %d action calls, expected exactly one per response", len(actions)))
	case len(actions) == 1 && len(finals) > 0:
		return failure(text, "response contains both an action call and a final answer")
	case len(actions) == 1:
		return resolve(text, reg, func() (string, map[string]any, error) {
			return parseMarkedCall(trimmed[actions[0][1]:], reg)
		})
	case len(finals) > 0:
		return FinalAnswer{Answer: strings.TrimSpace(trimmed[finals[0][1]:])}
	}

	if name, params, ok := parseJSONCall(trimmed); ok {
		return resolve(text, reg, func() (string, map[string]any, error) { return name, params, nil })
	}

	if name, rest, ok := splitCall(trimmed); ok && reg.Has(name) {
		if end, ok := matchBracket(rest, 0); ok && end == len(rest)-1 {
			return resolve(text, reg, func() (string, map[string]any, error) {
				params, _, err := parseBracketed(name, rest, reg)
				return name, params, err
			})
		}
	}

	return FinalAnswer{Answer: trimmed}
}

func resolve(raw string, reg *action.Registry, parse func() (string, map[string]any, error)) Decision {
	name, params, err := parse()
	if name != "" && !reg.Has(name) {
		return ParseFailure{Err: &core.UnknownActionError{Name: name, Available: reg.Names()}, Raw: raw}
	}
	if err != nil {
		return failure(raw, err.Error())
	}
	if params == nil {
		params = map[string]any{}
	}
	return ActionCall{Name: name, Params: params}
}

func failure(raw, reason string) ParseFailure {
	return ParseFailure{Err: &core.ParseError{Reason: reason, Raw: raw}, Raw: raw}
}

// parseMarkedCall parses the text following an action marker.
func parseMarkedCall(s string, reg *action.Registry) (string, map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("missing action name after marker")
	}

	if name, params, ok := parseJSONCall(s); ok {
		return name, params, nil
	}

	name, rest, ok := splitCall(s)
	if !ok {
		name = identPattern.FindString(s)
		if name == "" {
			return "", nil, fmt.Errorf("missing action name after marker")
		}
		rest = s[len(name):]
		line, after, _ := strings.Cut(rest, "\n")
		if strings.TrimSpace(line) != "" {
			return name, nil, fmt.Errorf("expected ( or [ after action name %s", name)
		}
		if loc := actionInputMarker.FindStringIndex(after); loc != nil {
			params, err := parseParams(name, strings.TrimSpace(after[loc[1]:]), reg)
			return name, params, err
		}
		return name, map[string]any{}, nil
	}

	params, _, err := parseBracketed(name, rest, reg)
	return name, params, err
}

// splitCall splits "name(..." or "name[..." into the name and the text
// starting at the opening bracket.
func splitCall(s string) (string, string, bool) {
	name := identPattern.FindString(s)
	if name == "" {
		return "", "", false
	}
	rest := strings.TrimLeft(s[len(name):], " \t")
	if rest == "" || (rest[0] != '(' && rest[0] != '[') {
		return "", "", false
	}
	return name, rest, true
}

// parseBracketed parses the bracketed argument list at the start of s and
// returns the remaining text after the closing bracket.
func parseBracketed(name, s string, reg *action.Registry) (map[string]any, string, error) {
	end, ok := matchBracket(s, 0)
	if !ok {
		return nil, "", fmt.Errorf("unbalanced brackets in call to %s", name)
	}
	params, err := parseParams(name, strings.TrimSpace(s[1:end]), reg)
	return params, s[end+1:], err
}

// parseParams parses an argument list: empty, a JSON object, keyword
// arguments or one positional value bound to the first schema field.
func parseParams(name, inner string, reg *action.Registry) (map[string]any, error) {
	switch {
	case inner == "":
		return map[string]any{}, nil
	case strings.HasPrefix(inner, "{"):
		var params map[string]any
		if err := json.Unmarshal([]byte(inner), &params); err != nil {
			return nil, fmt.Errorf("invalid JSON parameters for %s: %v", name, err)
		}
		return params, nil
	case kwargPattern.MatchString(inner):
		return parseKwargs(inner)
	}

	a, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	fields := a.Schema().Fields
	if len(fields) == 0 {
		return nil, fmt.Errorf("action %s takes no parameters", name)
	}

	value := inner
	if q := inner[0]; q == '"' || q == '\'' {
		if s, n, err := readQuoted(inner, 0); err == nil && n == len(inner) {
			value = s
		}
	}
	return map[string]any{fields[0].Name: value}, nil
}

// parseKwargs parses `key=value, key2="text"` pairs. Values may be quoted
// strings, numbers, booleans, null or JSON arrays and objects; anything else
// is taken as a bare string.
func parseKwargs(s string) (map[string]any, error) {
	params := map[string]any{}
	i := 0
	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return params, nil
		}

		key := identPattern.FindString(s[i:])
		if key == "" || strings.ContainsAny(key, "-.") {
			return nil, fmt.Errorf("expected parameter name at %q", s[i:])
		}
		i = skipSpace(s, i+len(key))
		if i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("expected = after parameter %s", key)
		}
		i = skipSpace(s, i+1)

		value, next, err := readValue(s, i)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %v", key, err)
		}
		if _, dup := params[key]; dup {
			return nil, fmt.Errorf("parameter %s given twice", key)
		}
		params[key] = value

		i = skipSpace(s, next)
		if i >= len(s) {
			return params, nil
		}
		if s[i] != ',' {
			return nil, fmt.Errorf("expected , after parameter %s", key)
		}
		i++
	}
}

func readValue(s string, i int) (any, int, error) {
	if i >= len(s) {
		return nil, i, fmt.Errorf("missing value")
	}

	switch s[i] {
	case '"', '\'':
		v, next, err := readQuoted(s, i)
		return v, next, err
	case '[', '{':
		end, ok := matchBracket(s, i)
		if !ok {
			return nil, i, fmt.Errorf("unbalanced brackets")
		}
		var v any
		if err := json.Unmarshal([]byte(s[i:end+1]), &v); err != nil {
			return nil, i, fmt.Errorf("invalid JSON value: %v", err)
		}
		return v, end + 1, nil
	}

	end := strings.IndexByte(s[i:], ',')
	if end < 0 {
		end = len(s)
	} else {
		end += i
	}
	raw := strings.TrimSpace(s[i:end])
	if raw == "" {
		return nil, i, fmt.Errorf("missing value")
	}

	switch raw {
	case "true", "True":
		return true, end, nil
	case "false", "False":
		return false, end, nil
	case "null", "None", "nil":
		return nil, end, nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, end, nil
	}
	return raw, end, nil
}

// readQuoted reads a single or double quoted string starting at s[i] and
// returns the unescaped value and the index after the closing quote.
func readQuoted(s string, i int) (string, int, error) {
	q := s[i]
	var b strings.Builder
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '\\' && j+1 < len(s):
			j++
			switch s[j] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[j])
			}
		case c == q:
			return b.String(), j + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", i, fmt.Errorf("unterminated string")
}

// matchBracket returns the index of the bracket closing the one at s[open].
// Brackets inside quoted strings are ignored; a quote only opens a string
// where a value can start, so apostrophes in plain text are harmless.
func matchBracket(s string, open int) (int, bool) {
	depth := 0
	for j := open; j < len(s); j++ {
		switch c := s[j]; c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return j, true
			}
		case '"', '\'':
			if !valueStart(s, j) {
				continue
			}
			_, next, err := readQuoted(s, j)
			if err != nil {
				return 0, false
			}
			j = next - 1
		}
	}
	return 0, false
}

func valueStart(s string, j int) bool {
	k := j - 1
	for k >= 0 && (s[k] == ' ' || s[k] == '\t' || s[k] == '\n') {
		k--
	}
	if k < 0 {
		return true
	}
	return strings.IndexByte("([{,=:", s[k]) >= 0
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

// parseJSONCall recognizes {"action": name, "params": {...}} optionally
// wrapped in a markdown code fence. "parameters", "args" and "action_input"
// are accepted as aliases of "params".
func parseJSONCall(s string) (string, map[string]any, bool) {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if !strings.HasPrefix(s, "{") {
		return "", nil, false
	}
	end, ok := matchBracket(s, 0)
	if !ok || strings.TrimSpace(s[end+1:]) != "" {
		return "", nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s[:end+1]), &obj); err != nil {
		return "", nil, false
	}
	name, ok := obj["action"].(string)
	if !ok || name == "" {
		return "", nil, false
	}

	for _, key := range []string{"params", "parameters", "args", "action_input"} {
		if p, ok := obj[key].(map[string]any); ok {
			return name, p, true
		}
	}
	return name, map[string]any{}, true
}
