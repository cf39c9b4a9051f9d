// Package render resolves templated configuration values. A value may embed
// one or more {{ expr }} spans; each expression is evaluated as Starlark
// against a fixed render context. A value that consists of exactly one span
// yields the expression's native result instead of its string form, so
// templated config values keep their types (lists stay lists, ints stay ints).
package render

import (
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/starlark"
)

// exprPattern matches a single {{ ... }} template span.
var exprPattern = regexp.MustCompile(`(?s)\{\{(.*?)\}\}`)

// undefinedPattern extracts the offending name from a Starlark resolve error.
var undefinedPattern = regexp.MustCompile(`undefined: ([a-zA-Z_]\w*)`)

// UndefinedError reports a template expression referencing a name that is not
// present in the render context. Callers detect it through the
// UndefinedName method rather than this concrete type.
type UndefinedError struct {
	Name string
	Expr string
	Err  error
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined name %q in expression %q", e.Name, e.Expr)
}

func (e *UndefinedError) Unwrap() error { return e.Err }

// UndefinedName returns the unresolved reference.
func (e *UndefinedError) UndefinedName() string { return e.Name }

// Renderer evaluates template expressions against an immutable context.
// Safe for concurrent use: each evaluation runs on its own thread.
type Renderer struct {
	globals starlark.StringDict
}

// NewRenderer builds a renderer whose globals are the entries of ctx.
// Context values are converted to Starlark values up front; unsupported
// types are rejected here rather than at render time.
func NewRenderer(ctx map[string]any) (*Renderer, error) {
	globals := make(starlark.StringDict, len(ctx))
	for key, value := range ctx {
		sv, err := goToStarlark(value)
		if err != nil {
			return nil, fmt.Errorf("render context key %q: %w", key, err)
		}
		globals[key] = sv
	}
	return &Renderer{globals: globals}, nil
}

// RenderNative resolves value. Values without template spans pass through
// unchanged. A value that is exactly one span returns the native result of
// the expression; mixed literal text and spans render to a string.
func (r *Renderer) RenderNative(value string) (any, error) {
	spans := exprPattern.FindAllStringSubmatchIndex(value, -1)
	if len(spans) == 0 {
		return value, nil
	}

	if len(spans) == 1 {
		lead := strings.TrimSpace(value[:spans[0][0]])
		trail := strings.TrimSpace(value[spans[0][1]:])
		if lead == "" && trail == "" {
			result, err := r.eval(value[spans[0][2]:spans[0][3]])
			if err != nil {
				return nil, err
			}
			return toGo(result)
		}
	}

	var sb strings.Builder
	last := 0
	for _, span := range spans {
		sb.WriteString(value[last:span[0]])
		result, err := r.eval(value[span[2]:span[3]])
		if err != nil {
			return nil, err
		}
		sb.WriteString(valueString(result))
		last = span[1]
	}
	sb.WriteString(value[last:])
	return sb.String(), nil
}

// eval evaluates a single Starlark expression against the renderer globals.
func (r *Renderer) eval(expr string) (starlark.Value, error) {
	expr = strings.TrimSpace(expr)
	thread := &starlark.Thread{
		Name: "render",
		Print: func(_ *starlark.Thread, _ string) {
			// Config rendering should not print.
		},
	}
	result, err := starlark.Eval(thread, "<config>", expr, r.globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		if m := undefinedPattern.FindStringSubmatch(err.Error()); m != nil {
			return nil, &UndefinedError{Name: m[1], Expr: expr, Err: err}
		}
		return nil, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return result, nil
}

// valueString converts a Starlark value to its template string form.
// Strings render unquoted, None renders empty.
func valueString(v starlark.Value) string {
	switch val := v.(type) {
	case starlark.String:
		return string(val)
	case starlark.NoneType:
		return ""
	default:
		return v.String()
	}
}
