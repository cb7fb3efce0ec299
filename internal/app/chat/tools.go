package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.\-]{0,63}$`)

// Tool declares a callable the model may ask to invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  *Schema

	call func(ctx context.Context, args json.RawMessage) (any, error)
}

// Validate checks that the declaration is acceptable to the service.
func (t Tool) Validate() error {
	if !toolNamePattern.MatchString(t.Name) {
		return fmt.Errorf("tool name %q must start with a letter or underscore and contain at most 64 letters, digits, '_', '.' or '-'", t.Name)
	}
	if t.Parameters != nil && t.Parameters.Type != TypeObject {
		return fmt.Errorf("tool %s: parameters must be an object schema", t.Name)
	}
	return nil
}

// Callable reports whether the tool wraps a Go function.
func (t Tool) Callable() bool {
	return t.call != nil
}

// Call runs the wrapped function with args decoded into its parameter type.
// args is usually ToolCall.Args.
func (t Tool) Call(ctx context.Context, args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: encode arguments: %w", t.Name, err)
	}
	return t.CallJSON(ctx, raw)
}

// CallJSON is Call for an argument object still in JSON form, such as
// FunctionCall.Arguments.
func (t Tool) CallJSON(ctx context.Context, args json.RawMessage) (any, error) {
	if t.call == nil {
		return nil, fmt.Errorf("tool %s is a declaration only", t.Name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return t.call(ctx, args)
}

// ToolFromStruct declares a tool named after T whose parameters are T's
// fields. The model answers with a call carrying a T-shaped argument object,
// which makes this the usual way to request structured output.
func ToolFromStruct[T any](description string) (Tool, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	params, err := SchemaOf(t)
	if err != nil {
		return Tool{}, err
	}
	tool := Tool{Name: t.Name(), Description: description, Parameters: params}
	return tool, tool.Validate()
}

// NewFunctionTool declares a tool backed by fn. The parameter schema is
// reflected from A, which must be a struct. An empty name is derived from
// the function symbol, which only works for named functions.
func NewFunctionTool[A any, R any](name, description string, fn func(context.Context, A) (R, error)) (Tool, error) {
	if fn == nil {
		return Tool{}, fmt.Errorf("tool function is nil")
	}
	if name == "" {
		name = functionName(fn)
	}
	params, err := SchemaOf(reflect.TypeOf((*A)(nil)).Elem())
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}
	tool := Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		call: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args A
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, fmt.Errorf("tool %s: decode arguments: %w", name, err)
				}
			}
			return fn(ctx, args)
		},
	}
	return tool, tool.Validate()
}

// MustTool panics when building a tool fails. Intended for package-level
// tool declarations.
func MustTool(t Tool, err error) Tool {
	if err != nil {
		panic(err)
	}
	return t
}

func functionName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return ""
	}
	full := f.Name()
	if i := strings.LastIndex(full, "."); i >= 0 {
		full = full[i+1:]
	}
	// closures are named func1, func2, ...; refuse them
	if strings.HasPrefix(full, "func") {
		return ""
	}
	return strings.TrimSuffix(full, "-fm")
}

func toolNames(tools []Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}
