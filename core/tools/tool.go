package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Tool is a named action that can be offered to the model. Validate must be
// free of side effects; Execute is only called with arguments that passed
// Validate.
type Tool interface {
	Definition() llms.ToolDefinition
	Validate(args json.RawMessage) error
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// ValidationError lists every schema violation of one set of arguments.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgs
}

// Func is a Tool whose argument schema is reflected from T.
type Func[T any] struct {
	definition llms.ToolDefinition
	schema     *gojsonschema.Schema
	handler    func(context.Context, T) (string, error)
}

// New builds a tool from a typed handler. Fields of T without omitempty are
// required; `jsonschema_description` and `jsonschema` tags refine the schema.
func New[T any](name, description string, handler func(context.Context, T) (string, error)) (*Func[T], error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", name)
	}

	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	var args T
	schema := reflector.Reflect(&args)
	// gojsonschema does not know the 2020-12 meta schema the reflector
	// declares, validation keywords used here are draft-7 compatible.
	schema.Version = ""
	schema.ID = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", name, err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", name, err)
	}

	return &Func[T]{
		definition: llms.ToolDefinition{Name: name, Description: description, Parameters: schema},
		schema:     compiled,
		handler:    handler,
	}, nil
}

// MustNew is New for tool catalogues built at start-up.
func MustNew[T any](name, description string, handler func(context.Context, T) (string, error)) *Func[T] {
	tool, err := New(name, description, handler)
	if err != nil {
		panic(err)
	}
	return tool
}

func (f *Func[T]) Definition() llms.ToolDefinition {
	return f.definition
}

func (f *Func[T]) Validate(args json.RawMessage) error {
	args = normalizeArgs(args)
	if !json.Valid(args) {
		return &ValidationError{Tool: f.definition.Name, Problems: []string{"arguments are not valid JSON"}}
	}

	result, err := f.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ValidationError{Tool: f.definition.Name, Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return &ValidationError{Tool: f.definition.Name, Problems: problems}
	}
	return nil
}

func (f *Func[T]) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed T
	if err := json.Unmarshal(normalizeArgs(args), &parsed); err != nil {
		return "", &ValidationError{Tool: f.definition.Name, Problems: []string{err.Error()}}
	}
	return f.handler(ctx, parsed)
}

func normalizeArgs(args json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(args)) == 0 {
		return json.RawMessage("{}")
	}
	return args
}
