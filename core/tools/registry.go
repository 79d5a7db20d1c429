package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-chef/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Result is the outcome of exactly one tool invocation.
type Result struct {
	CallID string
	Tool   string
	Output string
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Content is what the model sees for this result.
func (r Result) Content() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Output
}

// Apply records the result on the tool call it answers.
func (r Result) Apply(call llms.ToolCall) llms.ToolCall {
	call.Response = r.Content()
	call.IsError = !r.OK()
	return call
}

// Registry maps tool names to tools. It is populated at construction and only
// read afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if err := r.register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(tool Tool) error {
	name := tool.Definition().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s registered twice", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Scope returns a registry exposing only the named tools.
func (r *Registry) Scope(names ...string) (*Registry, error) {
	scoped := &Registry{tools: make(map[string]Tool, len(names))}
	for _, name := range names {
		tool, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		if err := scoped.register(tool); err != nil {
			return nil, err
		}
	}
	return scoped, nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Definitions returns the model facing definitions in registration order.
func (r *Registry) Definitions() []llms.ToolDefinition {
	if r == nil {
		return nil
	}
	definitions := make([]llms.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.tools[name].Definition())
	}
	return definitions
}

// Dispatch validates and executes one tool call. Invalid arguments never reach
// the handler. A panicking handler is reported as a failed result.
func (r *Registry) Dispatch(ctx context.Context, call llms.ToolCall) (result Result) {
	result = Result{CallID: call.ID, Tool: call.Name}

	ctx, span := tracer.Start(ctx, "dispatch tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name), attribute.String("tool.call_id", call.ID))

	defer func() {
		if recovered := recover(); recovered != nil {
			result.Output = ""
			result.Err = fmt.Errorf("tool %s panicked: %v", call.Name, recovered)
		}
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
			logger.Warn("tool call failed", "tool", call.Name, "error", result.Err)
		}
	}()

	tool, ok := r.Lookup(call.Name)
	if !ok {
		result.Err = fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		return result
	}

	if err := tool.Validate(call.Arguments); err != nil {
		result.Err = err
		return result
	}

	output, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		result.Err = err
		return result
	}
	result.Output = output
	return result
}

// IsValidationError reports whether err came from argument validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidArgs)
}
