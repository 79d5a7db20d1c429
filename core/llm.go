package orchestration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/personas"
	"github.com/koscakluka/ema-chef/core/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// respond runs the active persona's reasoning loop until it settles on a
// reply, requests a handoff or runs out of tool rounds. The reply is appended
// to the context and spoken. Nothing produced after ctx is cancelled reaches
// the context or speech.
func (o *Orchestrator) respond(ctx context.Context, turn *activeTurn) error {
	persona := o.machine.Active()
	registry := o.toolsets[persona]

	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()
	span.SetAttributes(attribute.String("assistant_turn.persona", string(persona)))

	o.emitEvent(events.NewAssistantResponseStarted(string(persona)))

	var reply string
	for round := 0; ; round++ {
		if round >= o.maxToolRounds {
			logger.Warn("tool round limit reached without a reply", "persona", persona, "rounds", round)
			span.SetAttributes(attribute.Bool("assistant_turn.tool_rounds_exhausted", true))
			return nil
		}

		response, err := o.reason(ctx, registry)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			recordError(span, err)
			return err
		}

		if !response.HasToolCalls() {
			reply = response.Content
			break
		}

		calls := o.dispatchToolCalls(withActiveTurn(ctx, turn), persona, registry, response.ToolCalls)
		var names []string
		for _, call := range calls {
			names = append(names, call.Name)
		}
		span.AddEvent("tool round", trace.WithAttributes(attribute.StringSlice("assistant_turn.tool_calls", names)))
		o.context.Append(llms.Turn{Role: llms.RoleAssistant, Text: response.Content, ToolCalls: calls})

		if turn.hasPendingTransition() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if reply == "" {
		return nil
	}
	o.context.Append(llms.Turn{Role: llms.RoleAssistant, Text: reply})
	o.emitEvent(events.NewAssistantResponseFinal(string(persona), reply))

	return o.textToSpeech.speak(ctx, reply)
}

func (o *Orchestrator) reason(ctx context.Context, registry *tools.Registry) (*llms.Response, error) {
	instructions, err := o.machine.Instructions()
	if err != nil {
		return nil, err
	}

	response, err := o.reasoner.Reason(ctx,
		llms.WithInstructions(instructions),
		llms.WithTurns(o.context.Snapshot()),
		llms.WithTools(registry.Definitions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reason: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("reasoner returned no response")
	}
	return response, nil
}

// dispatchToolCalls runs every call of one reasoning round in order and
// returns them with their results. Calls left when the turn is cancelled are
// answered with a failure so the model always sees one result per call.
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, persona personas.Persona, registry *tools.Registry, calls []llms.ToolCall) []llms.ToolCall {
	results := make([]llms.ToolCall, 0, len(calls))
	for _, call := range calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		if ctx.Err() != nil {
			results = append(results, tools.Result{CallID: call.ID, Tool: call.Name, Err: ctx.Err()}.Apply(call))
			continue
		}

		ref := events.ToolCall{ID: call.ID, Name: call.Name, Persona: string(persona)}
		o.emitEvent(events.NewToolCallStarted(ref, call.Arguments))
		result := registry.Dispatch(ctx, call)
		if result.OK() {
			o.emitEvent(events.NewToolCallCompleted(ref, result.Output))
		} else {
			o.emitEvent(events.NewToolCallFailed(ref, result.Err))
		}
		results = append(results, result.Apply(call))
	}
	return results
}
