package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/personas"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxHandoffsPerTurn bounds chained handoffs, e.g. a new persona that hands
// off again in its first turn.
const maxHandoffsPerTurn = 2

func (o *Orchestrator) processInput(input turnInput) {
	turn := newActiveTurn(o.baseContext, input)
	defer turn.cancel()

	ctx, span := tracer.Start(turn.ctx, "process turn")
	defer span.End()

	queuedTime := time.Since(input.queuedAt).Seconds()
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("assistant_turn.queued_time", queuedTime)))
	span.SetAttributes(
		attribute.String("assistant_turn.input", input.kind.String()),
		attribute.Float64("assistant_turn.queued_time", queuedTime),
		attribute.String("assistant_turn.persona", string(o.machine.Active())),
	)

	started := o.runtime.begin(turn)
	defer o.runtime.finish(turn)

	if !started {
		// Superseded before it started; what the user said still belongs to
		// the conversation.
		if input.kind == inputUserTurn {
			o.appendUserTurn(input.text)
		}
		span.SetAttributes(attribute.Bool("assistant_turn.superseded", true))
		o.emitEvent(events.NewTurnCancelled())
		return
	}

	o.emitEvent(events.NewTurnStarted(string(o.machine.Active()), input.text))
	err := o.runTurn(ctx, turn)
	span.SetAttributes(attribute.Int("assistant_turn.queued_inputs", o.runtime.queuedInputCount()))

	switch {
	case turn.IsCancelled() && o.runtime.isClosed():
		span.SetAttributes(attribute.Bool("assistant_turn.cancelled", true))
	case turn.IsCancelled():
		span.SetAttributes(attribute.Bool("assistant_turn.cancelled", true))
		o.emitEvent(events.NewTurnCancelled())
	case err != nil:
		err = fmt.Errorf("failed to process turn: %w", err)
		recordError(span, err)
		logger.Error("turn failed", "input", input.kind.String(), "error", err)
		o.emitEvent(events.NewTurnFailed(err))
	default:
		o.emitEvent(events.NewTurnCompleted(string(o.machine.Active())))
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, turn *activeTurn) error {
	var err error
	switch turn.input.kind {
	case inputUserTurn:
		o.appendUserTurn(turn.input.text)
		err = o.respond(ctx, turn)
	case inputDishSelection:
		err = o.selectDish(ctx, turn)
	case inputTimerFinished:
		err = o.respond(ctx, turn)
	default:
		err = fmt.Errorf("unknown input %s", turn.input.kind)
	}

	// A handoff requested by a tool is committed even when the turn was
	// cancelled afterwards: the tool already told the model it happened.
	for hops := 0; turn.hasPendingTransition(); hops++ {
		if hops >= maxHandoffsPerTurn {
			dropped := turn.takePendingTransition()
			logger.Warn("dropping chained handoff", "persona", o.machine.Active(), "trigger", dropped.trigger)
			break
		}
		if commitErr := o.commitTransition(ctx, turn); commitErr != nil {
			return errors.Join(err, commitErr)
		}
		if turn.IsCancelled() {
			break
		}
		// The next persona opens with exactly one turn built from the shared
		// context.
		err = o.respond(ctx, turn)
	}

	if turn.IsCancelled() {
		return nil
	}
	return err
}

// appendUserTurn adds what the user said to the context, with the newest
// sampled frame attached while the camera is active.
func (o *Orchestrator) appendUserTurn(text string) uint64 {
	turn := llms.Turn{Role: llms.RoleUser, Text: text}

	var capturedAt time.Time
	if o.sampler != nil && o.sampler.Active() {
		if frame, ok := o.sampler.Select(); ok {
			turn.Images = []llms.Image{{
				Data:       frame.Data,
				MediaType:  frame.MediaType,
				Width:      frame.Width,
				Height:     frame.Height,
				CapturedAt: frame.CapturedAt,
			}}
			capturedAt = frame.CapturedAt
		}
	}

	seq := o.context.Append(turn)
	if turn.HasImages() {
		o.emitEvent(events.NewFrameAttached(seq, capturedAt))
	}
	return seq
}

// selectDish starts the selected recipe right away when the suggestion
// carries one, and otherwise tells the chef what the user picked.
func (o *Orchestrator) selectDish(ctx context.Context, turn *activeTurn) error {
	option, ok := o.broadcaster.Suggestion(turn.input.dishID)
	if !ok {
		if turn.input.text == "" {
			return fmt.Errorf("unknown dish %q", turn.input.dishID)
		}
		option.ID, option.Title = turn.input.dishID, turn.input.text
	}

	if option.Recipe != nil && o.machine.CanFire(personas.TriggerStartRecipe) == nil {
		recipe, err := option.Recipe.Clone()
		if err != nil {
			return err
		}
		if recipe.Title == "" {
			recipe.Title = option.Title
		}
		o.context.Append(llms.Turn{Role: llms.RoleUser, Text: fmt.Sprintf("I'd like to make %s.", option.Title)})
		return turn.requestTransition(o.startRecipeTransition(*recipe))
	}

	o.appendUserTurn(fmt.Sprintf("I'd like to make %s.", option.Title))
	return o.respond(ctx, turn)
}

func (o *Orchestrator) commitTransition(ctx context.Context, turn *activeTurn) error {
	pending := turn.takePendingTransition()
	if pending == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "commit persona handoff")
	defer span.End()
	span.SetAttributes(attribute.String("persona.trigger", string(pending.trigger)))

	before := o.machine.Shared()
	transition, err := o.machine.Fire(pending.trigger, pending.promote)
	if err != nil {
		err = fmt.Errorf("failed to hand off on %s: %w", pending.trigger, err)
		recordError(span, err)
		return err
	}
	span.SetAttributes(
		attribute.String("persona.from", string(transition.From)),
		attribute.String("persona.to", string(transition.To)),
	)

	if pending.committed != nil {
		pending.committed(context.WithoutCancel(ctx), transition, before)
	}
	if pending.note != "" {
		o.context.Append(llms.Turn{Role: llms.RoleSystem, Text: pending.note})
	}
	o.emitEvent(events.NewPersonaChanged(string(transition.From), string(transition.To), string(transition.Trigger)))
	return nil
}
