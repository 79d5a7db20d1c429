package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-chef/core/personas"
)

var errTransitionPending = errors.New("a persona handoff is already pending for this turn")

// pendingTransition is a handoff requested by a tool. It is committed by the
// session loop once the reasoning pass that requested it has stopped.
type pendingTransition struct {
	trigger personas.Trigger
	// promote moves values into the shared state of the next persona.
	promote func(*personas.Shared) error
	// committed runs after the machine switched persona; before is the shared
	// state as it was before the switch.
	committed func(ctx context.Context, transition personas.Transition, before personas.Shared)
	// note is appended to the context as a system turn for the next persona.
	note string
}

type activeTurn struct {
	id     uint64
	input  turnInput
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending *pendingTransition
}

func newActiveTurn(ctx context.Context, input turnInput) *activeTurn {
	ctx, cancel := context.WithCancel(ctx)
	return &activeTurn{id: input.seq, input: input, ctx: ctx, cancel: cancel}
}

func (t *activeTurn) IsCancelled() bool {
	return t.ctx.Err() != nil
}

// requestTransition records a handoff. A turn can request at most one.
func (t *activeTurn) requestTransition(transition pendingTransition) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		return fmt.Errorf("%w (%s)", errTransitionPending, t.pending.trigger)
	}
	t.pending = &transition
	return nil
}

func (t *activeTurn) hasPendingTransition() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *activeTurn) takePendingTransition() *pendingTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.pending
	t.pending = nil
	return pending
}

type activeTurnKey struct{}

func withActiveTurn(ctx context.Context, turn *activeTurn) context.Context {
	return context.WithValue(ctx, activeTurnKey{}, turn)
}

func activeTurnFromContext(ctx context.Context) (*activeTurn, bool) {
	turn, ok := ctx.Value(activeTurnKey{}).(*activeTurn)
	return turn, ok && turn != nil
}
