package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/koscakluka/ema-chef/core/personas"
)

func TestInterruptingInputCancelsActiveTurn(t *testing.T) {
	r := newSessionRuntime()
	defer r.close()

	r.enqueue(turnInput{kind: inputUserTurn, text: "first"})
	turn := newActiveTurn(context.Background(), <-r.queue)
	if !r.begin(turn) {
		t.Fatalf("expected the first turn to start")
	}

	r.enqueue(turnInput{kind: inputDishSelection, dishID: "dish-1"})
	if !turn.IsCancelled() {
		t.Fatalf("expected the active turn to be cancelled")
	}
	r.finish(turn)

	if got := r.activeTurn(); got != nil {
		t.Fatalf("expected no active turn, got %d", got.id)
	}
}

func TestTimerInputDoesNotInterrupt(t *testing.T) {
	r := newSessionRuntime()
	defer r.close()

	r.enqueue(turnInput{kind: inputUserTurn, text: "first"})
	turn := newActiveTurn(context.Background(), <-r.queue)
	r.begin(turn)
	defer r.finish(turn)

	r.enqueue(turnInput{kind: inputTimerFinished, timer: personas.Timer{ID: "t1", Label: "eggs"}})
	if turn.IsCancelled() {
		t.Fatalf("expected a finished timer to wait for the active turn")
	}
	if got := r.queuedInputCount(); got != 1 {
		t.Fatalf("expected the timer to be queued, got %d inputs", got)
	}
}

func TestSupersededInputDoesNotStart(t *testing.T) {
	r := newSessionRuntime()
	defer r.close()

	r.enqueue(turnInput{kind: inputUserTurn, text: "first"})
	r.enqueue(turnInput{kind: inputUserTurn, text: "second"})

	stale := newActiveTurn(context.Background(), <-r.queue)
	if r.begin(stale) {
		t.Fatalf("expected the older input to be superseded")
	}
	if !stale.IsCancelled() {
		t.Fatalf("expected the superseded turn to be cancelled")
	}
	r.finish(stale)

	latest := newActiveTurn(context.Background(), <-r.queue)
	if !r.begin(latest) {
		t.Fatalf("expected the newest input to start")
	}
	r.finish(latest)
}

func TestEnqueueAfterCloseIsDropped(t *testing.T) {
	r := newSessionRuntime()
	r.close()

	if r.enqueue(turnInput{kind: inputUserTurn, text: "late"}) {
		t.Fatalf("expected input to be dropped after close")
	}
}

func TestCloseUnblocksFullQueue(t *testing.T) {
	r := newSessionRuntime()
	for range sessionQueueCapacity {
		r.enqueue(turnInput{kind: inputTimerFinished})
	}

	done := make(chan bool, 1)
	go func() { done <- r.enqueue(turnInput{kind: inputTimerFinished}) }()

	r.close()
	select {
	case queued := <-done:
		if queued {
			t.Fatalf("expected the blocked input to be dropped")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for enqueue to return")
	}
}

func TestPendingTransitionIsRequestedOnce(t *testing.T) {
	turn := newActiveTurn(context.Background(), turnInput{kind: inputUserTurn})
	defer turn.cancel()

	if err := turn.requestTransition(pendingTransition{trigger: personas.TriggerStartRecipe}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := turn.requestTransition(pendingTransition{trigger: personas.TriggerFinishRecipe}); err == nil {
		t.Fatalf("expected a second handoff in the same turn to fail")
	}

	pending := turn.takePendingTransition()
	if pending == nil || pending.trigger != personas.TriggerStartRecipe {
		t.Fatalf("expected the first handoff to be kept, got %+v", pending)
	}
	if turn.hasPendingTransition() {
		t.Fatalf("expected no pending handoff after taking it")
	}
}
