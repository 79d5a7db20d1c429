package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-chef/core/personas"
)

const sessionQueueCapacity = 10

type inputKind int

const (
	inputUserTurn inputKind = iota
	inputDishSelection
	inputTimerFinished
)

func (k inputKind) String() string {
	switch k {
	case inputUserTurn:
		return "user_turn"
	case inputDishSelection:
		return "dish_selection"
	case inputTimerFinished:
		return "timer_finished"
	default:
		return fmt.Sprintf("input(%d)", int(k))
	}
}

type turnInput struct {
	kind   inputKind
	text   string
	dishID string
	timer  personas.Timer

	seq      uint64
	queuedAt time.Time
}

// interrupts reports whether the input cancels the turn in flight. Finished
// timers wait for the conversation instead.
func (i turnInput) interrupts() bool {
	return i.kind != inputTimerFinished
}

// sessionRuntime serializes turns of one session. Only one turn is active at
// a time and a new one starts only after the previous one has returned.
type sessionRuntime struct {
	queue   chan turnInput
	closeCh chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	active *activeTurn
	// nextSeq numbers inputs in arrival order; lastInterrupt is the number of
	// the newest interrupting input.
	nextSeq       uint64
	lastInterrupt uint64
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		queue:   make(chan turnInput, sessionQueueCapacity),
		closeCh: make(chan struct{}),
	}
}

func (r *sessionRuntime) run(ctx context.Context, process func(turnInput)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.closeCh:
			return nil
		case input := <-r.queue:
			if r.isClosed() {
				return nil
			}
			process(input)
		}
	}
}

// enqueue queues input and, if it interrupts, cancels the active turn. It
// blocks while the queue is full and returns false once the runtime closed.
func (r *sessionRuntime) enqueue(input turnInput) bool {
	if r.isClosed() {
		return false
	}

	r.mu.Lock()
	r.nextSeq++
	input.seq = r.nextSeq
	input.queuedAt = time.Now()
	if input.interrupts() {
		r.lastInterrupt = input.seq
		if r.active != nil {
			r.active.cancel()
		}
	}
	r.mu.Unlock()

	select {
	case <-r.closeCh:
		return false
	case r.queue <- input:
		return true
	}
}

// begin makes turn the active turn. It reports false when an interrupting
// input arrived after the turn's input, in which case the turn is cancelled
// before it starts.
func (r *sessionRuntime) begin(turn *activeTurn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		// process runs turns one after another, so this is a bug.
		panic("orchestration: turn started while another is active")
	}
	r.active = turn
	if r.lastInterrupt > turn.input.seq {
		turn.cancel()
		return false
	}
	return true
}

func (r *sessionRuntime) finish(turn *activeTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == turn {
		r.active = nil
	}
}

func (r *sessionRuntime) activeTurn() *activeTurn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *sessionRuntime) close() {
	r.closeOnce.Do(func() {
		close(r.closeCh)

		r.mu.Lock()
		if r.active != nil {
			r.active.cancel()
		}
		r.mu.Unlock()
	})
}

func (r *sessionRuntime) isClosed() bool {
	select {
	case <-r.closeCh:
		return true
	default:
		return false
	}
}

func (r *sessionRuntime) queuedInputCount() int {
	return len(r.queue)
}
