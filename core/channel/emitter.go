package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrClosed = errors.New("channel closed")

// Publisher delivers an encoded message on a topic, e.g. over the realtime
// transport's data channel.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload []byte) error
}

// Sink accepts messages for delivery without blocking the caller.
type Sink interface {
	Emit(msg Message) error
}

type queued struct {
	msg  Message
	done chan struct{}
}

type topicQueue struct {
	mu      sync.Mutex
	pending []queued
	signal  chan struct{}
}

func (q *topicQueue) push(item queued) {
	q.mu.Lock()
	q.pending = append(q.pending, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *topicQueue) pop() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return queued{}, false
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	return item, true
}

// Emitter publishes messages with one worker per topic, so messages on a topic
// keep their emission order while topics never wait on each other.
type Emitter struct {
	publisher Publisher

	mu     sync.Mutex
	queues map[Topic]*topicQueue
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

func NewEmitter(publisher Publisher) *Emitter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Emitter{
		publisher: publisher,
		queues:    make(map[Topic]*topicQueue),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Emit queues msg for delivery and returns immediately.
func (e *Emitter) Emit(msg Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	if !Known(msg.Topic(), msg.Kind()) {
		return unsupported(fmt.Sprintf("kind %q is not defined for topic %q", msg.Kind(), msg.Topic()), "type")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.queueLocked(msg.Topic()).push(queued{msg: msg})
	return nil
}

func (e *Emitter) queueLocked(topic Topic) *topicQueue {
	if q, ok := e.queues[topic]; ok {
		return q
	}

	q := &topicQueue{signal: make(chan struct{}, 1)}
	e.queues[topic] = q
	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		e.run(topic, q)
	}()
	return q
}

func (e *Emitter) run(topic Topic, q *topicQueue) {
	for {
		select {
		case <-e.ctx.Done():
			for item, ok := q.pop(); ok; item, ok = q.pop() {
				if item.done != nil {
					close(item.done)
				}
			}
			return
		case <-q.signal:
			for item, ok := q.pop(); ok; item, ok = q.pop() {
				if item.msg != nil {
					e.publish(topic, item.msg)
				}
				if item.done != nil {
					close(item.done)
				}
			}
		}
	}
}

func (e *Emitter) publish(topic Topic, msg Message) {
	ctx, span := tracer.Start(e.ctx, "publish channel message")
	defer span.End()
	span.SetAttributes(attribute.String("channel.topic", string(topic)), attribute.String("channel.kind", string(msg.Kind())))

	data, err := Encode(msg)
	if err == nil && e.publisher != nil {
		err = e.publisher.Publish(ctx, topic, data)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("failed to publish channel message", "topic", topic, "kind", msg.Kind(), "error", err)
	}
}

// Flush waits until everything emitted before the call has been published.
func (e *Emitter) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	markers := make([]chan struct{}, 0, len(e.queues))
	for _, q := range e.queues {
		done := make(chan struct{})
		q.push(queued{done: done})
		markers = append(markers, done)
	}
	e.mu.Unlock()

	for _, done := range markers {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops all workers. Messages not yet published are dropped.
func (e *Emitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.workers.Wait()
}
