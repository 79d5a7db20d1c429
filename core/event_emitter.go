package orchestration

import "github.com/koscakluka/ema-chef/core/events"

// EventHandler receives every orchestration event of a session. It is called
// synchronously from the goroutine that produced the event and must not
// block.
type EventHandler interface {
	HandleEvent(event events.Event)
}

type EventHandlerFunc func(events.Event)

func (f EventHandlerFunc) HandleEvent(event events.Event) { f(event) }

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newEventEmitter(handler EventHandler) eventEmitter {
	if handler == nil {
		return noopEventEmitter
	}
	return func(event events.Event) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("event handler panicked", "namespace", event.Kind().Namespace(), "kind", event.Kind(), "panic", recovered)
			}
		}()
		handler.HandleEvent(event)
	}
}
