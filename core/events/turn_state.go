package events

const (
	// KindTurnStarted identifies turn start.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnCompleted identifies successful turn completion.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnFailed identifies turn failure.
	KindTurnFailed Kind = "turn_state.failed"
	// KindTurnCancelled identifies turn cancellation.
	KindTurnCancelled Kind = "turn_state.cancelled"
)

// TurnStarted marks the start of a turn and the input that caused it.
type TurnStarted struct {
	Base
	Persona string
	Input   string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(persona, input string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), Persona: persona, Input: input}
}

// TurnCompleted marks successful completion of the current turn.
type TurnCompleted struct {
	Base
	Persona string
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(persona string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), Persona: persona}
}

// TurnFailed marks failure of the current turn.
type TurnFailed struct {
	Base
	Error string
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(err error) TurnFailed {
	event := TurnFailed{Base: NewBase(KindTurnFailed)}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// TurnCancelled marks cancellation of the current turn.
type TurnCancelled struct{ Base }

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled() TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled)}
}
