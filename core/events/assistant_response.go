package events

const (
	// KindAssistantResponseStarted identifies a reasoning pass start.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantResponseFinal identifies the final assistant text of a turn.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseStarted marks the start of a reasoning pass for the given
// persona.
type AssistantResponseStarted struct {
	Base
	Persona string
}

// NewAssistantResponseStarted creates an assistant response started event.
func NewAssistantResponseStarted(persona string) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), Persona: persona}
}

// AssistantResponseFinal carries the text the assistant settled on.
type AssistantResponseFinal struct {
	Base
	Persona string
	Text    string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(persona, text string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Persona: persona, Text: text}
}
