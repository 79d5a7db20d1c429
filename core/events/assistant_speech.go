package events

const (
	// KindAssistantSpeechFrame identifies synthesized assistant speech audio.
	KindAssistantSpeechFrame Kind = "assistant_speech.frame"
	// KindAssistantSpeechFinal identifies TTS generation completion.
	KindAssistantSpeechFinal Kind = "assistant_speech.final"
	// KindAssistantSpeechUnavailable identifies a response delivered as text
	// only because synthesis kept failing.
	KindAssistantSpeechUnavailable Kind = "assistant_speech.unavailable"
)

// AssistantSpeechFrame carries a synthesized assistant speech audio frame.
type AssistantSpeechFrame struct {
	Base
	Audio []byte
}

// NewAssistantSpeechFrame creates an assistant speech audio frame event.
func NewAssistantSpeechFrame(audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), Audio: audio}
}

// AssistantSpeechFinal marks completion of TTS generation.
type AssistantSpeechFinal struct{ Base }

// NewAssistantSpeechFinal creates an assistant speech final event.
func NewAssistantSpeechFinal() AssistantSpeechFinal {
	return AssistantSpeechFinal{Base: NewBase(KindAssistantSpeechFinal)}
}

// AssistantSpeechUnavailable carries the text that could not be spoken.
type AssistantSpeechUnavailable struct {
	Base
	Text     string
	Attempts int
	Error    string
}

// NewAssistantSpeechUnavailable creates a text-only fallback event.
func NewAssistantSpeechUnavailable(text string, attempts int, err error) AssistantSpeechUnavailable {
	event := AssistantSpeechUnavailable{Base: NewBase(KindAssistantSpeechUnavailable), Text: text, Attempts: attempts}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}
