package events

import "encoding/json"

const (
	KindToolCallStarted   Kind = "tool_call.started"
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed covers unknown tools, rejected arguments and
	// handler errors alike. Failed calls have no side effects.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCall identifies one call and the persona whose toolset ran it.
type ToolCall struct {
	ID      string
	Name    string
	Persona string
}

type ToolCallStarted struct {
	Base
	ToolCall
	Arguments json.RawMessage
}

func NewToolCallStarted(call ToolCall, arguments json.RawMessage) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), ToolCall: call, Arguments: arguments}
}

type ToolCallCompleted struct {
	Base
	ToolCall
	Response string
}

func NewToolCallCompleted(call ToolCall, response string) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), ToolCall: call, Response: response}
}

type ToolCallFailed struct {
	Base
	ToolCall
	Error string
}

func NewToolCallFailed(call ToolCall, err error) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), ToolCall: call, Error: err.Error()}
}
