package llms

import (
	"encoding/json"
	"slices"
	"time"
)

// Role describes who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single role-tagged unit of conversation.
type Turn struct {
	// Seq is assigned by the context window when the turn is appended and is
	// strictly increasing along the conversation.
	Seq  uint64
	Role Role
	Text string
	// Images are still frames attached to the turn, usually at most one.
	Images []Image
	// ToolCalls executed while producing an assistant turn, with their
	// results.
	ToolCalls []ToolCall
	// Summary is set on the synthetic turn that stands in for a compacted
	// range of older turns.
	Summary bool
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	clone := t
	if t.Images != nil {
		clone.Images = make([]Image, len(t.Images))
		for i, image := range t.Images {
			clone.Images[i] = image.Clone()
		}
	}
	if t.ToolCalls != nil {
		clone.ToolCalls = make([]ToolCall, len(t.ToolCalls))
		for i, call := range t.ToolCalls {
			clone.ToolCalls[i] = call.Clone()
		}
	}
	return clone
}

// HasImages reports whether any image is attached to the turn.
func (t Turn) HasImages() bool {
	return len(t.Images) > 0
}

// Image is an encoded still frame attached to a turn.
type Image struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	// TurnSeq is the sequence index of the turn the image is attached to.
	TurnSeq    uint64
	CapturedAt time.Time
}

func (i Image) Clone() Image {
	clone := i
	clone.Data = slices.Clone(i.Data)
	return clone
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	// Response is the textual result handed back to the model.
	Response string
	IsError  bool
}

func (c ToolCall) Clone() ToolCall {
	clone := c
	clone.Arguments = slices.Clone(c.Arguments)
	return clone
}

// Response is what a reasoning call produced: text, tool calls or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	// StopReason is provider specific and informational only.
	StopReason string
}

func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
