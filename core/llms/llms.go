package llms

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Reasoner runs one reasoning call over a conversation snapshot and the
// currently bound tool set.
type Reasoner interface {
	Reason(ctx context.Context, opts ...ReasonOption) (*Response, error)
}

// Summarizer condenses a range of turns into a short text summary. It is
// expected to be cheaper than the main reasoning call.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (string, error)
}

// ToolDefinition is the model facing description of a tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ParametersJSON returns the JSON schema of the tool arguments, or an empty
// object schema when none was declared.
func (d ToolDefinition) ParametersJSON() json.RawMessage {
	if d.Parameters == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	data, err := json.Marshal(d.Parameters)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return data
}
