package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koscakluka/ema-chef/core/llms"
)

func TestToMessagesAlternatesRoles(t *testing.T) {
	messages := toMessages([]llms.Turn{
		{Role: llms.RoleSystem, Summary: true, Text: "[Conversation so far: picked shakshuka]"},
		{Role: llms.RoleUser, Text: "what now?", Images: []llms.Image{{Data: []byte{1, 2}, MediaType: "image/jpeg"}}},
		{Role: llms.RoleAssistant, Text: "Dice the onion.", ToolCalls: []llms.ToolCall{
			{ID: "t1", Name: "update_step", Arguments: json.RawMessage(`{"step_number":1}`), Response: "ok"},
		}},
		{Role: llms.RoleUser, Text: "done"},
	})

	roles := make([]anthropic.MessageParamRole, 0, len(messages))
	for _, message := range messages {
		roles = append(roles, message.Role)
	}
	assert.Equal(t, []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
	}, roles)

	// summary, image and text merged into the first user message
	require.Len(t, messages[0].Content, 3)
	assert.NotNil(t, messages[0].Content[1].OfImage)
	assert.NotNil(t, messages[1].Content[0].OfToolUse)
	assert.NotNil(t, messages[2].Content[0].OfToolResult)
	assert.NotNil(t, messages[3].Content[0].OfText)
}

func TestToMessagesStartsWithUser(t *testing.T) {
	messages := toMessages([]llms.Turn{{Role: llms.RoleAssistant, Text: "Hi there"}})
	require.Len(t, messages, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
}

func TestToToolsKeepsSchema(t *testing.T) {
	properties := jsonschema.NewProperties()
	properties.Set("label", &jsonschema.Schema{Type: "string"})
	tools, err := toTools([]llms.ToolDefinition{{
		Name:        "set_timer",
		Description: "Start a kitchen timer",
		Parameters:  &jsonschema.Schema{Type: "object", Properties: properties, Required: []string{"label"}},
	}})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "set_timer", tools[0].OfTool.Name)
	assert.Equal(t, []string{"label"}, tools[0].OfTool.InputSchema.Required)
}

func newTestClient(t *testing.T, reply string) (*Client, *[]map[string]any) {
	t.Helper()
	var requests []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		requests = append(requests, body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)

	client := NewClient("key", WithRequestOptions(option.WithBaseURL(server.URL), option.WithMaxRetries(0)))
	return client, &requests
}

func TestReasonParsesToolUse(t *testing.T) {
	client, requests := newTestClient(t, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "Starting a timer."},
			{"type": "tool_use", "id": "toolu_1", "name": "set_timer", "input": {"label": "eggs", "duration_seconds": 300}}
		],
		"stop_reason": "tool_use", "usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	response, err := client.Reason(context.Background(),
		llms.WithInstructions("be brief"),
		llms.WithTurns([]llms.Turn{{Role: llms.RoleUser, Text: "time my eggs"}}),
	)
	require.NoError(t, err)
	assert.Equal(t, "Starting a timer.", response.Content)
	require.Len(t, response.ToolCalls, 1)
	assert.Equal(t, "toolu_1", response.ToolCalls[0].ID)
	assert.JSONEq(t, `{"label":"eggs","duration_seconds":300}`, string(response.ToolCalls[0].Arguments))
	require.Len(t, *requests, 1)
	assert.NotNil(t, (*requests)[0]["system"])
}

func TestSearchTutorialParsesAnswer(t *testing.T) {
	client, requests := newTestClient(t, `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-haiku-4-5",
		"content": [{"type": "text", "text": "URL: https://www.seriouseats.com/shakshuka\nTITLE: Shakshuka"}],
		"stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	link, err := client.SearchTutorial(context.Background(), "Shakshuka")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "seriouseats.com", link.Source)
	tools := (*requests)[0]["tools"].([]any)
	assert.Equal(t, "web_search", tools[0].(map[string]any)["name"])
}
