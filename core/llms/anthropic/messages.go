package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/koscakluka/ema-chef/core/llms"
)

// toMessages maps turns onto alternating user and assistant messages. System
// turns become bracketed user text and consecutive messages of the same role
// are merged, since the API wants strict alternation starting with the user.
func toMessages(turns []llms.Turn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	add := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, blocks...)
			return
		}
		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, turn := range turns {
		switch turn.Role {
		case llms.RoleSystem:
			if text := strings.TrimSpace(turn.Text); text != "" {
				if !strings.HasPrefix(text, "[") {
					text = "[" + text + "]"
				}
				add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(text))
			}

		case llms.RoleUser:
			var blocks []anthropic.ContentBlockParamUnion
			for _, image := range turn.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(image.MediaType, base64.StdEncoding.EncodeToString(image.Data)))
			}
			if text := strings.TrimSpace(turn.Text); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			add(anthropic.MessageParamRoleUser, blocks...)

		case llms.RoleAssistant:
			if len(turn.ToolCalls) > 0 {
				uses := make([]anthropic.ContentBlockParamUnion, 0, len(turn.ToolCalls))
				results := make([]anthropic.ContentBlockParamUnion, 0, len(turn.ToolCalls))
				for _, call := range turn.ToolCalls {
					arguments := call.Arguments
					if !json.Valid(arguments) {
						arguments = json.RawMessage(`{}`)
					}
					uses = append(uses, anthropic.NewToolUseBlock(call.ID, arguments, call.Name))
					results = append(results, anthropic.NewToolResultBlock(call.ID, call.Response, call.IsError))
				}
				add(anthropic.MessageParamRoleAssistant, uses...)
				add(anthropic.MessageParamRoleUser, results...)
			}
			if text := strings.TrimSpace(turn.Text); text != "" {
				add(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(text))
			}
		}
	}

	if len(messages) > 0 && messages[0].Role != anthropic.MessageParamRoleUser {
		start := anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("[Conversation start]")},
		}
		messages = append([]anthropic.MessageParam{start}, messages...)
	}
	return messages
}

func toTools(definitions []llms.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	if len(definitions) == 0 {
		return nil, nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(definitions))
	for _, definition := range definitions {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if err := json.Unmarshal(definition.ParametersJSON(), &schema); err != nil {
			return nil, fmt.Errorf("invalid parameters for tool %s: %w", definition.Name, err)
		}
		if schema.Properties == nil {
			schema.Properties = map[string]any{}
		}
		tool := anthropic.ToolParam{
			Name: definition.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		if definition.Description != "" {
			tool.Description = anthropic.String(definition.Description)
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools, nil
}
