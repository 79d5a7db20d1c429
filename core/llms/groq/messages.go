package groq

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/koscakluka/ema-chef/core/llms"
)

type message struct {
	Role messageRole `json:"role"`
	// Content is either a string or a list of content parts.
	Content    any        `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

func toTools(definitions []llms.ToolDefinition) []tool {
	if len(definitions) == 0 {
		return nil
	}
	tools := make([]tool, 0, len(definitions))
	for _, definition := range definitions {
		tools = append(tools, tool{
			Type: "function",
			Function: toolFunction{
				Name:        definition.Name,
				Description: definition.Description,
				Parameters:  definition.ParametersJSON(),
			},
		})
	}
	return tools
}

func toMessages(instructions string, turns []llms.Turn) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}
	for _, turn := range turns {
		switch turn.Role {
		case llms.RoleSystem:
			messages = append(messages, message{Role: messageRoleSystem, Content: turn.Text})

		case llms.RoleUser:
			messages = append(messages, message{Role: messageRoleUser, Content: userContent(turn)})

		case llms.RoleAssistant:
			if len(turn.ToolCalls) > 0 {
				msg := message{Role: messageRoleAssistant}
				responseMsgs := []message{}
				for _, tCall := range turn.ToolCalls {
					msg.ToolCalls = append(msg.ToolCalls, toolCall{
						ID:   tCall.ID,
						Type: "function",
						Function: toolCallFunction{
							Name:      tCall.Name,
							Arguments: string(tCall.Arguments),
						},
					})
					responseMsgs = append(responseMsgs, message{
						Role:       messageRoleTool,
						Content:    tCall.Response,
						ToolCallID: tCall.ID,
					})
				}
				messages = append(messages, msg)
				messages = append(messages, responseMsgs...)
			}
			if strings.TrimSpace(turn.Text) != "" {
				messages = append(messages, message{Role: messageRoleAssistant, Content: turn.Text})
			}
		}
	}
	return messages
}

// userContent keeps plain text as a string and switches to content parts
// when images are attached. Images go first, oldest first.
func userContent(turn llms.Turn) any {
	if !turn.HasImages() {
		return turn.Text
	}
	parts := make([]contentPart, 0, len(turn.Images)+1)
	for _, image := range turn.Images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:" + image.MediaType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)},
		})
	}
	if turn.Text != "" {
		parts = append(parts, contentPart{Type: "text", Text: turn.Text})
	}
	return parts
}
