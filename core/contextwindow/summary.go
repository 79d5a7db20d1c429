package contextwindow

import (
	"fmt"
	"strings"

	"github.com/koscakluka/ema-chef/core/llms"
)

const fallbackSnippetLength = 120

// fallbackSummary keeps the first line of every text turn. It is used when no
// summarizer is configured or the summarizer fails.
func fallbackSummary(turns []llms.Turn) string {
	var lines []string
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text)
		if turn.Summary {
			text = strings.TrimSuffix(strings.TrimPrefix(text, "[Conversation so far: "), "]")
			lines = append(lines, text)
			continue
		}
		if text == "" {
			for _, call := range turn.ToolCalls {
				lines = append(lines, fmt.Sprintf("%s called %s", turn.Role, call.Name))
			}
			continue
		}
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
		if len(text) > fallbackSnippetLength {
			text = text[:fallbackSnippetLength] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, text))
	}
	return strings.Join(lines, "; ")
}
