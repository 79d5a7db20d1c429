package llms

import (
	"fmt"
	"strings"
)

// SummaryMaxTokens bounds the length of a compaction summary.
const SummaryMaxTokens = 300

const summaryInstructions = "Summarize this cooking conversation into a compact paragraph. " +
	"Preserve key facts: what is being cooked, the current step, decisions made, " +
	"user preferences mentioned and any issues encountered. Be concise."

// Transcript renders the textual content of turns one per line, prefixed by
// role. Images are dropped, tool calls are rendered by name and result.
func Transcript(turns []Turn) string {
	var lines []string
	for _, turn := range turns {
		for _, call := range turn.ToolCalls {
			lines = append(lines, fmt.Sprintf("tool %s: %s", call.Name, call.Response))
		}
		if text := strings.TrimSpace(turn.Text); text != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, text))
		}
	}
	return strings.Join(lines, "\n")
}

// SummaryPrompt is the request a summarizer sends for turns. It is empty when
// the turns hold no text.
func SummaryPrompt(turns []Turn) string {
	transcript := Transcript(turns)
	if transcript == "" {
		return ""
	}
	return summaryInstructions + "\n\n" + transcript
}
