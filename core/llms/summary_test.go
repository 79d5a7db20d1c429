package llms

import (
	"strings"
	"testing"
)

func TestSummaryPromptSkipsEmptyTurns(t *testing.T) {
	if prompt := SummaryPrompt([]Turn{{Role: RoleUser, Images: []Image{{Data: []byte{1}}}}}); prompt != "" {
		t.Fatalf("expected empty prompt, got %q", prompt)
	}
}

func TestTranscriptIncludesToolResults(t *testing.T) {
	transcript := Transcript([]Turn{
		{Role: RoleUser, Text: "set a timer for the eggs"},
		{Role: RoleAssistant, Text: "Done.", ToolCalls: []ToolCall{{Name: "set_timer", Response: "Timer set"}}},
	})

	want := "user: set a timer for the eggs\ntool set_timer: Timer set\nassistant: Done."
	if transcript != want {
		t.Fatalf("unexpected transcript:\n%s", transcript)
	}
	if !strings.Contains(SummaryPrompt([]Turn{{Role: RoleUser, Text: "hi"}}), "user: hi") {
		t.Fatalf("expected prompt to carry the transcript")
	}
}
