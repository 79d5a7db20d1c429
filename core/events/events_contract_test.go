package events

import (
	"errors"
	"testing"
	"time"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	setTimerCall := ToolCall{ID: "1", Name: "set_timer", Persona: "recipe_guide"}
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user speech started", event: NewUserSpeechStarted(), expected: KindUserSpeechStarted},
		{name: "user speech ended", event: NewUserSpeechEnded(), expected: KindUserSpeechEnded},
		{name: "user interim updated", event: NewUserTranscriptInterimUpdated("text"), expected: KindUserTranscriptInterimUpdated},
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "user dish selected", event: NewUserDishSelected("d1", "Pad Thai"), expected: KindUserDishSelected},
		{name: "assistant response started", event: NewAssistantResponseStarted("chef"), expected: KindAssistantResponseStarted},
		{name: "assistant response final", event: NewAssistantResponseFinal("chef", "hi"), expected: KindAssistantResponseFinal},
		{name: "tool call started", event: NewToolCallStarted(setTimerCall, []byte("{}")), expected: KindToolCallStarted},
		{name: "tool call completed", event: NewToolCallCompleted(setTimerCall, "ok"), expected: KindToolCallCompleted},
		{name: "tool call failed", event: NewToolCallFailed(setTimerCall, errors.New("bad")), expected: KindToolCallFailed},
		{name: "assistant speech frame", event: NewAssistantSpeechFrame([]byte{1}), expected: KindAssistantSpeechFrame},
		{name: "assistant speech final", event: NewAssistantSpeechFinal(), expected: KindAssistantSpeechFinal},
		{name: "assistant speech unavailable", event: NewAssistantSpeechUnavailable("hi", 3, nil), expected: KindAssistantSpeechUnavailable},
		{name: "turn started", event: NewTurnStarted("chef", "hello"), expected: KindTurnStarted},
		{name: "turn completed", event: NewTurnCompleted("chef"), expected: KindTurnCompleted},
		{name: "turn failed", event: NewTurnFailed(nil), expected: KindTurnFailed},
		{name: "turn cancelled", event: NewTurnCancelled(), expected: KindTurnCancelled},
		{name: "persona changed", event: NewPersonaChanged("chef", "recipe_guide", "start_recipe"), expected: KindPersonaChanged},
		{name: "camera requested", event: NewCameraRequested("check the pan"), expected: KindCameraRequested},
		{name: "camera released", event: NewCameraReleased(), expected: KindCameraReleased},
		{name: "frame attached", event: NewFrameAttached(4, time.Now()), expected: KindFrameAttached},
		{name: "timer started", event: NewTimerStarted("t1", "pasta", time.Minute), expected: KindTimerStarted},
		{name: "timer finished", event: NewTimerFinished("t1", "pasta"), expected: KindTimerFinished},
		{name: "context compacted", event: NewContextCompacted(2, 20, true), expected: KindContextCompacted},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestUserSpeechStartedAndEndedKindsAreDistinct(t *testing.T) {
	started := NewUserSpeechStarted()
	ended := NewUserSpeechEnded()

	if started.Kind() == ended.Kind() {
		t.Fatalf("expected speech started and speech ended kinds to differ, both were %q", started.Kind())
	}
}

func TestErrorsAreCarriedAsText(t *testing.T) {
	failed := NewTurnFailed(errors.New("boom"))
	if failed.Error != "boom" {
		t.Fatalf("expected error text to be kept, got %q", failed.Error)
	}

	unavailable := NewAssistantSpeechUnavailable("hello", 3, errors.New("no audio"))
	if unavailable.Error != "no audio" || unavailable.Attempts != 3 {
		t.Fatalf("unexpected fallback event: %+v", unavailable)
	}
}

func TestKindNamespace(t *testing.T) {
	if got := KindPersonaChanged.Namespace(); got != "session" {
		t.Fatalf("expected session namespace, got %q", got)
	}
	if got := Kind("bare").Namespace(); got != "bare" {
		t.Fatalf("expected bare kind to be its own namespace, got %q", got)
	}
}
