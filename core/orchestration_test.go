package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-chef/core/channel"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/frames"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/personas"
	"github.com/koscakluka/ema-chef/core/profiles"
	"github.com/koscakluka/ema-chef/core/recipes"
	"github.com/koscakluka/ema-chef/core/speechtotext"
	"github.com/koscakluka/ema-chef/core/texttospeech"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testUserID = "ana"

func TestCloseBeforeOrchestrateMarksClosed(t *testing.T) {
	o := NewOrchestrator(WithReasoner(&reasonerStub{}))
	o.Close()

	if !o.runtime.isClosed() {
		t.Fatalf("expected orchestrator to be closed")
	}
	if err := o.Orchestrate(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOrchestrateRequiresReasoner(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	if err := o.Orchestrate(context.Background()); !errors.Is(err, ErrNoReasoner) {
		t.Fatalf("expected ErrNoReasoner, got %v", err)
	}
}

func TestPromptQueuedBeforeOrchestrateIsAnswered(t *testing.T) {
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		return textResponse("Hello! I'm Ema."), nil
	}}
	recorder := &eventRecorder{}
	o := NewOrchestrator(WithReasoner(reasoner), WithEventHandler(recorder))
	defer o.Close()

	o.SendPrompt("hi there")
	startSession(t, o)

	waitForCondition(t, 2*time.Second, "response to queued prompt", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})
	if got := recorder.responses(); len(got) != 1 || got[0] != "Hello! I'm Ema." {
		t.Fatalf("expected one response, got %q", got)
	}
	if persona := o.Persona(); persona != personas.Onboarding {
		t.Fatalf("expected a new user to be onboarded, got %s", persona)
	}
}

func TestOnboardingHandsOffToChefThenRecipeGuide(t *testing.T) {
	store := profiles.NewMemoryStore()
	publisher := &publisherStub{}
	recorder := &eventRecorder{}
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		last := lastTurn(options)
		switch {
		case offers(options, personas.ToolSaveProfile) && last.Role == llms.RoleUser:
			return toolCallResponse(personas.ToolSaveProfile, `{
				"full_name": "Ana Horvat",
				"first_name": "Ana",
				"culinary_background": "cooks most weeknights",
				"comfort_level": "intermediate",
				"goals": "learn Italian classics"
			}`), nil
		case offers(options, personas.ToolStartRecipe) && last.Role == llms.RoleSystem:
			return textResponse("Hi Ana! What do you feel like cooking?"), nil
		case offers(options, personas.ToolStartRecipe) && last.Role == llms.RoleUser:
			return toolCallResponse(personas.ToolStartRecipe, cacioEPepeArgs), nil
		case offers(options, personas.ToolUpdateStep):
			return textResponse("Let's make cacio e pepe. Put the water on."), nil
		}
		return nil, fmt.Errorf("unexpected reasoning call, last turn %q", last.Text)
	}}

	o := NewOrchestrator(
		WithReasoner(reasoner),
		WithProfileStore(store, testUserID),
		WithPublisher(publisher),
		WithEventHandler(recorder),
	)
	defer o.Close()
	startSession(t, o)

	o.SendPrompt("I'm Ana, I cook most weeknights and want to learn Italian classics.")
	waitForCondition(t, 2*time.Second, "handoff to the chef", func() bool {
		return o.Persona() == personas.Chef && recorder.count(events.KindTurnCompleted) == 1
	})

	profile, err := store.LoadProfile(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("expected profile to be saved: %v", err)
	}
	if profile.FirstName != "Ana" || profile.ComfortLevel != "intermediate" {
		t.Fatalf("unexpected saved profile %+v", profile)
	}

	o.SendPrompt("Cacio e pepe for two, please.")
	waitForCondition(t, 2*time.Second, "handoff to the recipe guide", func() bool {
		return o.Persona() == personas.RecipeGuide && recorder.count(events.KindTurnCompleted) == 2
	})
	waitForCondition(t, time.Second, "recipe start to be published", func() bool {
		return publisher.count(channel.KindRecipeStart) == 1
	})

	changes := recorder.ofKind(events.KindPersonaChanged)
	if len(changes) != 2 {
		t.Fatalf("expected two persona changes, got %d", len(changes))
	}
	if change := changes[1].(events.PersonaChanged); change.From != string(personas.Chef) || change.To != string(personas.RecipeGuide) {
		t.Fatalf("unexpected second persona change %+v", change)
	}
	want := []string{"Hi Ana! What do you feel like cooking?", "Let's make cacio e pepe. Put the water on."}
	if got := recorder.responses(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected exactly one first turn per persona, got %q", got)
	}

	recipe := o.machine.Shared().Recipe
	if recipe == nil || recipe.Title != "Cacio e pepe" || len(recipe.Steps) != 3 {
		t.Fatalf("expected the recipe to be promoted to the guide, got %+v", recipe)
	}
	if state := o.ChannelState(); state.Recipe.Recipe == nil || state.Recipe.Recipe.Title != "Cacio e pepe" {
		t.Fatalf("expected the recipe channel to show the recipe, got %+v", state.Recipe)
	}
}

func TestUserInputCancelsResponseInFlight(t *testing.T) {
	reasoningStarted := make(chan struct{})
	recorder := &eventRecorder{}
	reasoner := &reasonerStub{reply: func(ctx context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		if lastUserText(options) == "tell me a long story" {
			close(reasoningStarted)
			<-ctx.Done()
			return textResponse("a story nobody hears"), nil
		}
		return textResponse("Sure, what's up?"), nil
	}}

	o := NewOrchestrator(WithReasoner(reasoner), WithEventHandler(recorder))
	defer o.Close()
	startSession(t, o)

	o.SendPrompt("tell me a long story")
	select {
	case <-reasoningStarted:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reasoning to start")
	}
	o.SendPrompt("wait, actually")

	waitForCondition(t, 2*time.Second, "second turn to complete", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})

	if got := recorder.count(events.KindTurnCancelled); got != 1 {
		t.Fatalf("expected the first turn to be cancelled, got %d cancellations", got)
	}
	if got := recorder.responses(); len(got) != 1 || got[0] != "Sure, what's up?" {
		t.Fatalf("expected only the second response, got %q", got)
	}

	var roles []string
	for _, turn := range o.Turns() {
		roles = append(roles, string(turn.Role)+":"+turn.Text)
	}
	want := "user:tell me a long story|user:wait, actually|assistant:Sure, what's up?"
	if got := strings.Join(roles, "|"); got != want {
		t.Fatalf("expected context %q, got %q", want, got)
	}
}

func TestStaleQueuedInputIsNotAnswered(t *testing.T) {
	release := make(chan struct{})
	recorder := &eventRecorder{}
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		if lastUserText(options) == "first" {
			<-release
		}
		return textResponse("reply to " + lastUserText(options)), nil
	}}

	o := NewOrchestrator(WithReasoner(reasoner), WithEventHandler(recorder))
	defer o.Close()
	startSession(t, o)

	o.SendPrompt("first")
	waitForCondition(t, 2*time.Second, "first turn to start reasoning", func() bool {
		return reasoner.callCount() == 1
	})
	o.SendPrompt("second")
	o.SendPrompt("third")
	close(release)

	waitForCondition(t, 2*time.Second, "latest input to be answered", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})

	if got := recorder.responses(); len(got) != 1 || got[0] != "reply to third" {
		t.Fatalf("expected only the newest input to be answered, got %q", got)
	}
	if got := recorder.count(events.KindTurnCancelled); got != 2 {
		t.Fatalf("expected two cancelled turns, got %d", got)
	}
}

func TestNewestFrameIsAttachedToUserTurn(t *testing.T) {
	feed := frames.NewFeed()
	recorder := &eventRecorder{}

	var (
		mu       sync.Mutex
		attached []llms.Image
	)
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		mu.Lock()
		attached = append(attached, lastTurn(options).Images...)
		mu.Unlock()
		return textResponse("That looks nicely browned."), nil
	}}

	o := NewOrchestrator(
		WithReasoner(reasoner),
		WithEventHandler(recorder),
		WithFrameSource(feed, frames.WithInterval(5*time.Millisecond)),
	)
	defer o.Close()
	o.sampler.SetActive(true)
	startSession(t, o)

	first := time.Now()
	second := first.Add(time.Second)
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	feed.PublishAt(img, first)
	waitForCondition(t, 2*time.Second, "first frame to be sampled", func() bool {
		frame, ok := o.sampler.Select()
		return ok && frame.CapturedAt.Equal(first)
	})
	feed.PublishAt(img, second)
	waitForCondition(t, 2*time.Second, "second frame to be sampled", func() bool {
		frame, ok := o.sampler.Select()
		return ok && frame.CapturedAt.Equal(second)
	})

	o.SendPrompt("is this done?")
	waitForCondition(t, 2*time.Second, "turn to complete", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if len(attached) != 1 {
		t.Fatalf("expected exactly one attached frame, got %d", len(attached))
	}
	if !attached[0].CapturedAt.Equal(second) {
		t.Fatalf("expected the newest frame to be attached, got one captured at %s", attached[0].CapturedAt)
	}
	if got := recorder.ofKind(events.KindFrameAttached); len(got) != 1 || !got[0].(events.FrameAttached).CapturedAt.Equal(second) {
		t.Fatalf("expected a frame attached event for the newest frame, got %v", got)
	}
}

func TestSpeechFallsBackToTextAfterRetries(t *testing.T) {
	synthesizer := &synthesizerStub{synthesize: func(int, texttospeech.TextToSpeechOptions) error {
		return texttospeech.ErrNoAudio
	}}
	recorder := &eventRecorder{}
	o := NewOrchestrator(
		WithReasoner(&reasonerStub{reply: func(context.Context, llms.ReasonOptions) (*llms.Response, error) {
			return textResponse("Let's get started."), nil
		}}),
		WithTextToSpeechClient(synthesizer),
		WithEventHandler(recorder),
	)
	defer o.Close()
	o.textToSpeech.retryDelay = time.Millisecond
	startSession(t, o)

	o.SendPrompt("hello")
	waitForCondition(t, 2*time.Second, "turn to complete", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})

	if got := synthesizer.callCount(); got != defaultSpeechAttempts {
		t.Fatalf("expected %d synthesis attempts, got %d", defaultSpeechAttempts, got)
	}
	unavailable := recorder.ofKind(events.KindAssistantSpeechUnavailable)
	if len(unavailable) != 1 {
		t.Fatalf("expected one text-only fallback, got %d", len(unavailable))
	}
	if event := unavailable[0].(events.AssistantSpeechUnavailable); event.Text != "Let's get started." || event.Attempts != defaultSpeechAttempts {
		t.Fatalf("unexpected fallback event %+v", event)
	}
	if got := recorder.count(events.KindAssistantSpeechFinal); got != 0 {
		t.Fatalf("expected no finished speech, got %d", got)
	}
}

func TestSpeechRetriesWhenNoAudioWasProduced(t *testing.T) {
	synthesizer := &synthesizerStub{synthesize: func(attempt int, options texttospeech.TextToSpeechOptions) error {
		if attempt == 1 {
			return texttospeech.ErrNoAudio
		}
		options.SpeechAudioCallback([]byte{1, 2, 3, 4})
		return nil
	}}
	recorder := &eventRecorder{}
	o := NewOrchestrator(
		WithReasoner(&reasonerStub{reply: func(context.Context, llms.ReasonOptions) (*llms.Response, error) {
			return textResponse("Let's get started."), nil
		}}),
		WithTextToSpeechClient(synthesizer),
		WithEventHandler(recorder),
	)
	defer o.Close()
	o.textToSpeech.retryDelay = time.Millisecond
	startSession(t, o)

	o.SendPrompt("hello")
	waitForCondition(t, 2*time.Second, "speech to finish", func() bool {
		return recorder.count(events.KindAssistantSpeechFinal) == 1
	})

	if got := synthesizer.callCount(); got != 2 {
		t.Fatalf("expected 2 synthesis attempts, got %d", got)
	}
	if got := recorder.count(events.KindAssistantSpeechFrame); got != 1 {
		t.Fatalf("expected one speech frame, got %d", got)
	}
	if got := recorder.count(events.KindAssistantSpeechUnavailable); got != 0 {
		t.Fatalf("expected no fallback, got %d", got)
	}
}

func TestSpeechToTextReconnectsAfterTransientDrop(t *testing.T) {
	transcriber := &transcriberStub{}
	recorder := &eventRecorder{}
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		return textResponse("I heard " + lastUserText(options)), nil
	}}
	o := NewOrchestrator(
		WithReasoner(reasoner),
		WithSpeechToTextClient(transcriber),
		WithEventHandler(recorder),
	)
	defer o.Close()
	o.speechToText.reconnectDelay = time.Millisecond
	startSession(t, o)

	if got := transcriber.callCount(); got != 1 {
		t.Fatalf("expected one transcription stream, got %d", got)
	}

	transcriber.latest().ErrorCallback(fmt.Errorf("%w: connection reset", speechtotext.ErrTransient))
	waitForCondition(t, 2*time.Second, "stream to reconnect", func() bool {
		return transcriber.callCount() == 2
	})

	transcriber.latest().TranscriptionCallback("add more salt")
	waitForCondition(t, 2*time.Second, "transcript to be answered", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})

	if got := recorder.responses(); len(got) != 1 || got[0] != "I heard add more salt" {
		t.Fatalf("unexpected responses %q", got)
	}
	if got := recorder.count(events.KindUserTranscriptFinal); got != 1 {
		t.Fatalf("expected one final transcript event, got %d", got)
	}
}

func TestSpeechToTextRetriesInitialConnection(t *testing.T) {
	transcriber := &transcriberStub{failures: 2}
	o := NewOrchestrator(
		WithReasoner(&reasonerStub{}),
		WithSpeechToTextClient(transcriber),
	)
	defer o.Close()
	o.speechToText.reconnectDelay = time.Millisecond
	startSession(t, o)

	if got := transcriber.callCount(); got != 3 {
		t.Fatalf("expected two failed attempts and one success, got %d attempts", got)
	}
}

func TestSelectingSuggestedRecipeStartsIt(t *testing.T) {
	store := chefStore(t)
	publisher := &publisherStub{}
	recorder := &eventRecorder{}
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		switch {
		case offers(options, personas.ToolUpdateStep):
			return textResponse("Great pick. Start by warming the oil."), nil
		case lastTurn(options).Role == llms.RoleUser:
			return toolCallResponse(personas.ToolSuggestDishes, shakshukaSuggestion), nil
		default:
			return textResponse("How about shakshuka?"), nil
		}
	}}

	o := NewOrchestrator(
		WithReasoner(reasoner),
		WithProfileStore(store, testUserID),
		WithPublisher(publisher),
		WithEventHandler(recorder),
	)
	defer o.Close()
	startSession(t, o)

	o.SendPrompt("what can I make with eggs?")
	waitForCondition(t, 2*time.Second, "dish suggestions", func() bool {
		return len(o.ChannelState().Suggestions) == 1 && len(recorder.responses()) == 1
	})
	suggestion := o.ChannelState().Suggestions[0]
	if suggestion.Recipe == nil || len(suggestion.Recipe.Steps) != 3 {
		t.Fatalf("expected the suggestion to carry the recipe, got %+v", suggestion.Recipe)
	}

	selection := fmt.Sprintf(`{"topic":"dish_selection","type":"select_dish","dish_id":%q}`, suggestion.ID)
	if err := o.HandleMessage([]byte(selection)); err != nil {
		t.Fatalf("failed to handle selection: %v", err)
	}
	waitForCondition(t, 2*time.Second, "recipe guide to respond", func() bool {
		return len(recorder.responses()) == 2
	})
	waitForCondition(t, time.Second, "recipe start to be published", func() bool {
		return publisher.count(channel.KindRecipeStart) == 1
	})

	if persona := o.Persona(); persona != personas.RecipeGuide {
		t.Fatalf("expected recipe guide, got %s", persona)
	}
	if got := reasoner.callCount(); got != 3 {
		t.Fatalf("expected two chef calls and one guide call, got %d", got)
	}
	if got := lastUserText(reasoner.call(2)); got != "I'd like to make Shakshuka." {
		t.Fatalf("expected the selection in the context, got %q", got)
	}
	if got := recorder.count(events.KindUserDishSelected); got != 1 {
		t.Fatalf("expected one dish selection event, got %d", got)
	}
}

func TestSelectingDishWhileChefIsRespondingHandsOffOnce(t *testing.T) {
	store := chefStore(t)
	publisher := &publisherStub{}
	recorder := &eventRecorder{}

	var inFlight, maxInFlight atomic.Int32
	reasoner := &reasonerStub{reply: func(ctx context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			seen := maxInFlight.Load()
			if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
				break
			}
		}

		switch {
		case offers(options, personas.ToolUpdateStep):
			return textResponse("guide intro"), nil
		case lastUserText(options) == "tell me more about the first one":
			<-ctx.Done()
			return nil, ctx.Err()
		case lastTurn(options).Role == llms.RoleUser:
			return toolCallResponse(personas.ToolSuggestDishes, shakshukaSuggestion), nil
		default:
			return textResponse("How about shakshuka?"), nil
		}
	}}

	o := NewOrchestrator(
		WithReasoner(reasoner),
		WithProfileStore(store, testUserID),
		WithPublisher(publisher),
		WithEventHandler(recorder),
	)
	defer o.Close()
	startSession(t, o)

	o.SendPrompt("what can I make with eggs?")
	waitForCondition(t, 2*time.Second, "dish suggestions", func() bool {
		return len(o.ChannelState().Suggestions) == 1 && len(recorder.responses()) == 1
	})

	o.SendPrompt("tell me more about the first one")
	waitForCondition(t, 2*time.Second, "chef to start responding", func() bool {
		return reasoner.callCount() == 3 && inFlight.Load() == 1
	})

	selection := fmt.Sprintf(`{"topic":"dish_selection","type":"select_dish","dish_id":%q}`, o.ChannelState().Suggestions[0].ID)
	if err := o.HandleMessage([]byte(selection)); err != nil {
		t.Fatalf("failed to handle selection: %v", err)
	}
	waitForCondition(t, 2*time.Second, "recipe guide to respond", func() bool {
		return len(recorder.responses()) == 2 && publisher.count(channel.KindRecipeStart) == 1
	})

	if got := maxInFlight.Load(); got != 1 {
		t.Fatalf("expected one reasoning call in flight at a time, saw %d", got)
	}
	if got := recorder.count(events.KindTurnCancelled); got != 1 {
		t.Fatalf("expected the chef's response to be cancelled once, got %d", got)
	}
	if got := strings.Join(recorder.responses(), "|"); got != "How about shakshuka?|guide intro" {
		t.Fatalf("expected exactly one guide reply after the chef, got %q", got)
	}
	if got := publisher.count(channel.KindRecipeStart); got != 1 {
		t.Fatalf("expected recipe_start once, got %d", got)
	}
	if persona := o.Persona(); persona != personas.RecipeGuide {
		t.Fatalf("expected recipe guide, got %s", persona)
	}
}

const shakshukaSuggestion = `{"options":[{"title":"Shakshuka","recipe":{"title":"Shakshuka","servings":2,"prep_time_minutes":25,` +
	`"ingredients":["4 eggs","1 can tomatoes","1 onion"],"steps":["Soften the onion","Add tomatoes","Poach the eggs"]}}]}`

func TestSelectingDishWithoutRecipeAsksTheChef(t *testing.T) {
	recorder := &eventRecorder{}
	reasoner := &reasonerStub{reply: func(_ context.Context, options llms.ReasonOptions) (*llms.Response, error) {
		return textResponse("Ramen it is. How many servings?"), nil
	}}
	o := NewOrchestrator(
		WithReasoner(reasoner),
		WithProfileStore(chefStore(t), testUserID),
		WithEventHandler(recorder),
	)
	defer o.Close()
	startSession(t, o)

	if err := o.broadcaster.SuggestDishes([]recipes.DishOption{{ID: "dish-2", Title: "Ramen"}}); err != nil {
		t.Fatalf("failed to suggest dishes: %v", err)
	}
	o.SelectDish("dish-2", "")

	waitForCondition(t, 2*time.Second, "chef to respond", func() bool {
		return recorder.count(events.KindTurnCompleted) == 1
	})
	if persona := o.Persona(); persona != personas.Chef {
		t.Fatalf("expected chef to stay active, got %s", persona)
	}
	if got := lastUserText(reasoner.call(0)); got != "I'd like to make Ramen." {
		t.Fatalf("expected the selection as a user turn, got %q", got)
	}
}

func TestUnknownInboundMessagesAreIgnored(t *testing.T) {
	o := NewOrchestrator(WithReasoner(&reasonerStub{}))
	defer o.Close()

	if err := o.HandleMessage([]byte(`{"topic":"dish_selection","type":"dish_liked","dish_id":"x"}`)); err != nil {
		t.Fatalf("expected unknown kind to be ignored, got %v", err)
	}
	if err := o.HandleMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

func startSession(t *testing.T, o *Orchestrator) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := o.Orchestrate(ctx); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
}

func chefStore(t *testing.T) *profiles.MemoryStore {
	t.Helper()

	store := profiles.NewMemoryStore()
	err := store.SaveProfile(context.Background(), testUserID, profiles.Profile{
		FullName:           "Ana Horvat",
		FirstName:          "Ana",
		CulinaryBackground: "cooks most weeknights",
		ComfortLevel:       "intermediate",
		Goals:              "learn Italian classics",
	})
	if err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
	return store
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

const cacioEPepeArgs = `{
	"title": "Cacio e pepe",
	"servings": 2,
	"prep_time_minutes": 20,
	"ingredients": ["200 g spaghetti", "80 g pecorino", "black pepper"],
	"steps": ["Boil the pasta", "Toast the pepper", "Toss with cheese and pasta water"]
}`

type reasonerStub struct {
	mu    sync.Mutex
	calls []llms.ReasonOptions
	reply func(ctx context.Context, options llms.ReasonOptions) (*llms.Response, error)
}

func (s *reasonerStub) Reason(ctx context.Context, opts ...llms.ReasonOption) (*llms.Response, error) {
	options := llms.NewReasonOptions(opts...)

	s.mu.Lock()
	s.calls = append(s.calls, options)
	reply := s.reply
	s.mu.Unlock()

	if reply == nil {
		return textResponse("ok"), nil
	}
	return reply(ctx, options)
}

func (s *reasonerStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *reasonerStub) call(i int) llms.ReasonOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func textResponse(text string) *llms.Response {
	return &llms.Response{Content: text, StopReason: "end_turn"}
}

func toolCallResponse(name, args string) *llms.Response {
	return &llms.Response{
		ToolCalls:  []llms.ToolCall{{ID: "call-" + name, Name: name, Arguments: json.RawMessage(args)}},
		StopReason: "tool_use",
	}
}

func offers(options llms.ReasonOptions, tool string) bool {
	for _, definition := range options.Tools {
		if definition.Name == tool {
			return true
		}
	}
	return false
}

func lastTurn(options llms.ReasonOptions) llms.Turn {
	if len(options.Turns) == 0 {
		return llms.Turn{}
	}
	return options.Turns[len(options.Turns)-1]
}

func lastUserText(options llms.ReasonOptions) string {
	for i := len(options.Turns) - 1; i >= 0; i-- {
		if options.Turns[i].Role == llms.RoleUser {
			return options.Turns[i].Text
		}
	}
	return ""
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) HandleEvent(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matching []events.Event
	for _, event := range r.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func (r *eventRecorder) count(kind events.Kind) int {
	return len(r.ofKind(kind))
}

func (r *eventRecorder) responses() []string {
	var texts []string
	for _, event := range r.ofKind(events.KindAssistantResponseFinal) {
		texts = append(texts, event.(events.AssistantResponseFinal).Text)
	}
	return texts
}

type publishedMessage struct {
	Topic channel.Topic `json:"topic"`
	Type  channel.Kind  `json:"type"`
	raw   []byte
}

type publisherStub struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *publisherStub) Publish(_ context.Context, _ channel.Topic, payload []byte) error {
	var msg publishedMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	msg.raw = append([]byte(nil), payload...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *publisherStub) ofKind(kind channel.Kind) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matching []publishedMessage
	for _, msg := range p.messages {
		if msg.Type == kind {
			matching = append(matching, msg)
		}
	}
	return matching
}

func (p *publisherStub) count(kind channel.Kind) int {
	return len(p.ofKind(kind))
}

type synthesizerStub struct {
	mu         sync.Mutex
	calls      int
	synthesize func(attempt int, options texttospeech.TextToSpeechOptions) error
}

func (s *synthesizerStub) Synthesize(_ context.Context, _ string, opts ...texttospeech.TextToSpeechOption) error {
	s.mu.Lock()
	s.calls++
	attempt := s.calls
	s.mu.Unlock()

	return s.synthesize(attempt, texttospeech.NewOptions(opts...))
}

func (s *synthesizerStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type transcriberStub struct {
	mu       sync.Mutex
	failures int
	streams  []speechtotext.TranscriptionOptions
	stopped  bool
}

func (s *transcriberStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, options)
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("%w: handshake failed", speechtotext.ErrTransient)
	}
	return nil
}

func (s *transcriberStub) SendAudio([]byte) error { return nil }

func (s *transcriberStub) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *transcriberStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *transcriberStub) latest() speechtotext.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[len(s.streams)-1]
}
