package orchestration

import (
	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/channel"
	"github.com/koscakluka/ema-chef/core/contextwindow"
	"github.com/koscakluka/ema-chef/core/frames"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/profiles"
	"github.com/koscakluka/ema-chef/core/recipelinks"
	"github.com/koscakluka/ema-chef/core/speechtotext"
	"github.com/koscakluka/ema-chef/core/texttospeech"
)

const (
	defaultSpeechAttempts = 3
	defaultMaxToolRounds  = 5
	// anonymousUserID is used when no user id was given; its profile is never
	// persisted.
	anonymousUserID = ""
)

type OrchestratorOption func(*Orchestrator)

// SessionFactory builds the orchestrator of a new session. Transports pass
// their own options for the event channel, speech output and camera frames.
type SessionFactory func(userID string, opts ...OrchestratorOption) *Orchestrator

// WithReasoner sets the model every persona reasons with.
func WithReasoner(reasoner llms.Reasoner) OrchestratorOption {
	return func(o *Orchestrator) { o.reasoner = reasoner }
}

// WithSummarizer sets the cheaper model used to compact older turns.
func WithSummarizer(summarizer llms.Summarizer) OrchestratorOption {
	return func(o *Orchestrator) { o.summarizer = summarizer }
}

func WithSpeechToTextClient(client speechtotext.Transcriber) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText.set(client) }
}

func WithTextToSpeechClient(client texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech.set(client) }
}

// WithSpeechAttempts bounds how many times a reply is synthesized before it
// is delivered as text only.
func WithSpeechAttempts(attempts int) OrchestratorOption {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.textToSpeech.attempts = attempts
		}
	}
}

// WithInputEncoding describes the audio passed to SendAudio.
func WithInputEncoding(encodingInfo audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) {
		if !encodingInfo.IsZero() {
			o.inputEncoding = encodingInfo
		}
	}
}

// WithOutputEncoding describes the speech audio the session should produce.
func WithOutputEncoding(encodingInfo audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) {
		if !encodingInfo.IsZero() {
			o.textToSpeech.encodingInfo = encodingInfo
		}
	}
}

// WithProfileStore loads and persists the profile and grocery list of userID.
func WithProfileStore(store profiles.Store, userID string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.store = store
		o.userID = userID
	}
}

// WithRecipeLinks resolves tutorial links for started recipes.
func WithRecipeLinks(resolver *recipelinks.Resolver) OrchestratorOption {
	return func(o *Orchestrator) { o.links = resolver }
}

// WithFrameSource enables camera support, sampling source while a persona has
// the camera requested.
func WithFrameSource(source frames.Source, opts ...frames.SamplerOption) OrchestratorOption {
	return func(o *Orchestrator) {
		if source == nil {
			o.sampler = nil
			return
		}
		o.sampler = frames.NewSampler(source, opts...)
	}
}

// WithPublisher delivers event channel messages to the UI.
func WithPublisher(publisher channel.Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = publisher }
}

func WithEventHandler(handler EventHandler) OrchestratorOption {
	return func(o *Orchestrator) { o.emitEvent = newEventEmitter(handler) }
}

// WithContextOptions configures the context window of the session.
func WithContextOptions(opts ...contextwindow.Option) OrchestratorOption {
	return func(o *Orchestrator) { o.contextOptions = append(o.contextOptions, opts...) }
}

// WithMaxToolRounds bounds how many reasoning calls one turn may make while
// the model keeps calling tools.
func WithMaxToolRounds(rounds int) OrchestratorOption {
	return func(o *Orchestrator) {
		if rounds > 0 {
			o.maxToolRounds = rounds
		}
	}
}
