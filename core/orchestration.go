package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/channel"
	"github.com/koscakluka/ema-chef/core/contextwindow"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/frames"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/personas"
	"github.com/koscakluka/ema-chef/core/profiles"
	"github.com/koscakluka/ema-chef/core/recipelinks"
	"github.com/koscakluka/ema-chef/core/recipes"
	"github.com/koscakluka/ema-chef/core/speechtotext"
	"github.com/koscakluka/ema-chef/core/tools"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const channelFlushTimeout = 2 * time.Second

var (
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrClosed         = errors.New("orchestrator closed")
	ErrNoReasoner     = errors.New("no reasoner configured")
)

// Orchestrator drives one conversation session. Every session owns its own
// context window, persona machine, frame sampler and event channel.
type Orchestrator struct {
	reasoner   llms.Reasoner
	summarizer llms.Summarizer
	store      profiles.Store
	userID     string
	links      *recipelinks.Resolver
	sampler    *frames.Sampler
	publisher  channel.Publisher
	emitEvent  eventEmitter

	contextOptions []contextwindow.Option
	maxToolRounds  int
	inputEncoding  audio.EncodingInfo

	// speechToText is the STT facade that keeps the stream connected.
	speechToText *speechToText
	// textToSpeech is the TTS facade that retries and degrades to text.
	textToSpeech *textToSpeech

	context     *contextwindow.Manager
	machine     *personas.Machine
	toolsets    map[personas.Persona]*tools.Registry
	emitter     *channel.Emitter
	broadcaster *channel.Broadcaster
	runtime     *sessionRuntime

	groceryMu sync.Mutex
	groceries recipes.GroceryList

	started     atomic.Bool
	closeOnce   sync.Once
	baseContext context.Context
	cancel      context.CancelFunc
	workers     *errgroup.Group
	background  conc.WaitGroup
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		emitEvent:     noopEventEmitter,
		maxToolRounds: defaultMaxToolRounds,
		inputEncoding: audio.GetDefaultEncodingInfo(),
		speechToText:  newSpeechToText(nil),
		textToSpeech:  newTextToSpeech(nil),
		baseContext:   context.Background(),
		runtime:       newSessionRuntime(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.speechToText.emitEvent = o.emitEvent
	o.textToSpeech.emitEvent = o.emitEvent
	o.emitter = channel.NewEmitter(o.publisher)
	o.broadcaster = channel.NewBroadcaster(o.emitter)

	contextOptions := append([]contextwindow.Option{
		contextwindow.WithSummarizer(o.summarizer),
		contextwindow.WithCompactionHook(o.onCompaction),
	}, o.contextOptions...)
	o.context = contextwindow.New(contextOptions...)

	return o
}

// Orchestrate loads the user's profile, starts listening and starts the
// session loop. It returns once the session is running; cancelling ctx or
// calling Close ends it.
func (o *Orchestrator) Orchestrate(ctx context.Context) error {
	if o.runtime.isClosed() {
		return ErrClosed
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if o.reasoner == nil {
		return ErrNoReasoner
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	o.baseContext, o.cancel = sessionCtx, cancel

	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()
	span.SetAttributes(attribute.String("session.user_id", o.userID))

	profile := o.loadProfile(ctx)
	o.groceries = o.loadGroceryList(ctx)
	o.machine = personas.NewMachine(profile, personas.WithTimerHandler(o.onTimerFinished))

	toolsets, err := o.toolCatalogue()
	if err != nil {
		recordError(span, err)
		cancel()
		return fmt.Errorf("failed to build tool catalogue: %w", err)
	}
	o.toolsets = toolsets

	workers, workersCtx := errgroup.WithContext(sessionCtx)
	o.workers = workers
	workers.Go(func() error {
		return panicSafeNamedWorker("session loop", func(ctx context.Context) error {
			return o.runtime.run(ctx, o.processInput)
		})(workersCtx)
	})
	workers.Go(func() error {
		<-workersCtx.Done()
		o.runtime.close()
		return nil
	})

	if o.sampler != nil {
		o.sampler.Start(sessionCtx)
	}

	if err := o.speechToText.start(sessionCtx, o.inputEncoding, speechToTextCallbacks{
		onTranscript: func(transcript string) { o.enqueue(turnInput{kind: inputUserTurn, text: transcript}) },
	}); err != nil {
		recordError(span, err)
		logger.Error("speech-to-text unavailable, continuing with text input only", "error", err)
	}

	if len(o.groceries) > 0 {
		if err := o.broadcaster.GroceryList(o.groceries, false); err != nil {
			logger.Warn("failed to publish grocery list", "error", err)
		}
	}

	span.SetAttributes(attribute.String("session.persona", string(o.machine.Active())))
	logger.Info("session started", "user_id", o.userID, "persona", o.machine.Active())
	return nil
}

// Close ends the session, cancelling the turn in flight, running timers and
// background work.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.close()
		if o.cancel != nil {
			o.cancel()
		}

		if err := o.speechToText.close(); err != nil {
			logger.Warn("failed to close speech-to-text", "error", err)
		}
		if o.workers != nil {
			if err := o.workers.Wait(); err != nil {
				logger.Error("session worker failed", "error", err)
			}
		}
		if o.sampler != nil {
			o.sampler.Stop()
		}
		if o.machine != nil {
			o.machine.Close()
		}
		o.background.Wait()
		o.context.Close()

		flushCtx, cancel := context.WithTimeout(context.Background(), channelFlushTimeout)
		if err := o.emitter.Flush(flushCtx); err != nil && !errors.Is(err, channel.ErrClosed) {
			logger.Warn("failed to flush event channel", "error", err)
		}
		cancel()
		o.emitter.Close()
	})
}

// SendAudio forwards user audio to speech-to-text. Audio sent while the stream
// reconnects is dropped.
func (o *Orchestrator) SendAudio(audio []byte) error {
	err := o.speechToText.SendAudio(audio)
	if errors.Is(err, speechtotext.ErrTransient) {
		return nil
	}
	return err
}

// SendPrompt handles text as if the user had said it.
func (o *Orchestrator) SendPrompt(prompt string) {
	o.enqueue(turnInput{kind: inputUserTurn, text: prompt})
}

// SelectDish handles a dish picked in the UI. It cancels the response in
// flight.
func (o *Orchestrator) SelectDish(dishID, title string) {
	o.emitEvent(events.NewUserDishSelected(dishID, title))
	o.enqueue(turnInput{kind: inputDishSelection, dishID: dishID, text: title})
}

// HandleMessage decodes an event channel message sent by the UI. Unknown
// kinds on known topics are ignored.
func (o *Orchestrator) HandleMessage(payload []byte) error {
	msg, err := channel.Decode(payload)
	if errors.Is(err, channel.ErrUnknownKind) {
		return nil
	}
	if err != nil {
		return err
	}

	switch msg := msg.(type) {
	case channel.SelectDishMessage:
		o.SelectDish(msg.DishID, msg.Title)
	default:
		logger.Debug("ignoring inbound message", "topic", msg.Topic(), "kind", msg.Kind())
	}
	return nil
}

// Persona returns the active persona, or Onboarding before the session
// started.
func (o *Orchestrator) Persona() personas.Persona {
	if o.machine == nil {
		return personas.Onboarding
	}
	return o.machine.Active()
}

// Turns returns a snapshot of the conversation context.
func (o *Orchestrator) Turns() []llms.Turn {
	return o.context.Snapshot()
}

// ChannelState returns the orchestrator side view of every event channel
// topic.
func (o *Orchestrator) ChannelState() channel.State {
	return o.broadcaster.State()
}

func (o *Orchestrator) enqueue(input turnInput) {
	if !o.runtime.enqueue(input) {
		logger.Debug("session closed, dropping input", "kind", input.kind)
	}
}

func (o *Orchestrator) loadProfile(ctx context.Context) *profiles.Profile {
	if o.store == nil || o.userID == anonymousUserID {
		return nil
	}

	profile, err := o.store.LoadProfile(ctx, o.userID)
	if errors.Is(err, profiles.ErrNotFound) {
		return nil
	} else if err != nil {
		logger.Warn("failed to load profile, starting onboarding", "user_id", o.userID, "error", err)
		return nil
	}
	return &profile
}

func (o *Orchestrator) loadGroceryList(ctx context.Context) recipes.GroceryList {
	if o.store == nil || o.userID == anonymousUserID {
		return nil
	}

	list, err := o.store.LoadGroceryList(ctx, o.userID)
	if err != nil && !errors.Is(err, profiles.ErrNotFound) {
		logger.Warn("failed to load grocery list", "user_id", o.userID, "error", err)
	}
	return list
}

func (o *Orchestrator) onCompaction(compaction contextwindow.Compaction) {
	o.emitEvent(events.NewContextCompacted(compaction.From, compaction.To, compaction.Applied))
}
