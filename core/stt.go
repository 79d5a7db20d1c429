package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/speechtotext"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc"
)

const (
	defaultReconnectDelay    = 250 * time.Millisecond
	defaultMaxReconnectDelay = 5 * time.Second
	defaultReconnectAttempts = 8
)

type speechToTextCallbacks struct {
	onTranscript func(transcript string)
}

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client speechtotext.Transcriber

	reconnectDelay    time.Duration
	reconnectAttempts uint64

	emitEvent eventEmitter

	mu           sync.Mutex
	ctx          context.Context
	encodingInfo audio.EncodingInfo
	callbacks    speechToTextCallbacks
	reconnecting atomic.Bool
	reconnects   conc.WaitGroup
}

func newSpeechToText(client speechtotext.Transcriber) *speechToText {
	return &speechToText{
		client:            client,
		reconnectDelay:    defaultReconnectDelay,
		reconnectAttempts: defaultReconnectAttempts,
		emitEvent:         noopEventEmitter,
	}
}

func (s *speechToText) set(client speechtotext.Transcriber) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

// start opens the transcription stream. A stream that drops later with a
// transient error is reopened in the background.
func (s *speechToText) start(ctx context.Context, encodingInfo audio.EncodingInfo, callbacks speechToTextCallbacks) error {
	if !s.isConfigured() {
		return nil
	}

	s.mu.Lock()
	s.ctx, s.encodingInfo, s.callbacks = ctx, encodingInfo, callbacks
	s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("failed to start transcribing: %w", err)
	}
	return nil
}

func (s *speechToText) connect(ctx context.Context) error {
	backoff := retry.NewExponential(s.reconnectDelay)
	backoff = retry.WithCappedDuration(defaultMaxReconnectDelay, backoff)
	backoff = retry.WithMaxRetries(s.reconnectAttempts, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.client.Transcribe(ctx, s.options()...)
		if errors.Is(err, speechtotext.ErrTransient) {
			logger.Warn("speech-to-text connection failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *speechToText) options() []speechtotext.TranscriptionOption {
	s.mu.Lock()
	defer s.mu.Unlock()

	return []speechtotext.TranscriptionOption{
		speechtotext.WithSpeechStartedCallback(s.invokeSpeechStarted),
		speechtotext.WithSpeechEndedCallback(s.invokeSpeechEnded),
		speechtotext.WithInterimTranscriptionCallback(s.invokeInterimTranscription),
		speechtotext.WithTranscriptionCallback(s.invokeTranscription),
		speechtotext.WithErrorCallback(s.onStreamError),
		speechtotext.WithEncodingInfo(s.encodingInfo),
	}
}

// onStreamError reconnects after a transient drop. Only one reconnect runs at
// a time.
func (s *speechToText) onStreamError(err error) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !errors.Is(err, speechtotext.ErrTransient) {
		logger.Error("speech-to-text stream failed", "error", err)
		return
	}
	if !s.reconnecting.CompareAndSwap(false, true) {
		return
	}

	logger.Warn("speech-to-text stream dropped, reconnecting", "error", err)
	s.reconnects.Go(func() {
		defer s.reconnecting.Store(false)
		if err := s.connect(ctx); err != nil && ctx.Err() == nil {
			logger.Error("failed to reconnect speech-to-text", "error", err)
		}
	})
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

func (s *speechToText) close() error {
	if !s.isConfigured() {
		return nil
	}

	err := s.client.StopStream()
	s.reconnects.Wait()
	if err != nil {
		return fmt.Errorf("failed to stop speech-to-text stream: %w", err)
	}
	return nil
}

func (s *speechToText) invokeSpeechStarted() {
	s.emitEvent(events.NewUserSpeechStarted())
}

func (s *speechToText) invokeSpeechEnded() {
	s.emitEvent(events.NewUserSpeechEnded())
}

func (s *speechToText) invokeInterimTranscription(transcript string) {
	s.emitEvent(events.NewUserTranscriptInterimUpdated(transcript))
}

func (s *speechToText) invokeTranscription(transcript string) {
	s.emitEvent(events.NewUserTranscriptInterimUpdated(""))
	s.emitEvent(events.NewUserTranscriptFinal(transcript))

	s.mu.Lock()
	onTranscript := s.callbacks.onTranscript
	s.mu.Unlock()
	if onTranscript != nil && transcript != "" {
		onTranscript(transcript)
	}
}
