package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/texttospeech"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
)

const defaultSpeechRetryDelay = 200 * time.Millisecond

type textToSpeech struct {
	client       texttospeech.Synthesizer
	attempts     int
	retryDelay   time.Duration
	encodingInfo audio.EncodingInfo

	emitEvent eventEmitter
}

func newTextToSpeech(client texttospeech.Synthesizer) *textToSpeech {
	return &textToSpeech{
		client:       client,
		attempts:     defaultSpeechAttempts,
		retryDelay:   defaultSpeechRetryDelay,
		encodingInfo: audio.GetDefaultEncodingInfo(),
		emitEvent:    noopEventEmitter,
	}
}

func (t *textToSpeech) set(client texttospeech.Synthesizer) {
	if t != nil {
		t.client = client
	}
}

func (t *textToSpeech) isConfigured() bool {
	return t != nil && t.client != nil
}

// speak synthesizes text, retrying when the provider produced no audio. When
// every attempt fails the reply is delivered as text only. Audio produced
// after ctx is cancelled is dropped.
func (t *textToSpeech) speak(ctx context.Context, text string) error {
	if !t.isConfigured() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "speak response")
	defer span.End()

	attempts := 0
	backoff := retry.WithMaxRetries(uint64(max(t.attempts-1, 0)), retry.NewConstant(t.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := t.client.Synthesize(ctx, text,
			texttospeech.WithEncodingInfo(t.encodingInfo),
			texttospeech.WithSpeechAudioCallback(func(audio []byte) {
				if ctx.Err() == nil {
					t.emitEvent(events.NewAssistantSpeechFrame(audio))
				}
			}),
		)
		if errors.Is(err, texttospeech.ErrNoAudio) {
			logger.Warn("speech synthesis produced no audio", "attempt", attempts)
			return retry.RetryableError(err)
		}
		return err
	})
	span.SetAttributes(attribute.Int("tts.attempts", attempts))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		err = fmt.Errorf("failed to synthesize speech after %d attempts: %w", attempts, err)
		recordError(span, err)
		logger.Error("speech unavailable, delivering text only", "error", err)
		t.emitEvent(events.NewAssistantSpeechUnavailable(text, attempts, err))
		return nil
	}

	t.emitEvent(events.NewAssistantSpeechFinal())
	return nil
}
