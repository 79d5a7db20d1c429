package texttospeech

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-chef/core/audio"
)

// ErrNoAudio is returned when a synthesis finished without producing any
// audio. It is usually transient and worth a retry.
var ErrNoAudio = errors.New("synthesis produced no audio")

// Synthesizer turns a complete reply into speech. Audio is delivered through
// the SpeechAudioCallback as it arrives; Synthesize returns once all audio for
// text was delivered or ctx was cancelled.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...TextToSpeechOption) error
}

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called when the TTS client produces audio
	SpeechAudioCallback func(audio []byte)
	// SpeechMarkCallback is called once the speech for the given text was
	// fully produced.
	SpeechMarkCallback func(string)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.SpeechAudioCallback = callback
	}
}

func WithSpeechMarkCallback(callback func(string)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		o.SpeechMarkCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// NewOptions applies opts on top of no-op callbacks and the default
// encoding.
func NewOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechMarkCallback:  func(string) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
