package deepgram

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/koscakluka/ema-chef/core/audio"
)

const (
	listenModel    = "nova-3"
	listenLanguage = "en-US"
	// Silence after which a finished phrase is finalized.
	endpointingMs = "300"
	// Gap after which an utterance is closed even without a final result.
	utteranceEndMs = "1000"
)

// listenQuery builds the query of a live listen request for mono audio in
// encoding. Companded formats are only accepted at 8kHz.
func listenQuery(encoding audio.EncodingInfo, options websocketConfig) (url.Values, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return nil, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	query := url.Values{}
	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return nil, fmt.Errorf("%s needs 8000Hz, got %d", encoding.Format.Name(), encoding.SampleRate)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
	query.Set("encoding", encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	query.Set("channels", "1")
	query.Set("model", listenModel)
	query.Set("language", listenLanguage)
	query.Set("smart_format", "true")
	query.Set("endpointing", endpointingMs)

	if options.shouldEnhanceSpeechEndingDetection {
		query.Set("utterance_end_ms", utteranceEndMs)
		query.Set("interim_results", "true")
	} else if options.shouldRequestInterimResults {
		query.Set("interim_results", "true")
	}
	if options.shouldDetectSpeechStart || options.shouldEnhanceSpeechEndingDetection {
		query.Set("vad_events", "true")
	}
	return query, nil
}
