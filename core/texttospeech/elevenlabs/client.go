// Package elevenlabs synthesizes speech through the ElevenLabs streaming
// HTTP endpoint.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-chef/core/audio"
	"github.com/koscakluka/ema-chef/core/texttospeech"
)

const (
	scopeName = "github.com/koscakluka/ema-chef/core/texttospeech/elevenlabs"

	defaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_flash_v2_5"

	readChunkSize = 4096
)

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type Client struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string
	client  *http.Client
}

type Option func(*Client)

func WithVoiceID(voiceID string) Option {
	return func(c *Client) {
		if voiceID != "" {
			c.voiceID = voiceID
		}
	}
}

func WithModelID(modelID string) Option {
	return func(c *Client) {
		if modelID != "" {
			c.modelID = modelID
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBaseURL,
		voiceID: DefaultVoiceID,
		modelID: DefaultModelID,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// outputFormat maps an encoding onto the output_format query value.
func outputFormat(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 16000, 22050, 24000, 44100:
			return fmt.Sprintf("pcm_%d", encoding.SampleRate), nil
		}
	case audio.EncodingMulaw:
		if encoding.SampleRate == 8000 {
			return "ulaw_8000", nil
		}
	}
	return "", fmt.Errorf("unsupported encoding %s", encoding)
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.TextToSpeechOption) error {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("tts.voice", c.voiceID), attribute.Int("tts.characters", len(text)))

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	options := texttospeech.NewOptions(opts...)
	format, err := outputFormat(options.EncodingInfo)
	if err != nil {
		return fail(err)
	}

	body, err := json.Marshal(speechRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return fail(fmt.Errorf("error marshalling JSON: %w", err))
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?%s", c.baseURL, url.PathEscape(c.voiceID),
		url.Values{"output_format": {format}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fail(fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Warn("speech request failed", "status", resp.Status, "body", string(errorBody))
		return fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	received := 0
	buf := make([]byte, readChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			received += n
			options.SpeechAudioCallback(bytes.Clone(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fail(fmt.Errorf("failed to read speech: %w", err))
		}
	}

	span.SetAttributes(attribute.Int("tts.audio_bytes", received))
	if received == 0 {
		return fail(texttospeech.ErrNoAudio)
	}
	options.SpeechMarkCallback(text)
	return nil
}
