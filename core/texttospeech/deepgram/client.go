package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-chef/core/texttospeech"
)

const defaultSpeakURL = "wss://api.deepgram.com/v1/speak"

type TextToSpeechClient struct {
	apiKey   string
	speakURL string
	voice    deepgramVoice
}

type ClientOption func(*TextToSpeechClient)

func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) {
		c.voice = voice
	}
}

// WithSpeakURL points the client at another speak endpoint.
func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.speakURL = speakURL
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	client := &TextToSpeechClient{apiKey: apiKey, speakURL: defaultSpeakURL, voice: defaultVoice}
	for _, opt := range opts {
		opt(client)
	}
	if _, ok := ParseVoice(string(client.voice)); !ok {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}

// Synthesize speaks text over a dedicated stream. The stream is flushed once
// and closed when the Flushed confirmation arrives.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.TextToSpeechOption) error {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("tts.voice", string(c.voice)), attribute.Int("tts.characters", len(text)))

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

	conn, err := c.connectWebsocket(ctx, options)
	if err != nil {
		return fail(fmt.Errorf("failed to open websocket: %w", err))
	}
	req := &streamingRequest{ws: conn}
	defer req.close()

	// Closing the socket unblocks the reader once ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = req.send(clearMsg)
		req.close()
	})
	defer stop()

	if err := req.send(speakMsg{Type: "Speak", Text: text}); err != nil {
		return fail(err)
	}
	if err := req.send(flushMsg); err != nil {
		return fail(err)
	}

	received := 0
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fail(fmt.Errorf("failed to read speech: %w", err))
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) > 0 {
				received += len(msg)
				options.SpeechAudioCallback(msg)
			}
		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}
			switch parsedMsg.Type {
			case "Flushed":
				span.SetAttributes(attribute.Int("tts.audio_bytes", received))
				_ = req.send(closeMsg)
				if received == 0 {
					return fail(texttospeech.ErrNoAudio)
				}
				options.SpeechMarkCallback(text)
				return nil
			case "Warning", "Error":
				logger.Warn("deepgram speak message", "type", parsedMsg.Type, "message", string(msg))
			}
		}
	}
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, options texttospeech.TextToSpeechOptions) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("encoding", options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

type streamingRequest struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

var errClosed = errors.New("websocket connection closed")

func (r *streamingRequest) send(msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	if err := r.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (r *streamingRequest) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	_ = r.ws.Close()
}
