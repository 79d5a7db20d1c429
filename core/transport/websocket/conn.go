// Package websocket carries one cooking session over a single websocket.
//
// Binary frames are tagged by their first byte: TagAudio frames hold PCM16
// audio in both directions and TagVideo frames hold a JPEG camera frame sent
// by the client. Text frames are event channel messages.
package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-chef/core/channel"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/frames"
)

const (
	TagAudio byte = 0x01
	TagVideo byte = 0x02
)

const (
	defaultOutboundQueueSize = 256
	defaultWriteTimeout      = 5 * time.Second
	defaultPingInterval      = 20 * time.Second
	// A client that answers neither pings nor sends anything for this long
	// is gone.
	defaultPongWait        = 45 * time.Second
	defaultMaxMessageBytes = 4 << 20
)

var (
	ErrConnClosed   = errors.New("connection closed")
	errBackpressure = errors.New("outbound queue is full")
)

// SessionInput receives what the client sends.
type SessionInput interface {
	SendAudio(audio []byte) error
	HandleMessage(payload []byte) error
}

type wsConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type outboundFrame struct {
	messageType int
	data        []byte
}

// Conn is one client connection. It publishes event channel messages and
// speech audio to the client and feeds received camera frames into Feed.
type Conn struct {
	ws   wsConn
	feed *frames.Feed

	writeTimeout time.Duration
	pingInterval time.Duration
	pongWait     time.Duration

	outbound chan outboundFrame
	closed   chan struct{}
	once     sync.Once
}

func newConn(ws wsConn) *Conn {
	return &Conn{
		ws:           ws,
		feed:         frames.NewFeed(),
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		pongWait:     defaultPongWait,
		outbound:     make(chan outboundFrame, defaultOutboundQueueSize),
		closed:       make(chan struct{}),
	}
}

// Feed is the source of the client's camera frames.
func (c *Conn) Feed() *frames.Feed {
	return c.feed
}

// Publish queues an event channel message. It blocks while the outbound queue
// is full.
func (c *Conn) Publish(ctx context.Context, _ channel.Topic, payload []byte) error {
	frame := outboundFrame{messageType: gorilla.TextMessage, data: payload}
	select {
	case <-c.closed:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.outbound <- frame:
		return nil
	}
}

// HandleEvent forwards synthesized speech to the client. Speech is dropped
// rather than queued behind a slow client.
func (c *Conn) HandleEvent(event events.Event) {
	speech, ok := event.(events.AssistantSpeechFrame)
	if !ok {
		return
	}
	if err := c.sendBinary(TagAudio, speech.Audio); err != nil && !errors.Is(err, ErrConnClosed) {
		logger.Warn("dropping speech audio", "bytes", len(speech.Audio), "error", err)
	}
}

func (c *Conn) sendBinary(tag byte, payload []byte) error {
	data := make([]byte, 0, len(payload)+1)
	data = append(data, tag)
	data = append(data, payload...)

	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.outbound <- outboundFrame{messageType: gorilla.BinaryMessage, data: data}:
		return nil
	default:
		return errBackpressure
	}
}

// writeLoop is the only goroutine writing to the socket.
func (c *Conn) writeLoop(ctx context.Context) error {
	ping := time.NewTicker(c.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(c.writeTimeout)
			_ = c.ws.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), deadline)
			return nil
		case <-ping.C:
			if err := c.ws.WriteControl(gorilla.PingMessage, []byte("ping"), time.Now().Add(c.writeTimeout)); err != nil {
				return fmt.Errorf("failed to ping client: %w", err)
			}
		case frame := <-c.outbound:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return err
			}
			if err := c.ws.WriteMessage(frame.messageType, frame.data); err != nil {
				return fmt.Errorf("failed to write to client: %w", err)
			}
		}
	}
}

// readLoop routes client frames to input until the socket fails. Any read
// failure ends the session, including the read deadline passing because the
// client stopped answering pings.
func (c *Conn) readLoop(ctx context.Context, input SessionInput) error {
	extendDeadline := func() error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	if err := extendDeadline(); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	c.ws.SetPongHandler(func(string) error { return extendDeadline() })

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read from client: %w", err)
		}
		if err := extendDeadline(); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		if err := c.handleFrame(input, messageType, data); err != nil {
			logger.Warn("dropping client frame", "error", err)
		}
	}
}

func (c *Conn) handleFrame(input SessionInput, messageType int, data []byte) error {
	switch messageType {
	case gorilla.TextMessage:
		return input.HandleMessage(data)
	case gorilla.BinaryMessage:
		if len(data) == 0 {
			return fmt.Errorf("empty binary frame")
		}
		switch data[0] {
		case TagAudio:
			return input.SendAudio(data[1:])
		case TagVideo:
			img, err := decodeVideoFrame(data[1:])
			if err != nil {
				return err
			}
			c.feed.Publish(img)
			return nil
		default:
			return fmt.Errorf("unknown binary frame tag 0x%02x", data[0])
		}
	default:
		return nil
	}
}

func decodeVideoFrame(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode video frame: %w", err)
	}
	return img, nil
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}
