package local

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	orchestration "github.com/koscakluka/ema-chef/core"
	"github.com/koscakluka/ema-chef/core/channel"
	"github.com/koscakluka/ema-chef/core/events"
)

type player interface {
	Play(audio []byte) error
	ClearPlayback()
}

// Console plays assistant speech and prints the conversation. Queued speech
// is dropped as soon as the user talks over it.
type Console struct {
	player player

	mu  sync.Mutex
	out io.Writer
}

func NewConsole(player player, out io.Writer) *Console {
	return &Console{player: player, out: out}
}

func (c *Console) HandleEvent(event events.Event) {
	switch event := event.(type) {
	case events.AssistantSpeechFrame:
		if err := c.player.Play(event.Audio); err != nil {
			logger.Warn("failed to play speech", "error", err)
		}
	case events.UserSpeechStarted, events.TurnCancelled:
		c.player.ClearPlayback()
	case events.UserTranscriptFinal:
		c.printf("you: %s\n", event.Transcript)
	case events.AssistantResponseFinal:
		c.printf("%s: %s\n", event.Persona, event.Text)
	case events.AssistantSpeechUnavailable:
		c.printf("(speech unavailable, %d attempts)\n", event.Attempts)
	case events.PersonaChanged:
		c.printf("(%s hands over to %s)\n", event.From, event.To)
	case events.ToolCallFailed:
		c.printf("(%s could not %s: %s)\n", event.Persona, event.Name, event.Error)
	}
}

// Publish prints event channel messages in place of a UI.
func (c *Console) Publish(_ context.Context, topic channel.Topic, payload []byte) error {
	c.printf("[%s] %s\n", topic, payload)
	return nil
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		logger.Debug("failed to print to console", "error", err)
	}
}

// Run holds one session on the local audio device until ctx is done or
// prompts is exhausted. Each line read from prompts is handled as if the user
// had said it; lines starting with "/pick " select a suggested dish by id.
func Run(ctx context.Context, device *Device, newSession orchestration.SessionFactory, userID string, prompts io.Reader, out io.Writer) error {
	console := NewConsole(device, out)
	o := newSession(userID,
		orchestration.WithPublisher(console),
		orchestration.WithEventHandler(console),
		orchestration.WithInputEncoding(device.EncodingInfo()),
		orchestration.WithOutputEncoding(device.EncodingInfo()),
	)
	defer o.Close()

	if err := o.Orchestrate(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if err := device.StartCapture(func(audio []byte) {
		if err := o.SendAudio(audio); err != nil {
			logger.Warn("failed to send microphone audio", "error", err)
		}
	}); err != nil {
		return err
	}
	defer func() {
		if err := device.StopCapture(); err != nil {
			logger.Warn("failed to stop capture", "error", err)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(prompts)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			handleLine(o, line)
		}
	}
}

type lineInput interface {
	SendPrompt(prompt string)
	SelectDish(dishID, title string)
}

func handleLine(o lineInput, line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case strings.HasPrefix(line, "/pick "):
		o.SelectDish(strings.TrimSpace(strings.TrimPrefix(line, "/pick ")), "")
	default:
		o.SendPrompt(line)
	}
}
