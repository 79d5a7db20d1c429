// Package anthropic implements reasoning, summarization and tutorial search
// on top of the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-chef/core/llms"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultFastModel = "claude-haiku-4-5"
	searchMaxTokens  = 1024
	searchMaxUses    = 3
)

type Client struct {
	client    anthropic.Client
	model     string
	fastModel string
}

type Option func(*clientOptions)

type clientOptions struct {
	model          string
	fastModel      string
	requestOptions []option.RequestOption
}

func WithModel(model string) Option {
	return func(o *clientOptions) {
		o.model = model
	}
}

// WithFastModel sets the model used for summaries and web search.
func WithFastModel(model string) Option {
	return func(o *clientOptions) {
		o.fastModel = model
	}
}

// WithRequestOptions passes options through to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *clientOptions) {
		o.requestOptions = append(o.requestOptions, opts...)
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	options := clientOptions{model: DefaultModel, fastModel: DefaultFastModel}
	for _, opt := range opts {
		opt(&options)
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	requestOptions = append(requestOptions, options.requestOptions...)

	return &Client{
		client:    anthropic.NewClient(requestOptions...),
		model:     options.model,
		fastModel: options.fastModel,
	}
}

// Reason runs one Messages call. Tool calls are returned to the caller, never
// executed here.
func (c *Client) Reason(ctx context.Context, opts ...llms.ReasonOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "reason")
	defer span.End()

	options := llms.NewReasonOptions(opts...)
	tools, err := toTools(options.Tools)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(options.MaxTokens),
		Messages:  toMessages(options.Turns),
		Tools:     tools,
	}
	if options.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.Instructions}}
	}
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.turns", len(options.Turns)),
		attribute.Int("request.tools", len(tools)),
	)

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		err = fmt.Errorf("failed to reason: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	response := &llms.Response{StopReason: string(message.StopReason)}
	var text []string
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text = append(text, variant.Text)
		case anthropic.ToolUseBlock:
			response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: append([]byte(nil), variant.Input...),
			})
		}
	}
	response.Content = strings.Join(text, "")
	span.SetAttributes(
		attribute.Int("response.tool_calls", len(response.ToolCalls)),
		attribute.String("response.stop_reason", response.StopReason),
	)
	return response, nil
}

// Summarize condenses turns with the fast model.
func (c *Client) Summarize(ctx context.Context, turns []llms.Turn) (string, error) {
	ctx, span := tracer.Start(ctx, "summarize")
	defer span.End()

	prompt := llms.SummaryPrompt(turns)
	if prompt == "" {
		return "", nil
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.fastModel),
		MaxTokens: llms.SummaryMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		err = fmt.Errorf("failed to summarize: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return strings.TrimSpace(textOf(message)), nil
}

func textOf(message *anthropic.Message) string {
	var text []string
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text = append(text, variant.Text)
		}
	}
	return strings.Join(text, "\n")
}
