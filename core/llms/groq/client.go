// Package groq talks to OpenAI compatible chat completion endpoints, Groq by
// default.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-chef/core/llms"
)

const (
	DefaultURL          = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel        = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultSummaryModel = "llama-3.1-8b-instant"
)

type Client struct {
	apiKey       string
	url          string
	model        string
	summaryModel string
	client       *http.Client
}

type Option func(*Client)

// WithURL points the client at another OpenAI compatible endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func WithSummaryModel(model string) Option {
	return func(c *Client) {
		c.summaryModel = model
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		url:          DefaultURL,
		model:        DefaultModel,
		summaryModel: DefaultSummaryModel,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	MaxTokens      int                 `json:"max_completion_tokens,omitempty"`
	ToolChoice     *string             `json:"tool_choice,omitempty"`
	Tools          []tool              `json:"tools,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role,omitempty"`
			Content   string     `json:"content,omitempty"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Reason runs one chat completion. Tool calls are returned to the caller,
// never executed here.
func (c *Client) Reason(ctx context.Context, opts ...llms.ReasonOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "reason")
	defer span.End()

	options := llms.NewReasonOptions(opts...)
	reqBody := requestBody{
		Model:     c.model,
		Messages:  toMessages(options.Instructions, options.Turns),
		MaxTokens: options.MaxTokens,
		Tools:     toTools(options.Tools),
	}
	if reqBody.Tools != nil {
		auto := "auto"
		reqBody.ToolChoice = &auto
	}
	var toolNames []string
	for _, tool := range options.Tools {
		toolNames = append(toolNames, tool.Name)
	}
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.StringSlice("request.available_tools", toolNames),
		attribute.Int("request.turns", len(options.Turns)),
	)

	body, err := c.do(ctx, span, reqBody)
	if err != nil {
		return nil, err
	}
	if len(body.Choices) == 0 {
		err := fmt.Errorf("response has no choices")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	choice := body.Choices[0]
	response := &llms.Response{Content: choice.Message.Content, StopReason: choice.FinishReason}
	for _, call := range choice.Message.ToolCalls {
		arguments := json.RawMessage(call.Function.Arguments)
		if len(arguments) == 0 {
			arguments = json.RawMessage(`{}`)
		}
		response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: arguments,
		})
	}
	span.SetAttributes(attribute.Int("response.tool_calls", len(response.ToolCalls)))
	return response, nil
}

func (c *Client) do(ctx context.Context, span trace.Span, reqBody requestBody) (*responseBody, error) {
	fail := func(err error) (*responseBody, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fail(fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fail(fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
			logger.Warn("chat completion failed", "status", resp.Status, "body", string(errorBody))
		}
		return fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fail(fmt.Errorf("error unmarshalling response: %w", err))
	}
	if body.Usage != nil {
		span.SetAttributes(
			attribute.Int("response.prompt_tokens", body.Usage.PromptTokens),
			attribute.Int("response.completion_tokens", body.Usage.CompletionTokens),
		)
	}
	return &body, nil
}
