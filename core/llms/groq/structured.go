package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-chef/core/llms"
)

type chatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	// Name identifies the schema in the response.
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	// Strict enforces the schema upon the generated content.
	Strict bool `json:"strict"`
}

// promptJSONSchema asks model for a single JSON object matching T.
func promptJSONSchema[T any](ctx context.Context, c *Client, model string, prompt string, maxTokens int) (*T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	outputType := reflect.TypeFor[T]()
	schema := reflector.ReflectFromType(outputType)
	schema.Version = ""

	reqBody := requestBody{
		Model:     model,
		Messages:  []message{{Role: messageRoleUser, Content: prompt}},
		MaxTokens: maxTokens,
		ResponseFormat: &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   outputType.Name(),
				Schema: schema,
				Strict: true,
			},
		},
	}
	span.SetAttributes(attribute.String("request.model", model))
	if schemaString, err := schema.MarshalJSON(); err == nil {
		span.SetAttributes(attribute.String("request.schema", string(schemaString)))
	}

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

	content := body.Choices[0].Message.Content
	// Some models still wrap JSON in a fenced block.
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}
	var output T
	if err := json.Unmarshal([]byte(content), &output); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &output, nil
}

type Summary struct {
	Summary string `json:"summary" jsonschema:"description=A compact paragraph summarizing the conversation"`
}

// Summarize condenses turns with the summary model.
func (c *Client) Summarize(ctx context.Context, turns []llms.Turn) (string, error) {
	prompt := llms.SummaryPrompt(turns)
	if prompt == "" {
		return "", nil
	}
	summary, err := promptJSONSchema[Summary](ctx, c, c.summaryModel, prompt, llms.SummaryMaxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}
	return strings.TrimSpace(summary.Summary), nil
}
