package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-chef/core/recipelinks"
)

// SearchTutorial asks the fast model to search the web for a tutorial on
// title and parses the link out of its answer.
func (c *Client) SearchTutorial(ctx context.Context, title string) (*recipelinks.Link, error) {
	ctx, span := tracer.Start(ctx, "search tutorial")
	defer span.End()
	span.SetAttributes(attribute.String("recipe.title", title))

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.fastModel),
		MaxTokens: searchMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(recipelinks.SearchPrompt(title))),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{MaxUses: anthropic.Int(searchMaxUses)},
		}},
	})
	if err != nil {
		err = fmt.Errorf("failed to search tutorial: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	link := recipelinks.ParseSearchAnswer(textOf(message), title)
	if link == nil {
		logger.Info("search answer had no link", "title", title)
	}
	return link, nil
}
