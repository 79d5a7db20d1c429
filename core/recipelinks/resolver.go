package recipelinks

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-chef/core/recipes"
)

type Resolution struct {
	Link    Link
	Preview *recipes.LinkPreview
}

// Resolver searches for a tutorial and then fetches its preview.
type Resolver struct {
	searcher Searcher
	previews *PreviewFetcher
}

func NewResolver(searcher Searcher, previews *PreviewFetcher) *Resolver {
	if previews == nil {
		previews = NewPreviewFetcher()
	}
	return &Resolver{searcher: searcher, previews: previews}
}

// Resolve returns nil when no link was found. A failed preview still returns
// the link.
func (r *Resolver) Resolve(ctx context.Context, title string) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "resolve recipe link")
	defer span.End()
	span.SetAttributes(attribute.String("recipe.title", title))

	if r == nil || r.searcher == nil {
		return nil, nil
	}

	link, err := r.searcher.SearchTutorial(ctx, title)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if link == nil {
		logger.Info("no tutorial found", "title", title)
		return nil, nil
	}
	span.SetAttributes(attribute.String("recipe.link", link.URL))

	resolution := &Resolution{Link: *link}
	preview, err := r.previews.Fetch(ctx, link.URL)
	if err != nil {
		logger.Debug("link preview failed", "url", link.URL, "error", err)
	} else {
		resolution.Preview = preview
	}
	return resolution, nil
}
