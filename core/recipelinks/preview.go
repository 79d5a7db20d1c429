package recipelinks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/koscakluka/ema-chef/core/recipes"
)

const (
	DefaultPreviewTimeout = 8 * time.Second
	// Metadata lives in the head, there is no need to read whole pages.
	maxPreviewBytes = 50_000
	userAgent       = "Mozilla/5.0 (compatible; EmaChef/1.0)"
)

type PreviewFetcher struct {
	client  *http.Client
	timeout time.Duration
}

type PreviewOption func(*PreviewFetcher)

func WithHTTPClient(client *http.Client) PreviewOption {
	return func(f *PreviewFetcher) {
		f.client = client
	}
}

func WithPreviewTimeout(timeout time.Duration) PreviewOption {
	return func(f *PreviewFetcher) {
		f.timeout = timeout
	}
}

func NewPreviewFetcher(opts ...PreviewOption) *PreviewFetcher {
	f := &PreviewFetcher{
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: DefaultPreviewTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch reads Open Graph metadata from link. It returns nil without an error
// when the page has neither an image nor a title.
func (f *PreviewFetcher) Fetch(ctx context.Context, link string) (*recipes.LinkPreview, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview fetch returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPreviewBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read preview: %w", err)
	}

	meta := parseMeta(string(body))
	preview := &recipes.LinkPreview{
		URL:         link,
		Title:       meta["og:title"],
		Description: meta["og:description"],
		Image:       meta["og:image"],
	}
	if preview.Image == "" {
		preview.Image = meta["twitter:image"]
	}
	if preview.Image == "" && preview.Title == "" {
		return nil, nil
	}
	return preview, nil
}

// parseMeta collects the first content value of each meta property or name.
// Truncated documents are fine, the tokenizer stops at the cut.
func parseMeta(document string) map[string]string {
	meta := map[string]string{}
	tokenizer := html.NewTokenizer(strings.NewReader(document))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return meta
		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); atom.Lookup(name) == atom.Head {
				return meta
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if atom.Lookup(name) != atom.Meta || !hasAttr {
				continue
			}
			var key, content string
			for {
				attr, value, more := tokenizer.TagAttr()
				switch strings.ToLower(string(attr)) {
				case "property", "name":
					key = strings.ToLower(string(value))
				case "content":
					content = strings.TrimSpace(string(value))
				}
				if !more {
					break
				}
			}
			if key != "" && content != "" {
				if _, seen := meta[key]; !seen {
					meta[key] = content
				}
			}
		}
	}
}
