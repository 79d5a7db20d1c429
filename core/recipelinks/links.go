// Package recipelinks finds a tutorial for a recipe and fetches a link
// preview for it. Both steps are best effort.
package recipelinks

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

type Link struct {
	URL    string
	Title  string
	Source string
}

// Searcher finds a single tutorial link for a dish title. A nil link with a
// nil error means nothing was found.
type Searcher interface {
	SearchTutorial(ctx context.Context, title string) (*Link, error)
}

var (
	labelledURL   = regexp.MustCompile(`URL:\s*(https?://\S+)`)
	labelledTitle = regexp.MustCompile(`TITLE:\s*(.+)`)
	anyURL        = regexp.MustCompile(`https?://\S+`)
)

// SearchPrompt is the request sent to a searching model for title.
func SearchPrompt(title string) string {
	return "Find the single best video or recipe tutorial for making: " + title + "\n\n" +
		"Prefer high quality sources like YouTube cooking channels, NYT Cooking, Bon Appetit, " +
		"Serious Eats, Food Network, Epicurious or popular food blogs. A video is ideal but a " +
		"great written tutorial with photos works too.\n\n" +
		"Return EXACTLY this format, nothing else:\n" +
		"URL: <full url>\n" +
		"TITLE: <title of the page or video>\n"
}

// ParseSearchAnswer extracts a link from a model answer. Labelled URL and
// TITLE lines win, otherwise the first URL found is used with fallbackTitle.
func ParseSearchAnswer(answer, fallbackTitle string) *Link {
	if m := labelledURL.FindStringSubmatch(answer); m != nil {
		title := fallbackTitle
		if t := labelledTitle.FindStringSubmatch(answer); t != nil {
			title = t[1]
		}
		return NewLink(m[1], title)
	}
	if u := anyURL.FindString(answer); u != "" {
		return NewLink(u, fallbackTitle)
	}
	return nil
}

// NewLink cleans trailing punctuation off rawURL and derives the source
// domain. It returns nil when rawURL is not an absolute http(s) URL.
func NewLink(rawURL, title string) *Link {
	rawURL = strings.TrimRight(rawURL, ".,;)\"'>")
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil
	}
	source := strings.TrimPrefix(parsed.Hostname(), "www.")
	return &Link{URL: rawURL, Title: strings.TrimSpace(title), Source: source}
}
