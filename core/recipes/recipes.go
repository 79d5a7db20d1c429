// Package recipes holds the cooking domain values shared between personas,
// the event channel and persistence.
package recipes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jinzhu/copier"
)

type Recipe struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Servings        int      `json:"servings,omitempty"`
	PrepTimeMinutes int      `json:"prep_time_minutes,omitempty"`
	Ingredients     []string `json:"ingredients"`
	Steps           []string `json:"steps"`
}

// Clone returns a deep copy, used when a recipe is promoted across a persona
// handoff.
func (r *Recipe) Clone() (*Recipe, error) {
	if r == nil {
		return nil, nil
	}
	clone := &Recipe{}
	if err := copier.CopyWithOption(clone, r, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy recipe %q: %w", r.Title, err)
	}
	return clone, nil
}

func (r *Recipe) StepCount() int {
	if r == nil {
		return 0
	}
	return len(r.Steps)
}

type Substitution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Note        string `json:"note,omitempty"`
}

type DishOption struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Recipe      *Recipe `json:"recipe,omitempty"`
}

type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

var (
	numberedStep = regexp.MustCompile(`(?:^|\n)\s*\d+[.)]\s*`)
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// ParseSteps splits free text numbered like "1. ... 2) ..." into steps. Text
// without numbering is split by lines.
func ParseSteps(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var steps []string
	if numberedStep.MatchString(text) {
		for _, part := range numberedStep.Split(text, -1) {
			if part = strings.TrimSpace(part); part != "" {
				steps = append(steps, part)
			}
		}
		return steps
	}
	return ParseIngredients(text)
}

// ParseIngredients splits text by lines and strips list markers.
func ParseIngredients(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
