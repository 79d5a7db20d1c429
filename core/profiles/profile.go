// Package profiles persists what the assistant remembers about a user between
// sessions: the onboarding profile, dish history and grocery list.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-chef/core/recipes"
)

var ErrNotFound = errors.New("not found")

const recentDishes = 5

type DishRecord struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

type Profile struct {
	FullName            string       `json:"full_name"`
	FirstName           string       `json:"first_name"`
	CulinaryBackground  string       `json:"culinary_background"`
	DietaryRestrictions string       `json:"dietary_restrictions,omitempty"`
	ComfortLevel        string       `json:"comfort_level"`
	Goals               string       `json:"goals"`
	DishHistory         []DishRecord `json:"dish_history,omitempty"`
}

// RecordDish appends a cooked dish dated at now.
func (p *Profile) RecordDish(title string, now time.Time) {
	p.DishHistory = append(p.DishHistory, DishRecord{Title: title, Date: now.Format(time.DateOnly)})
}

// Summary renders the profile for persona instructions.
func (p Profile) Summary() string {
	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}
	add("Name", p.FullName)
	add("Culinary background", p.CulinaryBackground)
	add("Dietary restrictions", p.DietaryRestrictions)
	add("Comfort level", p.ComfortLevel)
	add("Goals", p.Goals)

	if len(p.DishHistory) > 0 {
		recent := p.DishHistory[max(0, len(p.DishHistory)-recentDishes):]
		titles := make([]string, 0, len(recent))
		for _, dish := range recent {
			titles = append(titles, fmt.Sprintf("%s (%s)", dish.Title, dish.Date))
		}
		lines = append(lines, "Recently cooked: "+strings.Join(titles, ", "))
	}
	return strings.Join(lines, "\n")
}

// Store persists profiles and grocery lists by user id.
type Store interface {
	LoadProfile(ctx context.Context, userID string) (Profile, error)
	SaveProfile(ctx context.Context, userID string, profile Profile) error
	LoadGroceryList(ctx context.Context, userID string) (recipes.GroceryList, error)
	SaveGroceryList(ctx context.Context, userID string, list recipes.GroceryList) error
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.ContainsAny(userID, `/\:`) || strings.Contains(userID, "..") {
		return fmt.Errorf("invalid user id %q", userID)
	}
	return nil
}
