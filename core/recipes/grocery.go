package recipes

import (
	"slices"
	"strings"
)

// GroceryEntry groups the ingredients saved for one recipe.
type GroceryEntry struct {
	RecipeTitle string   `json:"recipe_title"`
	Ingredients []string `json:"ingredients"`
}

// GroceryList is ordered by when a recipe was first saved.
type GroceryList []GroceryEntry

// Save replaces the entry for the same recipe or appends a new one.
func (l GroceryList) Save(entry GroceryEntry) GroceryList {
	updated := l.Clone()
	for i := range updated {
		if strings.EqualFold(updated[i].RecipeTitle, entry.RecipeTitle) {
			updated[i].Ingredients = slices.Clone(entry.Ingredients)
			return updated
		}
	}
	entry.Ingredients = slices.Clone(entry.Ingredients)
	return append(updated, entry)
}

// Remove drops the entry for recipeTitle. An empty title clears the list.
func (l GroceryList) Remove(recipeTitle string) (GroceryList, bool) {
	if strings.TrimSpace(recipeTitle) == "" {
		return GroceryList{}, len(l) > 0
	}
	updated := slices.DeleteFunc(l.Clone(), func(entry GroceryEntry) bool {
		return strings.EqualFold(entry.RecipeTitle, recipeTitle)
	})
	return updated, len(updated) != len(l)
}

func (l GroceryList) Clone() GroceryList {
	if l == nil {
		return nil
	}
	clone := make(GroceryList, len(l))
	for i, entry := range l {
		clone[i] = GroceryEntry{RecipeTitle: entry.RecipeTitle, Ingredients: slices.Clone(entry.Ingredients)}
	}
	return clone
}

// Format renders the list for the model.
func (l GroceryList) Format() string {
	if len(l) == 0 {
		return "The grocery list is empty."
	}
	var b strings.Builder
	for _, entry := range l {
		b.WriteString(entry.RecipeTitle)
		b.WriteString(":\n")
		for _, ingredient := range entry.Ingredients {
			b.WriteString("- ")
			b.WriteString(ingredient)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}
