package recipes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepsNumbered(t *testing.T) {
	steps := ParseSteps("1. Boil water\n2) Add pasta\n3. Drain")
	assert.Equal(t, []string{"Boil water", "Add pasta", "Drain"}, steps)
}

func TestParseStepsFallsBackToLines(t *testing.T) {
	assert.Equal(t, []string{"Chop onion", "Fry onion"}, ParseSteps("- Chop onion\n- Fry onion\n"))
	assert.Nil(t, ParseSteps("   "))
}

func TestParseIngredientsStripsMarkers(t *testing.T) {
	assert.Equal(t, []string{"2 eggs", "100g flour"}, ParseIngredients("* 2 eggs\n\n• 100g flour"))
}

func TestRecipeCloneIsDeep(t *testing.T) {
	original := &Recipe{Title: "Carbonara", Ingredients: []string{"eggs"}, Steps: []string{"whisk"}}
	clone, err := original.Clone()
	require.NoError(t, err)

	clone.Ingredients[0] = "cream"
	assert.Equal(t, "eggs", original.Ingredients[0])

	var missing *Recipe
	nilClone, err := missing.Clone()
	require.NoError(t, err)
	assert.Nil(t, nilClone)
}

func TestGroceryListSaveReplacesSameRecipe(t *testing.T) {
	var list GroceryList
	list = list.Save(GroceryEntry{RecipeTitle: "Pesto", Ingredients: []string{"basil"}})
	list = list.Save(GroceryEntry{RecipeTitle: "Tacos", Ingredients: []string{"tortillas"}})
	list = list.Save(GroceryEntry{RecipeTitle: "pesto", Ingredients: []string{"basil", "pine nuts"}})

	require.Len(t, list, 2)
	assert.Equal(t, []string{"basil", "pine nuts"}, list[0].Ingredients)
}

func TestGroceryListRemove(t *testing.T) {
	list := GroceryList{{RecipeTitle: "Pesto"}, {RecipeTitle: "Tacos"}}

	updated, removed := list.Remove("tacos")
	assert.True(t, removed)
	assert.Len(t, updated, 1)
	assert.Len(t, list, 2, "remove must not mutate the receiver")

	cleared, removed := list.Remove("")
	assert.True(t, removed)
	assert.Empty(t, cleared)

	_, removed = updated.Remove("Soup")
	assert.False(t, removed)
}
