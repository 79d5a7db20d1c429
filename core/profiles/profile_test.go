package profiles

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/koscakluka/ema-chef/core/recipes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryListsLastFiveDishes(t *testing.T) {
	profile := Profile{FullName: "Ada Lovelace", FirstName: "Ada", ComfortLevel: "beginner", Goals: "weeknight dinners"}
	for i := range 7 {
		profile.RecordDish(fmt.Sprintf("dish %d", i), time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC))
	}

	summary := profile.Summary()
	assert.Contains(t, summary, "Name: Ada Lovelace")
	assert.Contains(t, summary, "Comfort level: beginner")
	assert.NotContains(t, summary, "Culinary background")
	assert.NotContains(t, summary, "dish 1 ")
	assert.Contains(t, summary, "dish 2 (2026-01-03)")
	assert.Contains(t, summary, "dish 6 (2026-01-07)")
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.LoadProfile(ctx, "ada")
	require.ErrorIs(t, err, ErrNotFound)

	profile := Profile{FullName: "Ada Lovelace", FirstName: "Ada", DishHistory: []DishRecord{{Title: "Soup", Date: "2026-01-01"}}}
	require.NoError(t, store.SaveProfile(ctx, "ada", profile))
	loaded, err := store.LoadProfile(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, profile, loaded)

	list, err := store.LoadGroceryList(ctx, "ada")
	require.NoError(t, err)
	assert.Empty(t, list)

	list = list.Save(recipes.GroceryEntry{RecipeTitle: "Soup", Ingredients: []string{"leek"}})
	require.NoError(t, store.SaveGroceryList(ctx, "ada", list))
	loadedList, err := store.LoadGroceryList(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, list, loadedList)

	assert.Error(t, store.SaveProfile(ctx, "../escape", profile))
}

func TestFileStore(t *testing.T) {
	testStore(t, NewFileStore(t.TempDir()))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}
