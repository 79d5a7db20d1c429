package channel

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/koscakluka/ema-chef/core/recipes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesFlatRecord(t *testing.T) {
	data, err := Encode(TimerMessage{
		Header:          Header{Channel: TopicTimer, Type: KindSetTimer},
		ID:              "t1",
		Label:           "pasta",
		DurationSeconds: 540,
	})
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "timer", record["topic"])
	assert.Equal(t, "set_timer", record["type"])
	assert.Equal(t, "t1", record["id"])
	assert.Equal(t, float64(540), record["duration_seconds"])
}

func TestEncodeRejectsKindOnWrongTopic(t *testing.T) {
	_, err := Encode(TimerMessage{Header: Header{Channel: TopicTimer, Type: KindRecipeStart}})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "unsupported", decodeErr.Code)
}

func TestDecodeRecipeStart(t *testing.T) {
	data, err := Encode(RecipeMessage{
		Header: Header{Channel: TopicRecipe, Type: KindRecipeStart},
		Active: true,
		Recipe: &recipes.Recipe{ID: "r1", Title: "Shakshuka", Steps: []string{"simmer"}},
	})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	recipeMsg, ok := msg.(RecipeMessage)
	require.True(t, ok)
	assert.Equal(t, KindRecipeStart, recipeMsg.Kind())
	assert.Equal(t, "Shakshuka", recipeMsg.Recipe.Title)
}

func TestDecodeSelectDish(t *testing.T) {
	msg, err := Decode([]byte(`{"topic":"dish_selection","type":"select_dish","dish_id":" d2 "}`))
	require.NoError(t, err)
	selection := msg.(SelectDishMessage)
	assert.Equal(t, "d2", selection.DishID)

	_, err = Decode([]byte(`{"topic":"dish_selection","type":"select_dish"}`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "dish_id", decodeErr.Param)
}

func TestDecodeUnknownKindIsIgnorable(t *testing.T) {
	_, err := Decode([]byte(`{"topic":"recipe","type":"recipe_confetti"}`))
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"invalid json":  `{`,
		"missing topic": `{"type":"set_timer"}`,
		"missing type":  `{"topic":"timer"}`,
		"unknown topic": `{"topic":"weather","type":"rain"}`,
		"bad payload":   `{"topic":"timer","type":"set_timer","duration_seconds":"long"}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.False(t, errors.Is(err, ErrUnknownKind))
		})
	}
}
