// Package channel implements the structured side channel between the
// orchestrator and the UI.
//
// Every message is a flat JSON record carrying its topic and kind. Messages on
// one topic are delivered in emission order. Each orchestrator message carries
// the full current state of its topic, so the latest message per topic is
// enough to render the UI.
package channel

import (
	"time"

	"github.com/koscakluka/ema-chef/core/recipes"
)

type Topic string

const (
	TopicTimer         Topic = "timer"
	TopicCameraRequest Topic = "camera_request"
	TopicRecipe        Topic = "recipe"
	TopicSuggestions   Topic = "suggestions"
	TopicDishSelection Topic = "dish_selection"
	TopicGroceryList   Topic = "grocery_list"
)

type Kind string

const (
	KindSetTimer  Kind = "set_timer"
	KindTimerDone Kind = "timer_done"

	KindRequestCamera Kind = "request_camera"
	KindReleaseCamera Kind = "release_camera"

	KindRecipeStart   Kind = "recipe_start"
	KindRecipeUpdate  Kind = "recipe_update"
	KindRecipeRefresh Kind = "recipe_refresh"
	KindStepUpdate    Kind = "step_update"
	KindRecipeEnd     Kind = "recipe_end"

	KindDishSuggestions Kind = "dish_suggestions"

	KindSelectDish Kind = "select_dish"

	KindGroceryListUpdate Kind = "grocery_list_update"
	KindGroceryListShow   Kind = "grocery_list_show"
)

// Direction tells who may emit messages on a topic.
type Direction int

const (
	ToUI Direction = iota
	FromUI
)

var topics = map[Topic]struct {
	direction Direction
	kinds     []Kind
}{
	TopicTimer:         {ToUI, []Kind{KindSetTimer, KindTimerDone}},
	TopicCameraRequest: {ToUI, []Kind{KindRequestCamera, KindReleaseCamera}},
	TopicRecipe:        {ToUI, []Kind{KindRecipeStart, KindRecipeUpdate, KindRecipeRefresh, KindStepUpdate, KindRecipeEnd}},
	TopicSuggestions:   {ToUI, []Kind{KindDishSuggestions}},
	TopicDishSelection: {FromUI, []Kind{KindSelectDish}},
	TopicGroceryList:   {ToUI, []Kind{KindGroceryListUpdate, KindGroceryListShow}},
}

// Known reports whether kind is defined for topic.
func Known(topic Topic, kind Kind) bool {
	spec, ok := topics[topic]
	if !ok {
		return false
	}
	for _, k := range spec.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Message is any record sent over the channel.
type Message interface {
	Topic() Topic
	Kind() Kind
}

// Header is embedded in every message and flattened into the JSON record.
type Header struct {
	Channel Topic `json:"topic"`
	Type    Kind  `json:"type"`
}

func (h Header) Topic() Topic { return h.Channel }
func (h Header) Kind() Kind   { return h.Type }

type Timer struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"`
	DurationSeconds int       `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
}

// TimerMessage announces a started or finished timer. Active lists every
// timer still running after this message.
type TimerMessage struct {
	Header
	ID              string  `json:"id"`
	Label           string  `json:"label,omitempty"`
	DurationSeconds int     `json:"duration_seconds,omitempty"`
	Active          []Timer `json:"active"`
}

type CameraMessage struct {
	Header
	Reason    string `json:"reason,omitempty"`
	Requested bool   `json:"requested"`
}

// RecipeMessage carries the whole recipe view along with the kind specific
// change.
type RecipeMessage struct {
	Header
	Active        bool                   `json:"active"`
	Recipe        *recipes.Recipe        `json:"recipe,omitempty"`
	Index         int                    `json:"index"`
	TutorialLink  string                 `json:"tutorial_link,omitempty"`
	Preview       *recipes.LinkPreview   `json:"preview_metadata,omitempty"`
	Substitutions []recipes.Substitution `json:"substitutions,omitempty"`
}

type SuggestionsMessage struct {
	Header
	Options []recipes.DishOption `json:"options"`
}

type GroceryListMessage struct {
	Header
	Items recipes.GroceryList `json:"items"`
}

// SelectDishMessage is sent by the UI when the user taps a suggested dish.
type SelectDishMessage struct {
	Header
	DishID string `json:"dish_id"`
	Title  string `json:"title,omitempty"`
}

func NewSelectDish(dishID string) SelectDishMessage {
	return SelectDishMessage{Header: Header{Channel: TopicDishSelection, Type: KindSelectDish}, DishID: dishID}
}
