package channel

import (
	"slices"

	"github.com/koscakluka/ema-chef/core/recipes"
)

type CameraView struct {
	Requested bool
	Reason    string
}

type RecipeView struct {
	Active        bool
	Recipe        *recipes.Recipe
	Index         int
	TutorialLink  string
	Preview       *recipes.LinkPreview
	Substitutions []recipes.Substitution
}

func (v RecipeView) clone() RecipeView {
	clone := v
	if v.Recipe != nil {
		recipe := *v.Recipe
		recipe.Ingredients = slices.Clone(v.Recipe.Ingredients)
		recipe.Steps = slices.Clone(v.Recipe.Steps)
		clone.Recipe = &recipe
	}
	if v.Preview != nil {
		preview := *v.Preview
		clone.Preview = &preview
	}
	clone.Substitutions = slices.Clone(v.Substitutions)
	return clone
}

// State is what a UI renders from the channel.
type State struct {
	Timers      []Timer
	Camera      CameraView
	Recipe      RecipeView
	Suggestions []recipes.DishOption
	GroceryList recipes.GroceryList
}

func (s State) Clone() State {
	return State{
		Timers:      slices.Clone(s.Timers),
		Camera:      s.Camera,
		Recipe:      s.Recipe.clone(),
		Suggestions: slices.Clone(s.Suggestions),
		GroceryList: s.GroceryList.Clone(),
	}
}

// Apply folds one message into the state. Messages of unknown kinds and
// messages flowing towards the orchestrator are ignored; Apply reports
// whether the state changed.
func (s *State) Apply(msg Message) bool {
	if msg == nil || !Known(msg.Topic(), msg.Kind()) {
		return false
	}

	switch m := msg.(type) {
	case TimerMessage:
		s.Timers = slices.Clone(m.Active)
	case CameraMessage:
		s.Camera = CameraView{Requested: m.Requested, Reason: m.Reason}
	case RecipeMessage:
		s.Recipe = RecipeView{
			Active:        m.Active,
			Recipe:        m.Recipe,
			Index:         m.Index,
			TutorialLink:  m.TutorialLink,
			Preview:       m.Preview,
			Substitutions: m.Substitutions,
		}.clone()
	case SuggestionsMessage:
		s.Suggestions = slices.Clone(m.Options)
	case GroceryListMessage:
		s.GroceryList = m.Items.Clone()
	default:
		return false
	}
	return true
}

// Render builds a state from the latest message of each topic.
func Render(latest map[Topic]Message) State {
	var state State
	for _, msg := range latest {
		state.Apply(msg)
	}
	return state
}
