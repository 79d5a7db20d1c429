package channel

import (
	"slices"
	"sync"

	"github.com/koscakluka/ema-chef/core/recipes"
)

// Broadcaster keeps the orchestrator side view of every topic and turns each
// change into a self-contained message.
type Broadcaster struct {
	mu    sync.Mutex
	sink  Sink
	state State
}

func NewBroadcaster(sink Sink) *Broadcaster {
	return &Broadcaster{sink: sink}
}

// State returns a copy of the current view.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

func (b *Broadcaster) emitLocked(msg Message) error {
	if b.sink == nil {
		return nil
	}
	return b.sink.Emit(msg)
}

func (b *Broadcaster) SetTimer(timer Timer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Timers = append(b.state.Timers, timer)
	return b.emitLocked(TimerMessage{
		Header:          Header{Channel: TopicTimer, Type: KindSetTimer},
		ID:              timer.ID,
		Label:           timer.Label,
		DurationSeconds: timer.DurationSeconds,
		Active:          slices.Clone(b.state.Timers),
	})
}

// TimerDone removes the timer and announces it. Unknown ids are ignored.
func (b *Broadcaster) TimerDone(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := slices.IndexFunc(b.state.Timers, func(t Timer) bool { return t.ID == id })
	if idx < 0 {
		return nil
	}
	timer := b.state.Timers[idx]
	b.state.Timers = slices.Delete(b.state.Timers, idx, idx+1)
	return b.emitLocked(TimerMessage{
		Header: Header{Channel: TopicTimer, Type: KindTimerDone},
		ID:     timer.ID,
		Label:  timer.Label,
		Active: slices.Clone(b.state.Timers),
	})
}

// ClearTimers drops every running timer from the view, announcing the change
// once per timer.
func (b *Broadcaster) ClearTimers() error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.state.Timers))
	for _, timer := range b.state.Timers {
		ids = append(ids, timer.ID)
	}
	b.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := b.TimerDone(id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (b *Broadcaster) RequestCamera(reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Camera = CameraView{Requested: true, Reason: reason}
	return b.emitLocked(CameraMessage{
		Header:    Header{Channel: TopicCameraRequest, Type: KindRequestCamera},
		Reason:    reason,
		Requested: true,
	})
}

func (b *Broadcaster) ReleaseCamera() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Camera = CameraView{}
	return b.emitLocked(CameraMessage{Header: Header{Channel: TopicCameraRequest, Type: KindReleaseCamera}})
}

func (b *Broadcaster) recipeMessageLocked(kind Kind) RecipeMessage {
	view := b.state.Recipe.clone()
	return RecipeMessage{
		Header:        Header{Channel: TopicRecipe, Type: kind},
		Active:        view.Active,
		Recipe:        view.Recipe,
		Index:         view.Index,
		TutorialLink:  view.TutorialLink,
		Preview:       view.Preview,
		Substitutions: view.Substitutions,
	}
}

// StartRecipe replaces whatever recipe was shown.
func (b *Broadcaster) StartRecipe(recipe recipes.Recipe) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Recipe = RecipeView{Active: true, Recipe: &recipe}.clone()
	return b.emitLocked(b.recipeMessageLocked(KindRecipeStart))
}

// UpdateRecipeLink attaches a tutorial link to the recipe with recipeID. It
// reports false when that recipe is no longer shown.
func (b *Broadcaster) UpdateRecipeLink(recipeID string, link string, preview *recipes.LinkPreview) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.state.Recipe.Active || b.state.Recipe.Recipe == nil || b.state.Recipe.Recipe.ID != recipeID {
		return false, nil
	}
	b.state.Recipe.TutorialLink = link
	if preview != nil {
		p := *preview
		b.state.Recipe.Preview = &p
	}
	return true, b.emitLocked(b.recipeMessageLocked(KindRecipeUpdate))
}

func (b *Broadcaster) RefreshRecipe(recipe recipes.Recipe, substitutions []recipes.Substitution) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	view := b.state.Recipe
	view.Active = true
	view.Recipe = &recipe
	view.Substitutions = substitutions
	if view.Index >= len(recipe.Steps) {
		view.Index = max(0, len(recipe.Steps)-1)
	}
	b.state.Recipe = view.clone()
	return b.emitLocked(b.recipeMessageLocked(KindRecipeRefresh))
}

func (b *Broadcaster) UpdateStep(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Recipe.Index = index
	return b.emitLocked(b.recipeMessageLocked(KindStepUpdate))
}

func (b *Broadcaster) EndRecipe() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Recipe = RecipeView{}
	return b.emitLocked(b.recipeMessageLocked(KindRecipeEnd))
}

func (b *Broadcaster) SuggestDishes(options []recipes.DishOption) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Suggestions = slices.Clone(options)
	return b.emitLocked(SuggestionsMessage{
		Header:  Header{Channel: TopicSuggestions, Type: KindDishSuggestions},
		Options: slices.Clone(options),
	})
}

// Suggestion looks up a dish option from the latest suggestions.
func (b *Broadcaster) Suggestion(dishID string) (recipes.DishOption, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, option := range b.state.Suggestions {
		if option.ID == dishID {
			return option, true
		}
	}
	return recipes.DishOption{}, false
}

// GroceryList publishes the full list. show asks the UI to bring it up.
func (b *Broadcaster) GroceryList(list recipes.GroceryList, show bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kind := KindGroceryListUpdate
	if show {
		kind = KindGroceryListShow
	}
	b.state.GroceryList = list.Clone()
	items := list.Clone()
	if items == nil {
		items = recipes.GroceryList{}
	}
	return b.emitLocked(GroceryListMessage{
		Header: Header{Channel: TopicGroceryList, Type: kind},
		Items:  items,
	})
}
