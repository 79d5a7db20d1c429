package personas

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-chef/core/profiles"
	"github.com/koscakluka/ema-chef/core/recipes"
)

var (
	ErrInvalidTransition = errors.New("invalid persona transition")
	ErrWrongPersona      = errors.New("not available for the active persona")
)

// Shared is the state every persona can see. Values move into it only when
// explicitly promoted during a transition.
type Shared struct {
	Profile *profiles.Profile
	Recipe  *recipes.Recipe
}

func (s Shared) clone() (Shared, error) {
	clone := Shared{}
	if s.Profile != nil {
		profile := *s.Profile
		profile.DishHistory = slices.Clone(s.Profile.DishHistory)
		clone.Profile = &profile
	}
	recipe, err := s.Recipe.Clone()
	if err != nil {
		return Shared{}, err
	}
	clone.Recipe = recipe
	return clone, nil
}

// GuideState is the working state of the recipe guide.
type GuideState struct {
	StepIndex     int
	Substitutions []recipes.Substitution
}

func (g GuideState) clone() GuideState {
	g.Substitutions = slices.Clone(g.Substitutions)
	return g
}

type Transition struct {
	From    Persona
	To      Persona
	Trigger Trigger
	// CancelledTimers were running when a new recipe started.
	CancelledTimers []Timer
}

type MachineOption func(*Machine)

func WithTimerHandler(onFire func(Timer)) MachineOption {
	return func(m *Machine) {
		m.timers = NewTimers(onFire)
	}
}

func withClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		m.now = now
	}
}

// Machine owns the active persona of one session. Exactly one persona is
// active at any time and it only changes through Fire.
type Machine struct {
	mu     sync.RWMutex
	active Persona
	shared Shared
	// guide is set only while RecipeGuide is active.
	guide  *GuideState
	timers *Timers
	now    func() time.Time
}

// NewMachine starts in Chef when a profile is known and in Onboarding
// otherwise.
func NewMachine(profile *profiles.Profile, opts ...MachineOption) *Machine {
	m := &Machine{active: Onboarding, now: time.Now}
	if profile != nil {
		p := *profile
		m.shared.Profile = &p
		m.active = Chef
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.timers == nil {
		m.timers = NewTimers(nil)
	}
	return m
}

func (m *Machine) Active() Persona {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Machine) Definition() Definition {
	definition, _ := DefinitionFor(m.Active())
	return definition
}

func (m *Machine) Timers() *Timers {
	return m.timers
}

// CanFire reports whether trigger is valid from the active persona.
func (m *Machine) CanFire(trigger Trigger) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := transitions[m.active][trigger]; !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.active)
	}
	return nil
}

// Fire performs the transition for trigger. promote may move values into the
// shared state; it runs on a copy that is only committed if it succeeds.
// Persona local state of the persona being left is discarded.
func (m *Machine) Fire(trigger Trigger, promote func(*Shared) error) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.active
	to, ok := transitions[from][trigger]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, from)
	}

	next, err := m.shared.clone()
	if err != nil {
		return Transition{}, err
	}
	if promote != nil {
		if err := promote(&next); err != nil {
			return Transition{}, fmt.Errorf("failed to promote state for %s: %w", trigger, err)
		}
	}

	transition := Transition{From: from, To: to, Trigger: trigger}
	switch to {
	case RecipeGuide:
		if next.Recipe == nil {
			return Transition{}, fmt.Errorf("%w: %s needs a recipe", ErrInvalidTransition, to)
		}
		transition.CancelledTimers = m.timers.CancelAll()
		m.guide = &GuideState{}
	default:
		if from == RecipeGuide {
			next.Recipe = nil
		}
		m.guide = nil
	}

	m.active = to
	m.shared = next
	logger.Info("persona transition", "from", from, "to", to, "trigger", trigger)
	return transition, nil
}

// Shared returns a copy of the shared state.
func (m *Machine) Shared() Shared {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shared, err := m.shared.clone()
	if err != nil {
		logger.Error("failed to copy shared state", "error", err)
	}
	return shared
}

// Guide returns a copy of the recipe guide state.
func (m *Machine) Guide() (GuideState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.guide == nil {
		return GuideState{}, false
	}
	return m.guide.clone(), true
}

// SetStep moves the guide to a zero-based step index.
func (m *Machine) SetStep(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.guide == nil {
		return fmt.Errorf("step update %w", ErrWrongPersona)
	}
	if steps := m.shared.Recipe.StepCount(); index < 0 || index >= steps {
		return fmt.Errorf("step %d is out of range, the recipe has %d steps", index+1, steps)
	}
	m.guide.StepIndex = index
	return nil
}

// ReviseRecipe replaces the ingredients and/or steps of the active recipe and
// records substitutions. Empty arguments leave the respective part unchanged.
func (m *Machine) ReviseRecipe(ingredients, steps []string, substitutions []recipes.Substitution) (recipes.Recipe, GuideState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.guide == nil || m.shared.Recipe == nil {
		return recipes.Recipe{}, GuideState{}, fmt.Errorf("recipe update %w", ErrWrongPersona)
	}

	recipe, err := m.shared.Recipe.Clone()
	if err != nil {
		return recipes.Recipe{}, GuideState{}, err
	}
	if len(ingredients) > 0 {
		recipe.Ingredients = slices.Clone(ingredients)
	}
	if len(steps) > 0 {
		recipe.Steps = slices.Clone(steps)
	}
	m.shared.Recipe = recipe
	m.guide.Substitutions = append(m.guide.Substitutions, substitutions...)
	if m.guide.StepIndex >= len(recipe.Steps) {
		m.guide.StepIndex = max(0, len(recipe.Steps)-1)
	}
	return *recipe, m.guide.clone(), nil
}

// UpdateProfile applies f to the shared profile and returns the result.
func (m *Machine) UpdateProfile(f func(*profiles.Profile)) profiles.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shared.Profile == nil {
		m.shared.Profile = &profiles.Profile{}
	}
	f(m.shared.Profile)
	profile := *m.shared.Profile
	profile.DishHistory = slices.Clone(profile.DishHistory)
	return profile
}

// Instructions renders the active persona's instructions.
func (m *Machine) Instructions() (string, error) {
	m.mu.RLock()
	data := PromptData{}
	if m.shared.Profile != nil {
		data.FirstName = m.shared.Profile.FirstName
		data.Profile = m.shared.Profile.Summary()
	}
	data.Recipe = m.shared.Recipe
	if m.guide != nil {
		data.StepIndex = m.guide.StepIndex
		data.Substitutions = m.guide.Substitutions
	}
	definition, ok := DefinitionFor(m.active)
	active := m.active
	var b strings.Builder
	var err error
	if ok {
		err = definition.Instructions.Execute(&b, data)
	}
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("no definition for persona %s", active)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render %s instructions: %w", active, err)
	}
	return b.String(), nil
}

// Now is the machine clock, used for dish history dates.
func (m *Machine) Now() time.Time {
	return m.now()
}

// Close cancels every running timer.
func (m *Machine) Close() {
	m.timers.CancelAll()
}
