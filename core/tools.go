package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-chef/core/channel"
	"github.com/koscakluka/ema-chef/core/events"
	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/koscakluka/ema-chef/core/personas"
	"github.com/koscakluka/ema-chef/core/profiles"
	"github.com/koscakluka/ema-chef/core/recipes"
	"github.com/koscakluka/ema-chef/core/tools"
)

const linkResolutionTimeout = 30 * time.Second

var errNoCamera = errors.New("no camera is connected to this session")

type saveProfileArgs struct {
	FullName            string `json:"full_name" jsonschema_description:"The user's full name"`
	FirstName           string `json:"first_name" jsonschema_description:"What to call the user"`
	CulinaryBackground  string `json:"culinary_background" jsonschema_description:"What the user usually cooks and where they learned"`
	DietaryRestrictions string `json:"dietary_restrictions,omitempty" jsonschema_description:"Allergies, intolerances or diets, if any"`
	ComfortLevel        string `json:"comfort_level" jsonschema:"enum=beginner,enum=intermediate,enum=advanced"`
	Goals               string `json:"goals" jsonschema_description:"What the user wants to get better at"`
}

type requestCameraArgs struct {
	Reason string `json:"reason" jsonschema_description:"Why the camera helps, shown to the user"`
}

type noArgs struct{}

type setTimerArgs struct {
	Label           string  `json:"label" jsonschema_description:"What the timer is for"`
	DurationMinutes float64 `json:"duration_minutes" jsonschema:"exclusiveMinimum=0,maximum=1440"`
}

type dishArgs struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// Recipe lets a tap on the suggestion start cooking without asking
	// the chef again.
	Recipe *startRecipeArgs `json:"recipe,omitempty" jsonschema_description:"Full recipe, when already known"`
}

type suggestDishesArgs struct {
	Options []dishArgs `json:"options" jsonschema:"minItems=1,maxItems=6"`
}

type startRecipeArgs struct {
	Title           string   `json:"title"`
	Servings        int      `json:"servings" jsonschema:"minimum=1"`
	PrepTimeMinutes int      `json:"prep_time_minutes" jsonschema:"minimum=0"`
	Ingredients     []string `json:"ingredients" jsonschema:"minItems=1"`
	Steps           []string `json:"steps" jsonschema:"minItems=1" jsonschema_description:"Steps in order, without numbering"`
}

func (a startRecipeArgs) recipe() recipes.Recipe {
	return recipes.Recipe{
		Title:           strings.TrimSpace(a.Title),
		Servings:        a.Servings,
		PrepTimeMinutes: a.PrepTimeMinutes,
		Ingredients:     a.Ingredients,
		Steps:           a.Steps,
	}
}

type updateStepArgs struct {
	StepNumber int `json:"step_number" jsonschema:"minimum=1" jsonschema_description:"One-based number of the step the user is on"`
}

type substitutionArgs struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Note        string `json:"note,omitempty"`
}

type updateRecipeArgs struct {
	Ingredients   []string           `json:"ingredients,omitempty" jsonschema_description:"The full revised ingredient list"`
	Steps         []string           `json:"steps,omitempty" jsonschema_description:"The full revised list of steps"`
	Substitutions []substitutionArgs `json:"substitutions,omitempty"`
}

type saveGroceryListArgs struct {
	RecipeTitle string   `json:"recipe_title"`
	Ingredients []string `json:"ingredients" jsonschema:"minItems=1"`
}

type clearGroceryListArgs struct {
	RecipeTitle string `json:"recipe_title,omitempty" jsonschema_description:"Only remove this recipe; everything is cleared when empty"`
}

// toolCatalogue builds every tool once and scopes it to the personas that
// declare it.
func (o *Orchestrator) toolCatalogue() (map[personas.Persona]*tools.Registry, error) {
	all, err := tools.NewRegistry(
		tools.MustNew(personas.ToolSaveProfile,
			"Save what you learned about the user and start cooking together. Call once every field is known.",
			o.saveProfile),
		tools.MustNew(personas.ToolRequestCamera,
			"Ask the user to turn on their camera so you can see their ingredients, pan or technique.",
			o.requestCamera),
		tools.MustNew(personas.ToolReleaseCamera,
			"Tell the user they can turn off their camera.",
			o.releaseCamera),
		tools.MustNew(personas.ToolSetTimer,
			"Start a kitchen timer. The user is told when it finishes.",
			o.setTimer),
		tools.MustNew(personas.ToolSuggestDishes,
			"Show dish ideas on screen for the user to pick from.",
			o.suggestDishes),
		tools.MustNew(personas.ToolStartRecipe,
			"Start cooking a recipe with the user. Hands the conversation to the recipe guide.",
			o.startRecipe),
		tools.MustNew(personas.ToolUpdateStep,
			"Show the step the user is on.",
			o.updateStep),
		tools.MustNew(personas.ToolUpdateRecipe,
			"Revise the recipe being cooked, e.g. after swapping an ingredient.",
			o.updateRecipe),
		tools.MustNew(personas.ToolFinishRecipe,
			"Finish the recipe being cooked and go back to the chef.",
			o.finishRecipe),
		tools.MustNew(personas.ToolShowGroceryList,
			"Show the grocery list on screen and read back its content.",
			o.showGroceryList),
		tools.MustNew(personas.ToolSaveGroceryList,
			"Save ingredients for a recipe to the grocery list, replacing earlier ones for the same recipe.",
			o.saveToGroceryList),
		tools.MustNew(personas.ToolClearGroceryList,
			"Remove one recipe from the grocery list, or clear it completely.",
			o.clearGroceryList),
	)
	if err != nil {
		return nil, err
	}

	toolsets := make(map[personas.Persona]*tools.Registry)
	for _, persona := range personas.Personas() {
		definition, ok := personas.DefinitionFor(persona)
		if !ok {
			return nil, fmt.Errorf("no definition for persona %s", persona)
		}
		scoped, err := all.Scope(definition.Tools...)
		if err != nil {
			return nil, fmt.Errorf("failed to scope tools for %s: %w", persona, err)
		}
		toolsets[persona] = scoped
	}
	return toolsets, nil
}

func (o *Orchestrator) requestHandoff(ctx context.Context, transition pendingTransition) error {
	if err := o.machine.CanFire(transition.trigger); err != nil {
		return err
	}
	turn, ok := activeTurnFromContext(ctx)
	if !ok {
		return fmt.Errorf("handoffs can only be requested during a turn")
	}
	return turn.requestTransition(transition)
}

func (o *Orchestrator) saveProfile(ctx context.Context, args saveProfileArgs) (string, error) {
	profile := profiles.Profile{
		FullName:            strings.TrimSpace(args.FullName),
		FirstName:           strings.TrimSpace(args.FirstName),
		CulinaryBackground:  args.CulinaryBackground,
		DietaryRestrictions: args.DietaryRestrictions,
		ComfortLevel:        args.ComfortLevel,
		Goals:               args.Goals,
	}
	if profile.FirstName == "" {
		profile.FirstName, _, _ = strings.Cut(profile.FullName, " ")
	}

	err := o.requestHandoff(ctx, pendingTransition{
		trigger: personas.TriggerProfileSaved,
		promote: func(shared *personas.Shared) error {
			p := profile
			shared.Profile = &p
			return nil
		},
		committed: func(ctx context.Context, _ personas.Transition, _ personas.Shared) {
			o.persistProfile(ctx, profile)
		},
		note: fmt.Sprintf("Onboarding is complete. You are now the chef for %s; greet them by name and ask what they feel like cooking.", profile.FirstName),
	})
	if err != nil {
		return "", err
	}
	return "Profile saved. The chef takes over from here.", nil
}

func (o *Orchestrator) requestCamera(_ context.Context, args requestCameraArgs) (string, error) {
	if o.sampler == nil {
		return "", errNoCamera
	}
	o.sampler.SetActive(true)
	if err := o.broadcaster.RequestCamera(args.Reason); err != nil {
		return "", err
	}
	o.emitEvent(events.NewCameraRequested(args.Reason))
	return "Camera requested. Frames will be attached to what the user says next.", nil
}

func (o *Orchestrator) releaseCamera(_ context.Context, _ noArgs) (string, error) {
	if o.sampler == nil {
		return "", errNoCamera
	}
	o.sampler.SetActive(false)
	if err := o.broadcaster.ReleaseCamera(); err != nil {
		return "", err
	}
	o.emitEvent(events.NewCameraReleased())
	return "Camera released.", nil
}

func (o *Orchestrator) setTimer(_ context.Context, args setTimerArgs) (string, error) {
	duration := time.Duration(math.Round(args.DurationMinutes * float64(time.Minute)))
	if duration < time.Second {
		return "", fmt.Errorf("timer duration must be at least one second")
	}
	label := strings.TrimSpace(args.Label)
	if label == "" {
		label = "timer"
	}

	timer := o.machine.Timers().Start(label, duration)
	if err := o.broadcaster.SetTimer(channel.Timer{
		ID:              timer.ID,
		Label:           timer.Label,
		DurationSeconds: int(timer.Duration.Round(time.Second) / time.Second),
		StartedAt:       timer.StartedAt,
	}); err != nil {
		logger.Warn("failed to publish timer", "id", timer.ID, "error", err)
	}
	o.emitEvent(events.NewTimerStarted(timer.ID, timer.Label, timer.Duration))
	return fmt.Sprintf("Timer %q set for %s.", timer.Label, formatDuration(timer.Duration)), nil
}

// onTimerFinished runs on the timer's goroutine. The note is added to the
// context right away; the assistant announces it once the conversation is
// free.
func (o *Orchestrator) onTimerFinished(timer personas.Timer) {
	if err := o.broadcaster.TimerDone(timer.ID); err != nil {
		logger.Warn("failed to publish finished timer", "id", timer.ID, "error", err)
	}
	o.emitEvent(events.NewTimerFinished(timer.ID, timer.Label))
	o.context.Append(llms.Turn{
		Role: llms.RoleSystem,
		Text: fmt.Sprintf("The %q timer for %s has finished. Let the user know.", timer.Label, formatDuration(timer.Duration)),
	})
	o.enqueue(turnInput{kind: inputTimerFinished, timer: timer})
}

func (o *Orchestrator) suggestDishes(_ context.Context, args suggestDishesArgs) (string, error) {
	options := make([]recipes.DishOption, 0, len(args.Options))
	titles := make([]string, 0, len(args.Options))
	for _, option := range args.Options {
		title := strings.TrimSpace(option.Title)
		if title == "" {
			return "", fmt.Errorf("every suggestion needs a title")
		}
		dish := recipes.DishOption{ID: uuid.NewString(), Title: title, Description: option.Description}
		if option.Recipe != nil {
			recipe := option.Recipe.recipe()
			if recipe.Title == "" {
				recipe.Title = title
			}
			dish.Recipe = &recipe
		}
		options = append(options, dish)
		titles = append(titles, title)
	}

	if err := o.broadcaster.SuggestDishes(options); err != nil {
		return "", err
	}
	return "Showing " + strings.Join(titles, ", ") + ". The user may pick one on screen.", nil
}

func (o *Orchestrator) startRecipe(ctx context.Context, args startRecipeArgs) (string, error) {
	recipe := args.recipe()
	if recipe.Title == "" {
		return "", fmt.Errorf("recipe title is required")
	}
	if err := o.requestHandoff(ctx, o.startRecipeTransition(recipe)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Starting %s. The recipe guide takes over from here.", recipe.Title), nil
}

// startRecipeTransition hands the recipe to the guide. recipe_start is
// emitted once, when the handoff commits.
func (o *Orchestrator) startRecipeTransition(recipe recipes.Recipe) pendingTransition {
	if recipe.ID == "" {
		recipe.ID = uuid.NewString()
	}
	return pendingTransition{
		trigger: personas.TriggerStartRecipe,
		promote: func(shared *personas.Shared) error {
			promoted, err := recipe.Clone()
			if err != nil {
				return err
			}
			shared.Recipe = promoted
			return nil
		},
		committed: func(ctx context.Context, transition personas.Transition, _ personas.Shared) {
			if len(transition.CancelledTimers) > 0 {
				if err := o.broadcaster.ClearTimers(); err != nil {
					logger.Warn("failed to clear timers", "error", err)
				}
			}
			if err := o.broadcaster.StartRecipe(recipe); err != nil {
				logger.Error("failed to publish recipe start", "recipe", recipe.Title, "error", err)
			}
			o.resolveRecipeLink(ctx, recipe)
		},
		note: fmt.Sprintf("The recipe guide is taking over to cook %s with the user, starting at step 1. Introduce the recipe briefly and check they have the ingredients.", recipe.Title),
	}
}

// resolveRecipeLink looks for a tutorial in the background. Nothing is
// published when none is found.
func (o *Orchestrator) resolveRecipeLink(ctx context.Context, recipe recipes.Recipe) {
	if o.links == nil {
		return
	}

	o.background.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, linkResolutionTimeout)
		defer cancel()
		stop := context.AfterFunc(o.baseContext, cancel)
		defer stop()

		resolution, err := o.links.Resolve(ctx, recipe.Title)
		if err != nil {
			logger.Warn("failed to resolve tutorial link", "recipe", recipe.Title, "error", err)
			return
		}
		if resolution == nil {
			return
		}
		if _, err := o.broadcaster.UpdateRecipeLink(recipe.ID, resolution.Link.URL, resolution.Preview); err != nil {
			logger.Warn("failed to publish tutorial link", "recipe", recipe.Title, "error", err)
		}
	})
}

func (o *Orchestrator) updateStep(_ context.Context, args updateStepArgs) (string, error) {
	index := args.StepNumber - 1
	if err := o.machine.SetStep(index); err != nil {
		return "", err
	}
	if err := o.broadcaster.UpdateStep(index); err != nil {
		logger.Warn("failed to publish step update", "error", err)
	}

	shared := o.machine.Shared()
	return fmt.Sprintf("Now on step %d: %s", args.StepNumber, shared.Recipe.Steps[index]), nil
}

func (o *Orchestrator) updateRecipe(_ context.Context, args updateRecipeArgs) (string, error) {
	if len(args.Ingredients) == 0 && len(args.Steps) == 0 && len(args.Substitutions) == 0 {
		return "", fmt.Errorf("nothing to update, pass ingredients, steps or substitutions")
	}

	substitutions := make([]recipes.Substitution, 0, len(args.Substitutions))
	for _, s := range args.Substitutions {
		substitutions = append(substitutions, recipes.Substitution{Original: s.Original, Replacement: s.Replacement, Note: s.Note})
	}

	recipe, guide, err := o.machine.ReviseRecipe(args.Ingredients, args.Steps, substitutions)
	if err != nil {
		return "", err
	}
	if err := o.broadcaster.RefreshRecipe(recipe, guide.Substitutions); err != nil {
		logger.Warn("failed to publish recipe refresh", "error", err)
	}
	return fmt.Sprintf("Recipe updated, %d ingredients and %d steps.", len(recipe.Ingredients), len(recipe.Steps)), nil
}

func (o *Orchestrator) finishRecipe(ctx context.Context, _ noArgs) (string, error) {
	err := o.requestHandoff(ctx, pendingTransition{
		trigger: personas.TriggerFinishRecipe,
		committed: func(ctx context.Context, _ personas.Transition, before personas.Shared) {
			if err := o.broadcaster.EndRecipe(); err != nil {
				logger.Warn("failed to publish recipe end", "error", err)
			}
			if before.Recipe == nil {
				return
			}
			profile := o.machine.UpdateProfile(func(p *profiles.Profile) {
				p.RecordDish(before.Recipe.Title, o.machine.Now())
			})
			o.persistProfile(ctx, profile)
		},
		note: "The recipe is finished and the chef is back. Congratulate the user and ask how it turned out.",
	})
	if err != nil {
		return "", err
	}
	return "Recipe finished. The chef takes over from here.", nil
}

func (o *Orchestrator) showGroceryList(_ context.Context, _ noArgs) (string, error) {
	o.groceryMu.Lock()
	defer o.groceryMu.Unlock()

	if err := o.broadcaster.GroceryList(o.groceries, true); err != nil {
		return "", err
	}
	return o.groceries.Format(), nil
}

func (o *Orchestrator) saveToGroceryList(ctx context.Context, args saveGroceryListArgs) (string, error) {
	title := strings.TrimSpace(args.RecipeTitle)
	if title == "" {
		return "", fmt.Errorf("recipe title is required")
	}

	o.groceryMu.Lock()
	defer o.groceryMu.Unlock()

	o.updateGroceryList(ctx, o.groceries.Save(recipes.GroceryEntry{RecipeTitle: title, Ingredients: args.Ingredients}))
	return fmt.Sprintf("Saved %d ingredients for %s.", len(args.Ingredients), title), nil
}

func (o *Orchestrator) clearGroceryList(ctx context.Context, args clearGroceryListArgs) (string, error) {
	title := strings.TrimSpace(args.RecipeTitle)

	o.groceryMu.Lock()
	defer o.groceryMu.Unlock()

	if title == "" {
		o.updateGroceryList(ctx, recipes.GroceryList{})
		return "Grocery list cleared.", nil
	}

	list, removed := o.groceries.Remove(title)
	if !removed {
		return "", fmt.Errorf("%s is not on the grocery list", title)
	}
	o.updateGroceryList(ctx, list)
	return fmt.Sprintf("Removed %s from the grocery list.", title), nil
}

// updateGroceryList must be called with groceryMu held.
func (o *Orchestrator) updateGroceryList(ctx context.Context, list recipes.GroceryList) {
	o.groceries = list
	if err := o.broadcaster.GroceryList(list, false); err != nil {
		logger.Warn("failed to publish grocery list", "error", err)
	}
	if o.store == nil || o.userID == anonymousUserID {
		return
	}
	if err := o.store.SaveGroceryList(ctx, o.userID, list); err != nil {
		logger.Error("failed to save grocery list", "user_id", o.userID, "error", err)
	}
}

func (o *Orchestrator) persistProfile(ctx context.Context, profile profiles.Profile) {
	if o.store == nil || o.userID == anonymousUserID {
		return
	}
	if err := o.store.SaveProfile(ctx, o.userID, profile); err != nil {
		logger.Error("failed to save profile", "user_id", o.userID, "error", err)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	minutes, seconds := int(d/time.Minute), int(d%time.Minute/time.Second)
	switch {
	case minutes == 0 && seconds == 1:
		return "1 second"
	case minutes == 0:
		return fmt.Sprintf("%d seconds", seconds)
	case seconds == 0 && minutes == 1:
		return "1 minute"
	case seconds == 0:
		return fmt.Sprintf("%d minutes", minutes)
	default:
		return fmt.Sprintf("%d minutes %d seconds", minutes, seconds)
	}
}
