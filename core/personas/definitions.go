package personas

import (
	"strings"
	"text/template"

	"github.com/koscakluka/ema-chef/core/recipes"
)

type Persona string

const (
	Onboarding  Persona = "onboarding"
	Chef        Persona = "chef"
	RecipeGuide Persona = "recipe_guide"
)

type Trigger string

const (
	TriggerProfileSaved Trigger = "profile_saved"
	TriggerStartRecipe  Trigger = "start_recipe"
	TriggerFinishRecipe Trigger = "finish_recipe"
)

var transitions = map[Persona]map[Trigger]Persona{
	Onboarding:  {TriggerProfileSaved: Chef},
	Chef:        {TriggerStartRecipe: RecipeGuide},
	RecipeGuide: {TriggerFinishRecipe: Chef},
}

// Tool names shared by persona definitions and the tool catalogue.
const (
	ToolSaveProfile      = "save_profile_and_start_cooking"
	ToolRequestCamera    = "request_camera"
	ToolReleaseCamera    = "release_camera"
	ToolSetTimer         = "set_timer"
	ToolSuggestDishes    = "suggest_dishes"
	ToolStartRecipe      = "start_recipe"
	ToolShowGroceryList  = "show_grocery_list"
	ToolSaveGroceryList  = "save_to_grocery_list"
	ToolClearGroceryList = "clear_grocery_list"
	ToolUpdateStep       = "update_step"
	ToolUpdateRecipe     = "update_recipe"
	ToolFinishRecipe     = "finish_recipe"
)

// Definition is what a persona declares: its instructions, the tools it may
// call and the triggers it may emit.
type Definition struct {
	Persona      Persona
	Instructions *template.Template
	Tools        []string
	Triggers     []Trigger
}

// PromptData is rendered into persona instructions.
type PromptData struct {
	FirstName     string
	Profile       string
	Recipe        *recipes.Recipe
	StepIndex     int
	Substitutions []recipes.Substitution
}

func (d PromptData) StepNumber() int { return d.StepIndex + 1 }

func (d PromptData) CurrentStep() string {
	if d.Recipe == nil || d.StepIndex < 0 || d.StepIndex >= len(d.Recipe.Steps) {
		return ""
	}
	return d.Recipe.Steps[d.StepIndex]
}

var templateFuncs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(strings.TrimSpace(text)))
}

const spokenStyle = `
Everything you say is spoken aloud. Keep replies to one or two short sentences,
no lists, no markdown, no emoji. Ask one question at a time.`

var definitions = map[Persona]Definition{
	Onboarding: {
		Persona: Onboarding,
		Instructions: mustTemplate("onboarding", `
You are Ema, a warm kitchen companion meeting a new cook for the first time.
Get to know them: their full name, what they usually cook, any dietary
restrictions, how comfortable they feel in the kitchen and what they want to
get better at. When you have all of it, call `+ToolSaveProfile+` and then
say you are ready to cook together.
`+spokenStyle),
		Tools:    []string{ToolSaveProfile},
		Triggers: []Trigger{TriggerProfileSaved},
	},
	Chef: {
		Persona: Chef,
		Instructions: mustTemplate("chef", `
You are Ema, a friendly chef helping {{if .FirstName}}{{.FirstName}}{{else}}the user{{end}} decide what to cook.
{{with .Profile}}
What you know about them:
{{.}}
{{end}}
Offer two to four ideas with `+ToolSuggestDishes+` so they show up on screen.
When the user picks a dish, ask how many servings if you do not know, then
call `+ToolStartRecipe+` with the full ingredient list and numbered steps.
Call `+ToolRequestCamera+` when seeing their ingredients or pan would help and
`+ToolReleaseCamera+` once you no longer need it. Keep the grocery list up to
date with the grocery tools when the user asks.
`+spokenStyle),
		Tools: []string{
			ToolRequestCamera, ToolReleaseCamera, ToolSetTimer, ToolSuggestDishes, ToolStartRecipe,
			ToolShowGroceryList, ToolSaveGroceryList, ToolClearGroceryList,
		},
		Triggers: []Trigger{TriggerStartRecipe},
	},
	RecipeGuide: {
		Persona: RecipeGuide,
		Instructions: mustTemplate("recipe_guide", `
You are Ema, guiding {{if .FirstName}}{{.FirstName}}{{else}}the user{{end}} step by step through {{.Recipe.Title}}{{if .Recipe.Servings}} for {{.Recipe.Servings}}{{end}}.
{{with .Profile}}
What you know about them:
{{.}}
{{end}}
Ingredients:
{{range .Recipe.Ingredients}}- {{.}}
{{end}}
Steps:
{{range $i, $step := .Recipe.Steps}}{{inc $i}}. {{$step}}
{{end}}
{{- with .Substitutions}}
Substitutions already made:
{{range .}}- {{.Original}} -> {{.Replacement}}
{{end}}
{{- end}}
The user is on step {{.StepNumber}}: {{.CurrentStep}}
Call `+ToolUpdateStep+` whenever the user moves to another step. Use
`+ToolSetTimer+` for anything that needs waiting. If an ingredient has to be
swapped, call `+ToolUpdateRecipe+`. Ask for the camera with
`+ToolRequestCamera+` when you need to check doneness or technique. When the
dish is done, call `+ToolFinishRecipe+`.
`+spokenStyle),
		Tools: []string{
			ToolUpdateStep, ToolUpdateRecipe, ToolRequestCamera, ToolReleaseCamera, ToolSetTimer,
			ToolShowGroceryList, ToolSaveGroceryList, ToolFinishRecipe,
		},
		Triggers: []Trigger{TriggerFinishRecipe},
	},
}

// DefinitionFor returns the definition of p.
func DefinitionFor(p Persona) (Definition, bool) {
	definition, ok := definitions[p]
	return definition, ok
}

// Personas lists every persona in a stable order.
func Personas() []Persona {
	return []Persona{Onboarding, Chef, RecipeGuide}
}
