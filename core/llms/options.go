package llms

// ReasonOptions collects everything a single reasoning call needs.
type ReasonOptions struct {
	Instructions string
	Turns        []Turn
	Tools        []ToolDefinition
	MaxTokens    int
}

type ReasonOption func(*ReasonOptions)

func WithInstructions(instructions string) ReasonOption {
	return func(o *ReasonOptions) {
		o.Instructions = instructions
	}
}

// WithTurns sets the conversation the call reasons over. The slice is used as
// is, callers pass a snapshot.
func WithTurns(turns []Turn) ReasonOption {
	return func(o *ReasonOptions) {
		o.Turns = turns
	}
}

func WithTools(tools ...ToolDefinition) ReasonOption {
	return func(o *ReasonOptions) {
		o.Tools = append(o.Tools, tools...)
	}
}

func WithMaxTokens(maxTokens int) ReasonOption {
	return func(o *ReasonOptions) {
		if maxTokens > 0 {
			o.MaxTokens = maxTokens
		}
	}
}

// NewReasonOptions applies opts on top of the defaults.
func NewReasonOptions(opts ...ReasonOption) ReasonOptions {
	options := ReasonOptions{MaxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

const DefaultMaxTokens = 1024
