package contextwindow

import "github.com/koscakluka/ema-chef/core/llms"

const (
	DefaultSoftThreshold = 24
	DefaultHardCeiling   = 40
	DefaultKeepRecent    = 8
)

type Option func(*Manager)

// WithSoftThreshold sets the turn count above which background compaction
// starts.
func WithSoftThreshold(turns int) Option {
	return func(m *Manager) {
		if turns > 0 {
			m.softThreshold = turns
		}
	}
}

// WithHardCeiling sets the turn count the window never exceeds.
func WithHardCeiling(turns int) Option {
	return func(m *Manager) {
		if turns > 0 {
			m.hardCeiling = turns
		}
	}
}

// WithKeepRecent sets how many of the newest turns compaction leaves intact.
func WithKeepRecent(turns int) Option {
	return func(m *Manager) {
		if turns >= 0 {
			m.keepRecent = turns
		}
	}
}

func WithSummarizer(summarizer llms.Summarizer) Option {
	return func(m *Manager) {
		m.summarizer = summarizer
	}
}

// WithCompactionHook registers a callback that is invoked once for every
// finished compaction, applied or discarded.
func WithCompactionHook(hook func(Compaction)) Option {
	return func(m *Manager) {
		m.onCompaction = hook
	}
}
