package contextwindow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-chef/core/llms"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Appended turns take even indices so a summary can take the odd index right
// after the newest turn it replaces without colliding with any other turn.
const (
	firstSeq  uint64 = 2
	seqStride uint64 = 2
)

// Compaction reports the outcome of one background compaction.
type Compaction struct {
	// From and To are the sequence indices of the oldest and newest turn
	// the compaction was started for.
	From, To uint64
	// Generation is the window generation the compaction was started at.
	Generation uint64
	Applied    bool
	// Err is set when the summarizer failed and the fallback summary was used.
	Err error
}

// Manager owns the conversation transcript of one session. All mutation goes
// through Append, MaybeCompact and ForceTruncate; readers get copies from
// Snapshot.
type Manager struct {
	mu    sync.RWMutex
	turns []llms.Turn
	// nextSeq is never rewound.
	nextSeq uint64
	// generation changes whenever the head of the window is rewritten, which
	// invalidates compactions started earlier.
	generation uint64

	softThreshold int
	hardCeiling   int
	keepRecent    int

	summarizer   llms.Summarizer
	onCompaction func(Compaction)

	compacting atomic.Bool
	tasks      conc.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		nextSeq:       firstSeq,
		softThreshold: DefaultSoftThreshold,
		hardCeiling:   DefaultHardCeiling,
		keepRecent:    DefaultKeepRecent,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.softThreshold > m.hardCeiling {
		m.softThreshold = m.hardCeiling
	}
	return m
}

// Append adds a turn to the end of the window and returns its sequence index.
//
// Appending a user turn strips images from every older turn. If the window
// grows past the hard ceiling the oldest turns are dropped before Append
// returns; past the soft threshold a background compaction is started.
func (m *Manager) Append(turn llms.Turn) uint64 {
	m.mu.Lock()
	turn = turn.Clone()
	turn.Seq = m.nextSeq
	m.nextSeq += seqStride
	for i := range turn.Images {
		turn.Images[i].TurnSeq = turn.Seq
	}

	if turn.Role == llms.RoleUser {
		m.stripImagesLocked()
	}
	m.turns = append(m.turns, turn)
	if dropped := m.truncateLocked(); dropped > 0 {
		logger.Info("context window truncated", "dropped_turns", dropped, "turns", len(m.turns))
	}
	m.mu.Unlock()

	m.MaybeCompact()
	return turn.Seq
}

func (m *Manager) stripImagesLocked() int {
	stripped := 0
	for i := range m.turns {
		if len(m.turns[i].Images) > 0 {
			stripped += len(m.turns[i].Images)
			m.turns[i].Images = nil
		}
	}
	return stripped
}

// ForceTruncate drops the oldest turns until the window fits the hard ceiling
// and returns how many were dropped.
func (m *Manager) ForceTruncate() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.truncateLocked()
}

func (m *Manager) truncateLocked() int {
	excess := len(m.turns) - m.hardCeiling
	if excess <= 0 {
		return 0
	}

	remaining := make([]llms.Turn, len(m.turns)-excess, m.hardCeiling+1)
	copy(remaining, m.turns[excess:])
	m.turns = remaining
	m.generation++
	return excess
}

// MaybeCompact starts a background compaction when the window is above the
// soft threshold and none is in flight. It reports whether one was started.
func (m *Manager) MaybeCompact() bool {
	m.mu.RLock()
	if len(m.turns) <= m.softThreshold || m.ctx.Err() != nil {
		m.mu.RUnlock()
		return false
	}
	if !m.compacting.CompareAndSwap(false, true) {
		m.mu.RUnlock()
		return false
	}

	end := len(m.turns) - m.keepRecent
	if end < 2 {
		m.mu.RUnlock()
		m.compacting.Store(false)
		return false
	}
	target := make([]llms.Turn, end)
	for i := range end {
		target[i] = m.turns[i].Clone()
	}
	generation := m.generation
	m.mu.RUnlock()

	m.tasks.Go(func() {
		defer m.compacting.Store(false)
		m.compact(generation, target)
	})
	return true
}

func (m *Manager) compact(generation uint64, target []llms.Turn) {
	ctx, span := tracer.Start(m.ctx, "compact context window")
	defer span.End()

	result := Compaction{
		From:       target[0].Seq,
		To:         target[len(target)-1].Seq,
		Generation: generation,
	}
	span.SetAttributes(
		attribute.Int("context_window.compaction.turns", len(target)),
		attribute.Int64("context_window.compaction.generation", int64(generation)),
	)

	summary, err := m.summarize(ctx, target)
	if err != nil {
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("summarizer failed, using fallback summary", "error", err)
		summary = fallbackSummary(target)
	}

	result.Applied = m.applySummary(generation, result.To, summary)
	span.SetAttributes(attribute.Bool("context_window.compaction.applied", result.Applied))
	if !result.Applied {
		logger.Info("discarding superseded compaction", "from", result.From, "to", result.To)
	}

	if m.onCompaction != nil {
		m.onCompaction(result)
	}
}

func (m *Manager) summarize(ctx context.Context, target []llms.Turn) (string, error) {
	if m.summarizer == nil {
		return fallbackSummary(target), nil
	}

	summary, err := m.summarizer.Summarize(ctx, target)
	if err != nil {
		return "", fmt.Errorf("failed to summarize %d turns: %w", len(target), err)
	}
	return summary, nil
}

func (m *Manager) applySummary(generation uint64, to uint64, summary string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != generation || m.ctx.Err() != nil {
		return false
	}

	end := -1
	for i, turn := range m.turns {
		if turn.Seq == to {
			end = i
			break
		}
	}
	if end < 0 {
		return false
	}

	compacted := make([]llms.Turn, 0, len(m.turns)-end)
	compacted = append(compacted, llms.Turn{
		Seq:     to + 1,
		Role:    llms.RoleSystem,
		Text:    fmt.Sprintf("[Conversation so far: %s]", summary),
		Summary: true,
	})
	compacted = append(compacted, m.turns[end+1:]...)
	m.turns = compacted
	m.generation++
	return true
}

// Snapshot returns a deep copy of the current window, oldest first.
func (m *Manager) Snapshot() []llms.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]llms.Turn, len(m.turns))
	for i, turn := range m.turns {
		snapshot[i] = turn.Clone()
	}
	return snapshot
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Wait blocks until every background compaction has finished.
func (m *Manager) Wait() {
	m.tasks.Wait()
}

// Close cancels in-flight compactions and waits for them. Results of
// cancelled compactions are discarded.
func (m *Manager) Close() {
	m.cancel()
	m.tasks.Wait()
}
