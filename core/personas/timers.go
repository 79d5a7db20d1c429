package personas

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Timer struct {
	ID        string
	Label     string
	Duration  time.Duration
	StartedAt time.Time
}

type runningTimer struct {
	Timer
	stop func() bool
}

// Timers tracks kitchen timers for one session. Each timer either fires once
// or is cancelled, never both.
type Timers struct {
	mu     sync.Mutex
	active map[string]*runningTimer
	onFire func(Timer)
	now    func() time.Time
}

func NewTimers(onFire func(Timer)) *Timers {
	return &Timers{active: map[string]*runningTimer{}, onFire: onFire, now: time.Now}
}

func (t *Timers) Start(label string, duration time.Duration) Timer {
	timer := Timer{ID: uuid.NewString(), Label: label, Duration: duration, StartedAt: t.now()}

	t.mu.Lock()
	defer t.mu.Unlock()

	running := &runningTimer{Timer: timer}
	running.stop = time.AfterFunc(duration, func() { t.fire(timer.ID) }).Stop
	t.active[timer.ID] = running
	logger.Info("timer started", "id", timer.ID, "label", label, "duration", duration)
	return timer
}

func (t *Timers) fire(id string) {
	t.mu.Lock()
	running, ok := t.active[id]
	if ok {
		delete(t.active, id)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	logger.Info("timer finished", "id", id, "label", running.Label)
	if t.onFire != nil {
		t.onFire(running.Timer)
	}
}

func (t *Timers) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	running, ok := t.active[id]
	if !ok {
		return false
	}
	running.stop()
	delete(t.active, id)
	return true
}

// CancelAll stops every running timer and returns them.
func (t *Timers) CancelAll() []Timer {
	t.mu.Lock()
	defer t.mu.Unlock()

	cancelled := make([]Timer, 0, len(t.active))
	for id, running := range t.active {
		running.stop()
		cancelled = append(cancelled, running.Timer)
		delete(t.active, id)
	}
	sortTimers(cancelled)
	return cancelled
}

// Active returns running timers, oldest first.
func (t *Timers) Active() []Timer {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := make([]Timer, 0, len(t.active))
	for _, running := range t.active {
		active = append(active, running.Timer)
	}
	sortTimers(active)
	return active
}

func sortTimers(timers []Timer) {
	slices.SortFunc(timers, func(a, b Timer) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
