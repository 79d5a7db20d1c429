package events

import "time"

const (
	// KindPersonaChanged identifies a committed persona handoff.
	KindPersonaChanged Kind = "session.persona_changed"
	// KindCameraRequested identifies the start of a camera session.
	KindCameraRequested Kind = "session.camera_requested"
	// KindCameraReleased identifies the end of a camera session.
	KindCameraReleased Kind = "session.camera_released"
	// KindFrameAttached identifies a sampled frame attached to a user turn.
	KindFrameAttached Kind = "session.frame_attached"
	// KindTimerStarted identifies a started kitchen timer.
	KindTimerStarted Kind = "session.timer_started"
	// KindTimerFinished identifies a kitchen timer that ran out.
	KindTimerFinished Kind = "session.timer_finished"
	// KindContextCompacted identifies a finished compaction attempt.
	KindContextCompacted Kind = "session.context_compacted"
)

type PersonaChanged struct {
	Base
	From    string
	To      string
	Trigger string
}

func NewPersonaChanged(from, to, trigger string) PersonaChanged {
	return PersonaChanged{Base: NewBase(KindPersonaChanged), From: from, To: to, Trigger: trigger}
}

type CameraRequested struct {
	Base
	Reason string
}

func NewCameraRequested(reason string) CameraRequested {
	return CameraRequested{Base: NewBase(KindCameraRequested), Reason: reason}
}

type CameraReleased struct{ Base }

func NewCameraReleased() CameraReleased {
	return CameraReleased{Base: NewBase(KindCameraReleased)}
}

type FrameAttached struct {
	Base
	TurnSeq    uint64
	CapturedAt time.Time
}

func NewFrameAttached(turnSeq uint64, capturedAt time.Time) FrameAttached {
	return FrameAttached{Base: NewBase(KindFrameAttached), TurnSeq: turnSeq, CapturedAt: capturedAt}
}

type TimerStarted struct {
	Base
	ID       string
	Label    string
	Duration time.Duration
}

func NewTimerStarted(id, label string, duration time.Duration) TimerStarted {
	return TimerStarted{Base: NewBase(KindTimerStarted), ID: id, Label: label, Duration: duration}
}

type TimerFinished struct {
	Base
	ID    string
	Label string
}

func NewTimerFinished(id, label string) TimerFinished {
	return TimerFinished{Base: NewBase(KindTimerFinished), ID: id, Label: label}
}

// ContextCompacted reports a background compaction. Applied is false when
// the result was discarded because the window changed underneath it.
type ContextCompacted struct {
	Base
	From    uint64
	To      uint64
	Applied bool
}

func NewContextCompacted(from, to uint64, applied bool) ContextCompacted {
	return ContextCompacted{Base: NewBase(KindContextCompacted), From: from, To: to, Applied: applied}
}
