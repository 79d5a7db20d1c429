package frames

import (
	"slices"
	"sync"
	"time"
)

const DefaultCapacity = 3

// Frame is an encoded still captured from the video source.
type Frame struct {
	Data       []byte
	MediaType  string
	Width      int
	Height     int
	CapturedAt time.Time
}

func (f Frame) Clone() Frame {
	clone := f
	clone.Data = slices.Clone(f.Data)
	return clone
}

// Buffer is a fixed-capacity ring of the most recently captured frames.
// Pushing into a full buffer evicts the oldest frame.
type Buffer struct {
	mu     sync.RWMutex
	frames []Frame
	// start is the index of the oldest frame.
	start int
	size  int
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{frames: make([]Frame, capacity)}
}

// Push inserts frame as the newest entry. It returns the evicted frame, if
// any.
func (b *Buffer) Push(frame Frame) (evicted Frame, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.frames)
	if b.size == capacity {
		evicted, ok = b.frames[b.start], true
		b.frames[b.start] = frame
		b.start = (b.start + 1) % capacity
		return evicted, ok
	}

	b.frames[(b.start+b.size)%capacity] = frame
	b.size++
	return Frame{}, false
}

// Latest returns the newest frame without waiting for captures in progress.
func (b *Buffer) Latest() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return Frame{}, false
	}
	return b.frames[(b.start+b.size-1)%len(b.frames)].Clone(), true
}

// Snapshot returns a copy of the buffered frames, oldest first.
func (b *Buffer) Snapshot() []Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := make([]Frame, 0, b.size)
	for i := range b.size {
		snapshot = append(snapshot, b.frames[(b.start+i)%len(b.frames)].Clone())
	}
	return snapshot
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.frames)
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.frames)
	b.start, b.size = 0, 0
}
