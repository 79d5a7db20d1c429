package frames

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultInterval = 500 * time.Millisecond

type SamplerOption func(*Sampler)

func WithCapacity(capacity int) SamplerOption {
	return func(s *Sampler) {
		s.buffer = NewBuffer(capacity)
	}
}

func WithInterval(interval time.Duration) SamplerOption {
	return func(s *Sampler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithEncoder(encoder Encoder) SamplerOption {
	return func(s *Sampler) {
		s.encoder = encoder
	}
}

// Sampler captures frames from a Source at a fixed cadence while the camera is
// active and keeps the most recent ones in a Buffer.
type Sampler struct {
	source   Source
	buffer   *Buffer
	encoder  Encoder
	interval time.Duration

	active atomic.Bool
	// sessionMu orders buffer pushes against camera toggles. session counts
	// activations so a capture started in one camera session is never
	// buffered in the next.
	sessionMu sync.Mutex
	session   uint64
	// lastCaptured is the source timestamp of the newest captured frame, used
	// to skip ticks where the stream produced nothing new.
	lastCaptured atomic.Int64
	captureMu    sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once
	closeCh   chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

func NewSampler(source Source, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		source:   source,
		buffer:   NewBuffer(DefaultCapacity),
		encoder:  NewEncoder(),
		interval: DefaultInterval,
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the capture loop until ctx is done or Stop is called.
func (s *Sampler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go func() {
			defer close(s.done)

			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-s.closeCh:
					return
				case <-ticker.C:
					if !s.active.Load() {
						continue
					}
					if _, err := s.CaptureNow(ctx); err != nil {
						logger.Debug("frame capture skipped", "error", err)
					}
				}
			}
		}()
	})
}

func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		close(s.closeCh)
	})
	if s.started.Load() {
		<-s.done
	}
}

// SetActive toggles capturing. Deactivating clears the buffer so a later
// camera session never sees frames from an earlier one.
func (s *Sampler) SetActive(active bool) {
	s.sessionMu.Lock()
	if s.active.Swap(active) == active {
		s.sessionMu.Unlock()
		return
	}
	if active {
		s.session++
	} else {
		s.buffer.Clear()
		s.lastCaptured.Store(0)
	}
	s.sessionMu.Unlock()
	logger.Info("camera state changed", "active", active)
}

func (s *Sampler) Active() bool {
	return s.active.Load()
}

var (
	errNoNewFrame    = fmt.Errorf("no new frame from source")
	errCameraToggled = fmt.Errorf("camera toggled during capture")
)

// CaptureNow encodes the current source frame into the buffer. Encoding
// happens outside the buffer lock, so readers never wait on it.
func (s *Sampler) CaptureNow(ctx context.Context) (Frame, error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if s.source == nil {
		return Frame{}, fmt.Errorf("no video source")
	}
	s.sessionMu.Lock()
	session := s.session
	s.sessionMu.Unlock()

	img, at, ok := s.source.Latest()
	if !ok {
		return Frame{}, errNoNewFrame
	}
	if at.UnixNano() == s.lastCaptured.Load() {
		return Frame{}, errNoNewFrame
	}

	_, span := tracer.Start(ctx, "capture frame")
	defer span.End()

	frame, err := s.encoder.Encode(img)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Frame{}, fmt.Errorf("failed to capture frame: %w", err)
	}
	frame.CapturedAt = at
	span.SetAttributes(attribute.Int("frame.bytes", len(frame.Data)))

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if !s.active.Load() || s.session != session {
		return Frame{}, errCameraToggled
	}
	s.buffer.Push(frame)
	s.lastCaptured.Store(at.UnixNano())
	return frame, nil
}

// Select returns the newest available frame when the camera is active.
func (s *Sampler) Select() (Frame, bool) {
	if !s.active.Load() {
		return Frame{}, false
	}
	return s.buffer.Latest()
}
