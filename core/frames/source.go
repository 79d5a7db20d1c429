package frames

import (
	"image"
	"sync"
	"time"
)

// Source exposes the most recent decoded frame of a live video stream.
type Source interface {
	Latest() (image.Image, time.Time, bool)
}

// Feed is a Source that keeps only the newest published image. Transports
// publish every received video frame into it.
type Feed struct {
	mu  sync.RWMutex
	img image.Image
	at  time.Time
	now func() time.Time
}

func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

func (f *Feed) Publish(img image.Image) {
	f.PublishAt(img, f.now())
}

func (f *Feed) PublishAt(img image.Image, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.img, f.at = img, at
}

func (f *Feed) Latest() (image.Image, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.img, f.at, f.img != nil
}

// Reset forgets the current image, e.g. when the video track goes away.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.img, f.at = nil, time.Time{}
}
