package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"sync"
)

// ErrNoFrame is returned when a stream has not received any frame yet
var ErrNoFrame = errors.New("no frame received yet")

// FeedDevice is a camera whose frames are pushed in from the view, which owns the
// actual media stream. Only one stream may hold the device at a time.
type FeedDevice struct {
	mu        sync.Mutex
	available bool
	claimed   *feedStream
	latest    image.Image
}

// NewFeedDevice creates a FeedDevice. available reflects whether camera permission was granted.
func NewFeedDevice(available bool) *FeedDevice {
	return &FeedDevice{available: available}
}

// SetAvailable records a permission change reported by the view
func (d *FeedDevice) SetAvailable(available bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.available = available
}

// Open claims the device
func (d *FeedDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.available {
		return nil, fmt.Errorf("%w: permission denied", ErrDeviceUnavailable)
	}
	if d.claimed != nil {
		return nil, fmt.Errorf("%w: camera already in use", ErrDeviceUnavailable)
	}

	d.latest = nil
	d.claimed = &feedStream{device: d}
	return d.claimed, nil
}

// Push replaces the live frame. Frames pushed while nothing holds the device are dropped.
func (d *FeedDevice) Push(frame image.Image) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.claimed == nil {
		return false
	}
	d.latest = frame
	return true
}

// PushEncoded decodes a JPEG or PNG frame and pushes it
func (d *FeedDevice) PushEncoded(data []byte) (bool, error) {
	frame, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decoding frame: %w", err)
	}
	return d.Push(frame), nil
}

// Claimed reports whether a stream currently holds the device
func (d *FeedDevice) Claimed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claimed != nil
}

type feedStream struct {
	device *FeedDevice
	closed bool
}

func (s *feedStream) Frame() (image.Image, error) {
	d := s.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("stream closed")
	}
	if d.latest == nil {
		return nil, ErrNoFrame
	}
	return d.latest, nil
}

func (s *feedStream) Close() error {
	d := s.device
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if d.claimed == s {
		d.claimed = nil
		d.latest = nil
	}
	return nil
}
