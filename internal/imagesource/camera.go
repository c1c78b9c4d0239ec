package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
)

// Captured frames are always drawn at this resolution
const (
	FrameWidth  = 640
	FrameHeight = 480
)

const captureQuality = 90

// Stream is a live camera feed held open by a Device
type Stream interface {
	// Frame returns the current live frame
	Frame() (image.Image, error)
	// Close releases the device
	Close() error
}

// Device is the camera/media subsystem
type Device interface {
	// Open claims the device and starts streaming
	Open(ctx context.Context) (Stream, error)
}

// CameraSession is an exclusive claim on a camera device. It must be stopped on
// every path that leaves the scan view.
type CameraSession struct {
	mu      sync.Mutex
	stream  Stream
	stopped bool
}

// StartCamera opens the device. Any failure is reported as ErrDeviceUnavailable.
func StartCamera(ctx context.Context, dev Device) (*CameraSession, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: no camera configured", ErrDeviceUnavailable)
	}

	stream, err := dev.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	return &CameraSession{stream: stream}, nil
}

// CaptureFrame draws the current frame at 640x480 and encodes it as JPEG
func (c *CameraSession) CaptureFrame() (*AcquiredImage, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no active camera session", ErrDeviceUnavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil, fmt.Errorf("%w: camera session stopped", ErrDeviceUnavailable)
	}

	frame, err := c.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: reading frame: %w", ErrDeviceUnavailable, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: captureQuality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	return &AcquiredImage{
		Name:     "capture.jpg",
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
	}, nil
}

// Stop releases the device. Safe to call repeatedly and on a nil session.
func (c *CameraSession) Stop() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true

	if err := c.stream.Close(); err != nil {
		slog.Warn("Failed to release camera", "error", err)
	}
}

// Active reports whether the session still holds the device
func (c *CameraSession) Active() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped
}
