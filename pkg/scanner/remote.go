package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCameraDenied is the acquisition failure reported by a browser that could
// not open its camera.
var ErrCameraDenied = errors.New("scanner: camera permission denied or no device")

// RemoteCamera stands in for a camera owned by the browser. The page acquires
// the device itself and reports the outcome when it opens the session.
type RemoteCamera struct {
	// Failure is the browser's error name (e.g. NotAllowedError). Empty means granted.
	Failure string
}

// Acquire returns a handle to the browser-side stream
func (c RemoteCamera) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Failure != "" {
		return nil, errors.Join(ErrCameraDenied, errors.New(c.Failure))
	}
	return &RemoteStream{}, nil
}

// RemoteStream records whether the page was told to stop its tracks
type RemoteStream struct {
	stopped atomic.Bool
}

// Stop marks the stream stopped
func (s *RemoteStream) Stop() { s.stopped.Store(true) }

// Stopped reports whether Stop was called
func (s *RemoteStream) Stopped() bool { return s.stopped.Load() }

// FeedDecoder is a Decoder whose frames are pushed in from outside, typically
// by the page posting each frame's decode result.
type FeedDecoder struct {
	buffer int

	mu      sync.Mutex
	frames  chan Frame
	running bool
}

// NewFeedDecoder creates a decoder buffering up to buffer frames
func NewFeedDecoder(buffer int) *FeedDecoder {
	if buffer <= 0 {
		buffer = 16
	}
	return &FeedDecoder{buffer: buffer}
}

// Start opens a new frame channel for the stream
func (d *FeedDecoder) Start(ctx context.Context, stream Stream, formats []Format) (<-chan Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frames = make(chan Frame, d.buffer)
	d.running = true
	return d.frames, nil
}

// Push offers one frame. It reports false when the decoder is not running.
// Frames beyond the buffer are dropped, as a live camera would.
func (d *FeedDecoder) Push(f Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return false
	}
	select {
	case d.frames <- f:
	default:
	}
	return true
}

// Reset stops accepting frames
func (d *FeedDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
}

// Running reports whether frames are currently accepted
func (d *FeedDecoder) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
