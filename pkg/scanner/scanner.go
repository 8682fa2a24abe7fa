// Package scanner runs one barcode scan activation: it acquires a camera
// stream, feeds it to a decoder, and hands exactly one accepted code to the
// caller before releasing the camera.
//
// The camera and decoder are external collaborators. A Session guarantees
// that the stream is stopped and the decoder reset on every exit path
// (success, decode failure, camera failure, explicit Close), and that no
// result is delivered after Close returns: Close waits for a callback that
// is already running.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sangkips/popup-pos/pkg/apperror"
)

var (
	// ErrSymbolNotFound marks a frame with no readable symbol. It never halts scanning.
	ErrSymbolNotFound = errors.New("scanner: symbol not found in frame")
	// ErrDecoderStopped is reported when the decoder ends its frame stream without a result.
	ErrDecoderStopped = errors.New("scanner: decoder stopped")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = apperror.NewConflictError("scan session is closed")
)

// Format is a barcode symbology name
type Format string

const (
	FormatEAN13   Format = "ean_13"
	FormatEAN8    Format = "ean_8"
	FormatUPCA    Format = "upc_a"
	FormatUPCE    Format = "upc_e"
	FormatCode128 Format = "code_128"
	FormatCode39  Format = "code_39"
	FormatITF     Format = "itf"
	FormatQRCode  Format = "qr_code"
)

// ParseFormats converts configured names, ignoring blanks
func ParseFormats(names []string) []Format {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, Format(n))
		}
	}
	return out
}

// Policy decides what happens to the first decoded value
type Policy string

const (
	// PolicyConfirm holds the decoded value until the operator confirms, edits, or rescans.
	PolicyConfirm Policy = "confirm"
	// PolicyAuto delivers the first decoded value immediately.
	PolicyAuto Policy = "auto"
	// PolicyRestricted delivers immediately but only for the configured formats.
	PolicyRestricted Policy = "restricted"
)

// ParsePolicy validates a configured policy name
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyConfirm, PolicyAuto, PolicyRestricted:
		return p, nil
	case "":
		return PolicyConfirm, nil
	default:
		return "", fmt.Errorf("scanner: unknown policy %q (use confirm, auto, or restricted)", s)
	}
}

// State is a session's lifecycle position
type State string

const (
	StateIdle                 State = "idle"
	StateAcquiring            State = "acquiring"
	StateScanning             State = "scanning"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateDelivered            State = "delivered"
	StateFailed               State = "failed"
	StateCameraError          State = "camera_error"
	StateClosed               State = "closed"
)

// Stream is an acquired camera stream
type Stream interface {
	// Stop ends every track of the stream.
	Stop()
}

// Camera acquires an environment-facing video stream
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Frame is the decoder's verdict on one video frame
type Frame struct {
	Text   string
	Format Format
	Err    error
}

// Decoder turns a stream into per-frame results
type Decoder interface {
	// Start begins decoding. The channel is read until ctx is cancelled.
	Start(ctx context.Context, stream Stream, formats []Format) (<-chan Frame, error)
	// Reset stops decoding. It must be safe to call at any time, more than once.
	Reset()
}

// ResultFunc receives the single accepted code of an activation
type ResultFunc func(ctx context.Context, code string)

// Options configures a Session
type Options struct {
	Policy   Policy
	Formats  []Format
	OnResult ResultFunc

	// AfterResult runs once OnResult has returned. Close may be called from
	// it; calling Close from OnResult blocks forever.
	AfterResult func()
}

// Snapshot is a read-only view of a session
type Snapshot struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Policy    Policy    `json:"policy"`
	Pending   string    `json:"pending,omitempty"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is one scanner activation
type Session struct {
	id      string
	camera  Camera
	decoder Decoder
	opts    Options

	mu         sync.Mutex
	state      State
	pending    string
	code       string
	err        error
	accepted   bool // a frame was taken in the current scan run
	delivered  bool // OnResult has fired for this activation
	released   bool
	stream     Stream
	cancel     context.CancelFunc
	loopDone   chan struct{}
	delivering chan struct{} // closed when OnResult returns
	updatedAt  time.Time
}

// NewSession creates an idle session
func NewSession(id string, camera Camera, decoder Decoder, opts Options) *Session {
	if opts.Policy == "" {
		opts.Policy = PolicyConfirm
	}
	return &Session{
		id:        id,
		camera:    camera,
		decoder:   decoder,
		opts:      opts,
		state:     StateIdle,
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Open acquires the camera and starts decoding
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return invalidState("open", state)
	}
	s.setState(StateAcquiring)
	s.mu.Unlock()

	return s.acquire(ctx)
}

// Rescan discards a pending or failed result and starts a new scan run
// within the same activation.
func (s *Session) Rescan(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAwaitingConfirmation && s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return invalidState("rescan", state)
	}
	s.pending = ""
	s.err = nil
	s.setState(StateAcquiring)
	done := s.loopDone
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	return s.acquire(ctx)
}

// Confirm accepts the pending value, or code when the operator edited it.
func (s *Session) Confirm(ctx context.Context, code string) error {
	s.mu.Lock()
	if s.state != StateAwaitingConfirmation {
		state := s.state
		s.mu.Unlock()
		return invalidState("confirm", state)
	}
	if code = strings.TrimSpace(code); code == "" {
		code = s.pending
	}
	s.mu.Unlock()

	if !s.deliver(ctx, code, StateAwaitingConfirmation) {
		return apperror.NewConflictError("scan result already delivered")
	}
	return nil
}

// Close releases every acquired resource and waits for the decode loop and
// any running OnResult to finish. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.setState(StateClosed)
	s.release()
	done, delivering := s.loopDone, s.delivering
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if delivering != nil {
		<-delivering
	}
	return nil
}

// Snapshot returns the current view of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Policy:    s.opts.Policy,
		Pending:   s.pending,
		Code:      s.code,
		UpdatedAt: s.updatedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Touch records page activity, such as a pushed frame, without a state change
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// IdleSince reports whether the session has seen no activity since cutoff
func (s *Session) IdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt.Before(cutoff)
}

func (s *Session) acquire(ctx context.Context) error {
	stream, err := s.camera.Acquire(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		if stream != nil {
			stream.Stop()
		}
		return ErrClosed
	}
	if err != nil {
		s.err = apperror.NewResourceError("camera unavailable", err)
		s.setState(StateCameraError)
		return s.err
	}

	s.stream = stream
	s.released = false
	s.accepted = false

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	frames, err := s.decoder.Start(loopCtx, stream, s.opts.Formats)
	if err != nil {
		s.release()
		s.err = err
		s.setState(StateFailed)
		return err
	}

	done := make(chan struct{})
	s.loopDone = done
	s.setState(StateScanning)
	go s.loop(loopCtx, frames, done)
	return nil
}

func (s *Session) loop(ctx context.Context, frames <-chan Frame, done chan struct{}) {
	code := s.consume(ctx, frames)
	close(done)
	if code != "" {
		s.deliver(context.WithoutCancel(ctx), code, StateScanning)
	}
}

// consume reads frames until one is accepted, a terminal error arrives, or
// the session is torn down. Resources are always released on return.
func (s *Session) consume(ctx context.Context, frames <-chan Frame) string {
	defer func() {
		s.mu.Lock()
		s.release()
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ""
		case f, ok := <-frames:
			if !ok {
				s.fail(ErrDecoderStopped)
				return ""
			}
			if errors.Is(f.Err, ErrSymbolNotFound) {
				continue
			}
			if f.Err != nil {
				s.fail(f.Err)
				return ""
			}
			code := strings.TrimSpace(f.Text)
			if code == "" || !s.accepts(f.Format) {
				continue
			}
			return s.accept(code)
		}
	}
}

// accept applies the one-shot guard. It returns the code to deliver now,
// or "" when the policy defers delivery or another frame already won.
func (s *Session) accept(code string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accepted || s.state != StateScanning {
		return ""
	}
	s.accepted = true
	s.release()
	s.pending = code

	if s.opts.Policy == PolicyConfirm {
		s.setState(StateAwaitingConfirmation)
		return ""
	}
	return code
}

func (s *Session) deliver(ctx context.Context, code string, expect State) bool {
	s.mu.Lock()
	if s.delivered || s.state != expect {
		s.mu.Unlock()
		return false
	}
	s.delivered = true
	s.code = code
	s.pending = ""
	s.setState(StateDelivered)
	cb := s.opts.OnResult
	delivering := make(chan struct{})
	s.delivering = delivering
	s.mu.Unlock()

	if cb != nil {
		cb(ctx, code)
	}
	close(delivering)
	if s.opts.AfterResult != nil {
		s.opts.AfterResult()
	}
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning {
		s.err = err
		s.setState(StateFailed)
	}
}

func (s *Session) accepts(f Format) bool {
	if s.opts.Policy != PolicyRestricted {
		return true
	}
	for _, allowed := range s.opts.Formats {
		if allowed == f {
			return true
		}
	}
	return false
}

// release stops the stream and resets the decoder. Caller holds s.mu.
func (s *Session) release() {
	if s.released {
		return
	}
	s.released = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
	s.decoder.Reset()
}

func (s *Session) setState(st State) {
	s.state = st
	s.updatedAt = time.Now()
}

func invalidState(op string, st State) error {
	return apperror.NewConflictError(fmt.Sprintf("cannot %s scan session in state %s", op, st))
}
