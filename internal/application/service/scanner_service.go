package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sangkips/popup-pos/internal/config"
	"github.com/sangkips/popup-pos/internal/metrics"
	"github.com/sangkips/popup-pos/pkg/apperror"
	"github.com/sangkips/popup-pos/pkg/scanner"
)

// frameBuffer is how many pushed frames a session holds before dropping.
const frameBuffer = 16

type scanEntry struct {
	session *scanner.Session
	decoder *scanner.FeedDecoder
}

// ScannerService keeps the live scan sessions driven by browser pages
type ScannerService struct {
	policy  scanner.Policy
	formats []scanner.Format
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*scanEntry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewScannerService creates the registry and starts the idle sweep when ttl > 0
func NewScannerService(cfg *config.ScannerConfig, logger *slog.Logger) (*ScannerService, error) {
	policy, err := scanner.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	s := &ScannerService{
		policy:   policy,
		formats:  scanner.ParseFormats(cfg.Formats),
		ttl:      cfg.SessionTTL,
		logger:   logger,
		sessions: make(map[string]*scanEntry),
		stop:     make(chan struct{}),
	}
	if s.ttl > 0 {
		go s.cleanupLoop()
	}
	return s, nil
}

// Policy returns the configured acceptance policy
func (s *ScannerService) Policy() scanner.Policy {
	return s.policy
}

// Open starts scan session id. cameraFailure is the browser's acquisition
// error name; when set the session ends in camera_error and the returned
// error is a resource error. The session stays registered until Close, or
// until onResult has returned for a delivered code.
func (s *ScannerService) Open(ctx context.Context, id, cameraFailure string, onResult scanner.ResultFunc) (scanner.Snapshot, error) {
	decoder := scanner.NewFeedDecoder(frameBuffer)
	session := scanner.NewSession(id, scanner.RemoteCamera{Failure: cameraFailure}, decoder, scanner.Options{
		Policy:      s.policy,
		Formats:     s.formats,
		OnResult:    onResult,
		AfterResult: func() { _ = s.Close(id) },
	})

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return scanner.Snapshot{}, apperror.NewConflictError("scan session already exists")
	}
	s.sessions[id] = &scanEntry{session: session, decoder: decoder}
	s.mu.Unlock()
	metrics.ActiveScanSessions.Inc()

	err := session.Open(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "scan session failed to open", "scan_id", id, "error", err)
	} else {
		s.logger.DebugContext(ctx, "scan session opened", "scan_id", id, "policy", s.policy)
	}
	return session.Snapshot(), err
}

// Get returns the current view of a session
func (s *ScannerService) Get(id string) (scanner.Snapshot, error) {
	entry, err := s.entry(id)
	if err != nil {
		return scanner.Snapshot{}, err
	}
	return entry.session.Snapshot(), nil
}

// PushFrame hands one decoded frame to the session. Every accepted frame,
// including one with no symbol, keeps the session alive for the idle sweep.
func (s *ScannerService) PushFrame(id string, frame scanner.Frame) (scanner.Snapshot, error) {
	entry, err := s.entry(id)
	if err != nil {
		return scanner.Snapshot{}, err
	}
	if !entry.decoder.Push(frame) {
		return entry.session.Snapshot(), apperror.NewConflictError("scan session is not accepting frames")
	}
	entry.session.Touch()
	return entry.session.Snapshot(), nil
}

// Confirm accepts the pending value, or code when the operator edited it
func (s *ScannerService) Confirm(ctx context.Context, id, code string) (scanner.Snapshot, error) {
	entry, err := s.entry(id)
	if err != nil {
		return scanner.Snapshot{}, err
	}
	if err := entry.session.Confirm(ctx, code); err != nil {
		return entry.session.Snapshot(), err
	}
	return entry.session.Snapshot(), nil
}

// Rescan discards a pending or failed result and scans again
func (s *ScannerService) Rescan(ctx context.Context, id string) (scanner.Snapshot, error) {
	entry, err := s.entry(id)
	if err != nil {
		return scanner.Snapshot{}, err
	}
	if err := entry.session.Rescan(ctx); err != nil {
		return entry.session.Snapshot(), err
	}
	return entry.session.Snapshot(), nil
}

// Close tears the session down and forgets it. Unknown ids are ignored.
func (s *ScannerService) Close(id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.finish(id, entry)
	return nil
}

// Shutdown stops the sweep and closes every session
func (s *ScannerService) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*scanEntry)
	s.mu.Unlock()

	for id, entry := range entries {
		s.finish(id, entry)
	}
}

// Len returns the number of registered sessions
func (s *ScannerService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *ScannerService) entry(id string) (*scanEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, apperror.NewNotFoundError("Scan session")
	}
	return entry, nil
}

func (s *ScannerService) finish(id string, entry *scanEntry) {
	final := entry.session.State()
	_ = entry.session.Close()
	metrics.ScanSessions.WithLabelValues(string(final)).Inc()
	metrics.ActiveScanSessions.Dec()
	s.logger.Debug("scan session closed", "scan_id", id, "final_state", final)
}

// cleanupLoop closes sessions abandoned by their page
func (s *ScannerService) cleanupLoop() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-s.ttl))
		}
	}
}

func (s *ScannerService) sweep(cutoff time.Time) int {
	s.mu.Lock()
	stale := make(map[string]*scanEntry)
	for id, entry := range s.sessions {
		if entry.session.IdleSince(cutoff) {
			stale[id] = entry
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for id, entry := range stale {
		s.finish(id, entry)
	}
	if len(stale) > 0 {
		s.logger.Info("closed idle scan sessions", "count", len(stale))
	}
	return len(stale)
}
