package facedetect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

const loadTimeout = time.Minute

// Shared is the process-wide detector. The model is loaded at most once; a
// failed load is not remembered so the next session can try again.
type Shared struct {
	detector capture.FaceDetector
	logger   *slog.Logger

	mu      sync.Mutex
	ready   bool
	attempt *loadAttempt
}

// loadAttempt is one in-flight model load. err is set before done is closed.
type loadAttempt struct {
	done chan struct{}
	err  error
}

// NewShared wraps detector for use by every capture session.
func NewShared(detector capture.FaceDetector, logger *slog.Logger) *Shared {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shared{detector: detector, logger: logger}
}

// Load blocks until the model is ready or ctx ends. Concurrent callers share
// one attempt, which keeps running when the caller that started it gives up.
func (s *Shared) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	attempt := s.attempt
	if attempt == nil {
		attempt = &loadAttempt{done: make(chan struct{})}
		s.attempt = attempt
		go s.load(context.WithoutCancel(ctx), attempt)
	}
	s.mu.Unlock()

	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Shared) load(ctx context.Context, attempt *loadAttempt) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	err := s.detector.Load(ctx)
	if err != nil {
		s.logger.Error("face detector load failed", "error", err)
	} else {
		s.logger.Info("face detector ready")
	}

	attempt.err = err
	s.mu.Lock()
	s.ready = err == nil
	s.attempt = nil
	s.mu.Unlock()
	close(attempt.done)
}

// Ready reports whether the model has been loaded.
func (s *Shared) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Detect runs detection on the shared model.
func (s *Shared) Detect(ctx context.Context, frame []byte, opts capture.DetectOptions) ([]capture.FaceBox, error) {
	return s.detector.Detect(ctx, frame, opts)
}
