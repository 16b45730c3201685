package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kozaktomas/clock-in/internal/constants"
)

// ValidatorHooks receive the results of a sampling run. Both are called from
// the sampling goroutine.
type ValidatorHooks struct {
	OnSignal func(FaceSignal)
	OnFatal  func(error)
}

// FaceValidator samples a video source on a fixed period and reduces each
// detector result to a FaceSignal. One run is active at a time.
type FaceValidator struct {
	detector FaceDetector
	clock    clockwork.Clock
	interval time.Duration
	opts     DetectOptions
	messages Messages
	logger   *slog.Logger

	mu     sync.Mutex
	signal FaceSignal
	active *samplingRun
}

type samplingRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFaceValidator creates a validator with the fixed sampling constants.
func NewFaceValidator(detector FaceDetector, clock clockwork.Clock, messages Messages, logger *slog.Logger) *FaceValidator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FaceValidator{
		detector: detector,
		clock:    clock,
		interval: constants.SamplingInterval,
		opts: DetectOptions{
			InputSize:      constants.DetectionInputSize,
			ScoreThreshold: constants.DetectionScoreThreshold,
		},
		messages: messages,
		logger:   logger,
		signal:   messages.signal(SignalModelLoading),
	}
}

// Start stops any previous run and begins sampling video. The returned
// function stops this run only; it is safe to call more than once.
func (v *FaceValidator) Start(video VideoSource, hooks ValidatorHooks) (stop func()) {
	if hooks.OnSignal == nil {
		hooks.OnSignal = func(FaceSignal) {}
	}
	if hooks.OnFatal == nil {
		hooks.OnFatal = func(error) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &samplingRun{cancel: cancel, done: make(chan struct{})}

	v.mu.Lock()
	prev := v.active
	v.active = run
	v.signal = v.messages.signal(SignalModelLoading)
	v.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	go v.run(ctx, run, video, hooks)

	return run.cancel
}

// Stop cancels the latest run. It is a no-op when nothing was started or the
// run already ended.
func (v *FaceValidator) Stop() {
	v.mu.Lock()
	run := v.active
	v.mu.Unlock()
	if run != nil {
		run.cancel()
	}
}

// Done returns a channel closed once the latest run's goroutine has exited.
// When nothing was started the channel is already closed.
func (v *FaceValidator) Done() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return v.active.done
}

// Signal returns the most recent signal.
func (v *FaceValidator) Signal() FaceSignal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.signal
}

func (v *FaceValidator) run(ctx context.Context, run *samplingRun, video VideoSource, hooks ValidatorHooks) {
	defer close(run.done)

	v.publish(ctx, hooks, v.messages.signal(SignalModelLoading))

	if err := v.detector.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		v.logger.Error("face detection model failed to load", "error", err)
		hooks.OnFatal(fmt.Errorf("%w: %w", ErrModelLoad, err))
		return
	}

	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// Both cases can be ready at once; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			if fatal := v.sample(ctx, video, hooks); fatal {
				return
			}
		}
	}
}

// sample runs one detection. The loop blocks on it, so a new sample never
// starts while one is outstanding. Returns true when sampling must end.
func (v *FaceValidator) sample(ctx context.Context, video VideoSource, hooks ValidatorHooks) bool {
	frame, err := video.ReadFrame(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoFrame):
		return false
	case isBlocking(err):
		if ctx.Err() == nil {
			hooks.OnFatal(err)
		}
		return true
	default:
		if ctx.Err() == nil {
			v.logger.Warn("reading camera frame failed", "error", err)
		}
		return false
	}

	boxes, err := v.detector.Detect(ctx, frame, v.opts)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// A failed sample must not leave a stale valid signal behind.
		v.logger.Warn("face detection failed", "error", err)
		v.publish(ctx, hooks, v.messages.signal(SignalNoFace))
		return false
	}

	v.publish(ctx, hooks, v.messages.SignalForCount(countFaces(boxes, v.opts.ScoreThreshold)))
	return false
}

func (v *FaceValidator) publish(ctx context.Context, hooks ValidatorHooks, sig FaceSignal) {
	v.mu.Lock()
	if ctx.Err() != nil {
		v.mu.Unlock()
		return
	}
	v.signal = sig
	v.mu.Unlock()
	hooks.OnSignal(sig)
}

func countFaces(boxes []FaceBox, threshold float64) int {
	n := 0
	for _, b := range boxes {
		if b.Score >= threshold {
			n++
		}
	}
	return n
}
