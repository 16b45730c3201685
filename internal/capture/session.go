package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Options wires a Session to its collaborators. Detector, Client and IP are
// required; GPS may be nil when the device has no GPS.
type Options struct {
	Detector FaceDetector
	GPS      PositionProvider
	IP       IPLocator
	Client   AttendanceClient
	Notifier Notifier
	Messages *Messages
	Clock    clockwork.Clock
	Logger   *slog.Logger

	// OnChange receives a snapshot after every state change. Snapshots can
	// arrive out of order; Seq orders them.
	OnChange func(Snapshot)
	// OnClose receives the outcome of every session lifetime.
	OnClose func(Outcome)
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	Seq          uint64       `json:"seq"`
	ID           string       `json:"id,omitempty"`
	Kind         Kind         `json:"type,omitempty"`
	Title        string       `json:"title,omitempty"`
	Phase        Phase        `json:"phase"`
	HasImage     bool         `json:"has_image"`
	Position     *GeoPosition `json:"position,omitempty"`
	FaceSignal   FaceSignal   `json:"face_signal"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Locating     bool         `json:"locating"`
	CanCapture   bool         `json:"can_capture"`
	CanSubmit    bool         `json:"can_submit"`
	// RequiresMapConfirmation is set while the position is a manual pin the
	// user has to check on the map before confirming.
	RequiresMapConfirmation bool   `json:"requires_map_confirmation"`
	MapHint                 string `json:"map_hint,omitempty"`
	// Hint names the action that unblocks the session.
	Hint string `json:"hint,omitempty"`
}

// OutcomeResult tells how a session lifetime ended.
type OutcomeResult string

const (
	OutcomeSubmitted OutcomeResult = "submitted"
	OutcomeCancelled OutcomeResult = "cancelled"
)

// Outcome summarises one session lifetime, reported on close.
type Outcome struct {
	SessionID string            `json:"session_id"`
	Kind      Kind              `json:"type"`
	Result    OutcomeResult     `json:"result"`
	Phase     Phase             `json:"phase"` // phase the session closed from
	Position  *GeoPosition      `json:"position,omitempty"`
	Record    *AttendanceRecord `json:"record,omitempty"`
	Error     string            `json:"error,omitempty"`
	OpenedAt  time.Time         `json:"opened_at"`
	ClosedAt  time.Time         `json:"closed_at"`
}

// Session is the capture state machine. Transitions are its only mutation
// path; every asynchronous result is tagged with the generation it was
// started in and dropped when the session has moved on.
type Session struct {
	validator *FaceValidator
	locator   *LocationAcquirer
	pipeline  *SubmissionPipeline
	messages  Messages
	clock     clockwork.Clock
	logger    *slog.Logger
	onChange  func(Snapshot)
	onClose   func(Outcome)

	mu           sync.Mutex
	seq          uint64
	gen          uint64
	id           string
	kind         Kind
	phase        Phase
	video        VideoSource
	image        []byte
	position     *GeoPosition
	signal       FaceSignal
	errMsg       string
	blocking     error
	locating     bool
	cancelTask   context.CancelFunc
	stopSampling func()
	openedAt     time.Time
}

// NewSession creates a closed session. Call Open to start capturing.
func NewSession(opts Options) (*Session, error) {
	if opts.Detector == nil {
		return nil, errors.New("face detector is required")
	}
	if opts.Client == nil {
		return nil, errors.New("attendance client is required")
	}
	messages := DefaultMessages()
	if opts.Messages != nil {
		messages = *opts.Messages
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	return &Session{
		validator: NewFaceValidator(opts.Detector, opts.Clock, messages, opts.Logger),
		locator:   NewLocationAcquirer(opts.GPS, opts.IP, opts.Notifier, messages, opts.Clock, opts.Logger),
		pipeline:  NewSubmissionPipeline(opts.Client, opts.Notifier, opts.Logger),
		messages:  messages,
		clock:     opts.Clock,
		logger:    opts.Logger,
		onChange:  opts.OnChange,
		onClose:   opts.OnClose,
		phase:     PhaseClosed,
		signal:    messages.signal(SignalModelLoading),
	}, nil
}

// Open starts a fresh session lifetime in Scanning. The session owns video
// until it closes.
func (s *Session) Open(kind Kind, video VideoSource) error {
	if video == nil {
		return errors.New("video source is required")
	}
	s.mu.Lock()
	if s.phase != PhaseClosed {
		s.mu.Unlock()
		return ErrSessionOpen
	}
	s.resetLocked()
	s.gen++
	s.id = uuid.NewString()
	s.kind = kind
	s.phase = PhaseScanning
	s.video = video
	s.openedAt = s.clock.Now()
	g := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("capture session opened", "session", snap.ID, "type", kind)
	s.emit(snap)
	s.startSampling(g, video)
	return nil
}

// Capture freezes the current frame and starts location resolution.
func (s *Session) Capture(ctx context.Context) error {
	s.mu.Lock()
	if !s.canCaptureLocked() {
		s.mu.Unlock()
		return ErrCaptureNotAllowed
	}
	video, g := s.video, s.gen
	s.mu.Unlock()

	frame, err := video.ReadFrame(ctx)
	if err != nil {
		if isBlocking(err) {
			s.ReportCameraError(err)
		}
		return fmt.Errorf("capturing frame: %w", err)
	}

	s.mu.Lock()
	if s.gen != g || !s.canCaptureLocked() {
		s.mu.Unlock()
		return ErrCaptureNotAllowed
	}
	s.image = append([]byte(nil), frame...)
	s.position = nil
	s.errMsg = ""
	s.phase = PhasePreviewing
	stop := s.stopSampling
	s.stopSampling = nil
	locCtx := s.beginLocatingLocked()
	g = s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.logger.Info("frame captured", "session", snap.ID, "bytes", len(frame))
	s.emit(snap)
	go s.resolveLocation(locCtx, g)
	return nil
}

// Retake discards the captured frame and position and resumes sampling.
func (s *Session) Retake() error {
	s.mu.Lock()
	if s.phase != PhasePreviewing {
		s.mu.Unlock()
		return fmt.Errorf("retake in phase %s: %w", s.phase, ErrCaptureNotAllowed)
	}
	cancel := s.cancelTask
	s.cancelTask = nil
	s.gen++
	s.image = nil
	s.position = nil
	s.errMsg = ""
	s.locating = false
	s.phase = PhaseScanning
	s.signal = s.messages.signal(SignalModelLoading)
	video, g := s.video, s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.emit(snap)
	s.startSampling(g, video)
	return nil
}

// MoveMarker applies a map drag to a manual position.
func (s *Session) MoveMarker(lat, lng float64) error {
	s.mu.Lock()
	if s.phase != PhasePreviewing || s.position == nil {
		s.mu.Unlock()
		return ErrNotManualPosition
	}
	pos, err := s.locator.ApplyManualCorrection(*s.position, lat, lng)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.position = &pos
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	return nil
}

// RetryLocation restarts position resolution from GPS after it failed.
func (s *Session) RetryLocation() error {
	s.mu.Lock()
	if s.phase != PhasePreviewing || s.position != nil || s.locating {
		s.mu.Unlock()
		return ErrRetryNotAllowed
	}
	s.errMsg = ""
	locCtx := s.beginLocatingLocked()
	g := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	go s.resolveLocation(locCtx, g)
	return nil
}

// Submit sends the captured attendance and blocks until the backend answers.
// Success closes the session; failure returns it to Previewing.
func (s *Session) Submit(ctx context.Context) (*AttendanceRecord, error) {
	s.mu.Lock()
	if s.phase == PhaseSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if !s.canSubmitLocked() {
		s.mu.Unlock()
		return nil, ErrSubmitNotAllowed
	}
	sub, err := NewSubmission(s.image, s.position)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	s.cancelTask = cancel
	s.phase = PhaseSubmitting
	s.errMsg = ""
	g := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	record, err := s.pipeline.Submit(subCtx, sub)
	cancel()

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.cancelTask = nil
	if err != nil {
		s.phase = PhasePreviewing
		s.errMsg = submissionMessage(err)
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snap)
		return nil, err
	}

	outcome := s.outcomeLocked(OutcomeSubmitted, record)
	release := s.closeLocked()
	snap = s.snapshotLocked()
	s.mu.Unlock()

	release()
	s.logger.Info("attendance submitted", "session", outcome.SessionID, "type", outcome.Kind, "provenance", outcome.Position.Provenance)
	s.emit(snap)
	s.reportClose(outcome)
	return record, nil
}

// Cancel closes the session from any phase. In-flight location and
// submission work is abandoned. Cancelling a closed session is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	outcome := s.outcomeLocked(OutcomeCancelled, nil)
	release := s.closeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	release()
	s.logger.Info("capture session cancelled", "session", outcome.SessionID, "phase", outcome.Phase)
	s.emit(snap)
	s.reportClose(outcome)
}

// ReportCameraError records a camera failure. Permission and missing-camera
// errors block capture for the rest of the session.
func (s *Session) ReportCameraError(err error) {
	if !errors.Is(err, ErrCameraPermissionDenied) && !errors.Is(err, ErrNoCamera) {
		s.logger.Warn("ignoring non-blocking camera error", "error", err)
		return
	}
	s.mu.Lock()
	if s.phase != PhaseScanning {
		s.mu.Unlock()
		return
	}
	stop := s.setBlockingLocked(err)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.emit(snap)
}

// CanCapture reports whether Capture would be accepted now.
func (s *Session) CanCapture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canCaptureLocked()
}

// CanSubmit reports whether Submit would be accepted now.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Image returns a copy of the captured frame, or nil before capture.
func (s *Session) Image() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return nil
	}
	return append([]byte(nil), s.image...)
}

// SamplingDone is closed once the latest sampling goroutine has exited.
func (s *Session) SamplingDone() <-chan struct{} {
	return s.validator.Done()
}

func (s *Session) canCaptureLocked() bool {
	return s.phase == PhaseScanning && s.signal.Valid() && s.blocking == nil
}

func (s *Session) canSubmitLocked() bool {
	return s.phase == PhasePreviewing && len(s.image) > 0 && s.position != nil
}

func (s *Session) startSampling(g uint64, video VideoSource) {
	stop := s.validator.Start(video, ValidatorHooks{
		OnSignal: func(sig FaceSignal) { s.onSignal(g, sig) },
		OnFatal:  func(err error) { s.onFatal(g, err) },
	})

	s.mu.Lock()
	if s.gen != g || s.phase != PhaseScanning {
		s.mu.Unlock()
		stop()
		return
	}
	s.stopSampling = stop
	s.mu.Unlock()
}

func (s *Session) onSignal(g uint64, sig FaceSignal) {
	s.mu.Lock()
	if s.gen != g || s.phase != PhaseScanning || s.signal == sig {
		s.mu.Unlock()
		return
	}
	s.signal = sig
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Session) onFatal(g uint64, err error) {
	s.mu.Lock()
	if s.gen != g || s.phase != PhaseScanning {
		s.mu.Unlock()
		return
	}
	stop := s.setBlockingLocked(err)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.emit(snap)
}

func (s *Session) setBlockingLocked(err error) (stop func()) {
	s.blocking = err
	s.errMsg = s.blockingMessage(err)
	stop = s.stopSampling
	s.stopSampling = nil
	return stop
}

// beginLocatingLocked invalidates any earlier resolution and returns the
// context for a new one.
func (s *Session) beginLocatingLocked() context.Context {
	if s.cancelTask != nil {
		s.cancelTask()
	}
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTask = cancel
	s.locating = true
	return ctx
}

func (s *Session) resolveLocation(ctx context.Context, g uint64) {
	pos, err := s.locator.Resolve(ctx)

	s.mu.Lock()
	if s.gen != g || s.phase != PhasePreviewing {
		s.mu.Unlock()
		return
	}
	cancel := s.cancelTask
	s.locating = false
	s.cancelTask = nil
	switch {
	case err != nil:
		s.errMsg = s.messages.Location.Unavailable
	case s.position != nil && s.position.Provenance == ProvenanceManual:
		// Keep the user's correction.
	default:
		s.position = &pos
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err != nil {
		s.logger.Warn("location unavailable", "session", snap.ID, "error", err)
	}
	s.emit(snap)
}

// closeLocked resets the session to Closed and returns the function that
// releases what the lifetime owned. Call it after unlocking.
func (s *Session) closeLocked() (release func()) {
	cancel := s.cancelTask
	stop := s.stopSampling
	video := s.video
	id := s.id
	s.gen++
	s.resetLocked()

	return func() {
		if cancel != nil {
			cancel()
		}
		if stop != nil {
			stop()
		}
		if video != nil {
			if err := video.Close(); err != nil {
				s.logger.Warn("closing video source", "session", id, "error", err)
			}
		}
	}
}

func (s *Session) resetLocked() {
	s.id = ""
	s.phase = PhaseClosed
	s.video = nil
	s.image = nil
	s.position = nil
	s.signal = s.messages.signal(SignalModelLoading)
	s.errMsg = ""
	s.blocking = nil
	s.locating = false
	s.cancelTask = nil
	s.stopSampling = nil
	s.openedAt = time.Time{}
}

func (s *Session) outcomeLocked(result OutcomeResult, record *AttendanceRecord) Outcome {
	o := Outcome{
		SessionID: s.id,
		Kind:      s.kind,
		Result:    result,
		Phase:     s.phase,
		Record:    record,
		Error:     s.errMsg,
		OpenedAt:  s.openedAt,
		ClosedAt:  s.clock.Now(),
	}
	if s.position != nil {
		pos := *s.position
		o.Position = &pos
	}
	return o
}

func (s *Session) snapshotLocked() Snapshot {
	s.seq++
	snap := Snapshot{
		Seq:          s.seq,
		ID:           s.id,
		Phase:        s.phase,
		HasImage:     len(s.image) > 0,
		FaceSignal:   s.signal,
		ErrorMessage: s.errMsg,
		Locating:     s.locating,
		CanCapture:   s.canCaptureLocked(),
		CanSubmit:    s.canSubmitLocked(),
		Hint:         s.hintLocked(),
	}
	if s.phase != PhaseClosed {
		snap.Kind = s.kind
		snap.Title = s.kind.Title()
	}
	if s.position != nil {
		pos := *s.position
		snap.Position = &pos
		if pos.Provenance == ProvenanceManual {
			snap.RequiresMapConfirmation = true
			snap.MapHint = s.messages.Location.ManualHint
		}
	}
	return snap
}

func (s *Session) hintLocked() string {
	h := s.messages.Hints
	switch {
	case errors.Is(s.blocking, ErrCameraPermissionDenied):
		return h.EnableCamera
	case errors.Is(s.blocking, ErrNoCamera):
		return h.ConnectCamera
	case errors.Is(s.blocking, ErrModelLoad):
		return h.ReloadModel
	}

	switch s.phase {
	case PhaseScanning:
		switch s.signal.Kind {
		case SignalModelLoading:
			return h.WaitModel
		case SignalNoFace, SignalMultipleFaces:
			return h.Reposition
		}
	case PhasePreviewing:
		switch {
		case s.locating:
			return h.WaitLocation
		case s.position == nil:
			return h.RetryLocation
		case s.errMsg != "":
			return h.RetrySubmit
		case s.position.Provenance == ProvenanceManual:
			return h.AdjustPin
		default:
			return h.Ready
		}
	case PhaseSubmitting:
		return h.Submitting
	}
	return ""
}

func (s *Session) blockingMessage(err error) string {
	switch {
	case errors.Is(err, ErrCameraPermissionDenied):
		return s.messages.Camera.PermissionDenied
	case errors.Is(err, ErrNoCamera):
		return s.messages.Camera.NotFound
	case errors.Is(err, ErrModelLoad):
		return s.messages.Face.ModelLoadFailed
	default:
		return err.Error()
	}
}

func submissionMessage(err error) string {
	var serr *SubmissionError
	if errors.As(err, &serr) && serr.Message != "" {
		return serr.Message
	}
	return err.Error()
}

func (s *Session) emit(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *Session) reportClose(o Outcome) {
	if s.onClose != nil {
		s.onClose(o)
	}
}
