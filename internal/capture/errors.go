package capture

import (
	"errors"
	"fmt"
)

// Blocking conditions.
var (
	ErrCameraPermissionDenied = errors.New("camera permission denied")
	ErrNoCamera               = errors.New("no camera available")
	ErrModelLoad              = errors.New("face detection model failed to load")
	ErrLocationUnavailable    = errors.New("location unavailable")
	ErrGPSUnavailable         = errors.New("gps not available")
)

// Guard errors returned when an operation is not permitted in the current state.
var (
	ErrCaptureNotAllowed  = errors.New("capture not allowed")
	ErrSubmitNotAllowed   = errors.New("submit not allowed")
	ErrRetryNotAllowed    = errors.New("location retry not allowed")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrSessionClosed      = errors.New("session closed")
	ErrSessionOpen        = errors.New("session already open")
	ErrNotManualPosition  = errors.New("position is not manually adjustable")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNoFrame            = errors.New("no camera frame available")
)

// SubmissionErrorKind classifies a failed submission.
type SubmissionErrorKind string

const (
	SubmissionNetwork    SubmissionErrorKind = "network"
	SubmissionValidation SubmissionErrorKind = "validation"
	SubmissionServer     SubmissionErrorKind = "server"
)

// SubmissionError is a classified submission failure. Message is shown to the
// user as-is.
type SubmissionError struct {
	Kind       SubmissionErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// isBlocking reports whether err permanently disables capture for the session.
func isBlocking(err error) bool {
	return errors.Is(err, ErrCameraPermissionDenied) ||
		errors.Is(err, ErrNoCamera) ||
		errors.Is(err, ErrModelLoad)
}
