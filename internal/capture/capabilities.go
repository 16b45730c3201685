package capture

import "context"

// VideoSource yields the latest camera frame. ReadFrame returns ErrNoFrame
// while the camera is not streaming yet, and ErrCameraPermissionDenied or
// ErrNoCamera when it never will.
type VideoSource interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// FaceDetector is the face detection capability. Load must be safe to call
// repeatedly; implementations load the model once.
type FaceDetector interface {
	Load(ctx context.Context) error
	Detect(ctx context.Context, frame []byte, opts DetectOptions) ([]FaceBox, error)
}

// PositionProvider is the device geolocation capability.
type PositionProvider interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Coordinates, error)
}

// IPLocator resolves an approximate position from the caller's IP address.
type IPLocator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// AttendanceClient records an attendance with the backend.
type AttendanceClient interface {
	Clock(ctx context.Context, sub Submission) (*AttendanceRecord, error)
}

// Notifier receives user-facing notifications. Calls must not block.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Info(string)    {}
func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}
