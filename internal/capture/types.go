// Package capture implements the attendance capture session: face-presence
// sampling, position acquisition with manual fallback, and the gating that
// decides when a single attendance payload may be submitted.
package capture

import (
	"fmt"
	"time"
)

// Kind tells the backend-facing host which attendance event the session records.
type Kind string

const (
	KindCheckIn  Kind = "check-in"
	KindCheckOut Kind = "check-out"
)

// ParseKind validates a kind string coming from a request or flag.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCheckIn, KindCheckOut:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown attendance type %q (want check-in or check-out)", s)
	}
}

// Title returns the dialog title for the kind.
func (k Kind) Title() string {
	if k == KindCheckOut {
		return "Clock Out Attendance"
	}
	return "Clock In Attendance"
}

// Phase is the state of a capture session.
type Phase string

const (
	PhaseClosed     Phase = "closed"
	PhaseScanning   Phase = "scanning"
	PhasePreviewing Phase = "previewing"
	PhaseSubmitting Phase = "submitting"
)

// SignalKind classifies the most recent face sample.
type SignalKind string

const (
	SignalModelLoading  SignalKind = "model_loading"
	SignalNoFace        SignalKind = "no_face"
	SignalMultipleFaces SignalKind = "multiple_faces"
	SignalSingleFace    SignalKind = "single_face"
)

// FaceSignal is the reduced result of face sampling plus the reason shown to the user.
type FaceSignal struct {
	Kind   SignalKind `json:"kind"`
	Reason string     `json:"reason"`
}

// Valid reports whether the signal permits capture.
func (s FaceSignal) Valid() bool {
	return s.Kind == SignalSingleFace
}

// Provenance tags where a position came from.
type Provenance string

const (
	ProvenanceGPS    Provenance = "gps_auto"
	ProvenanceManual Provenance = "manual_adjusted"
)

// Attendance notes sent to the backend, derived from provenance.
const (
	NoteGPS    = "[GPS] Auto-detected"
	NoteManual = "[MANUAL] User adjusted location on map"
)

// GeoPosition is a resolved position. A manual position may only be moved by
// explicit user drags (see Corrected).
type GeoPosition struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Provenance Provenance `json:"provenance"`
}

// Note returns the attendance note for the position's provenance.
func (p GeoPosition) Note() string {
	if p.Provenance == ProvenanceManual {
		return NoteManual
	}
	return NoteGPS
}

// Corrected returns the position moved to lat/lng. Only manual positions can be moved.
func (p GeoPosition) Corrected(lat, lng float64) (GeoPosition, error) {
	if p.Provenance != ProvenanceManual {
		return p, ErrNotManualPosition
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return p, err
	}
	p.Latitude = lat
	p.Longitude = lng
	return p, nil
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, lat, lng)
	}
	return nil
}

// Submission is the outbound attendance payload. It is built only from a
// captured image and a resolved position and is not modified afterwards.
type Submission struct {
	latitude  float64
	longitude float64
	image     []byte
	note      string
}

// NewSubmission builds a payload. The image is copied.
func NewSubmission(image []byte, pos *GeoPosition) (Submission, error) {
	if len(image) == 0 || pos == nil {
		return Submission{}, ErrSubmitNotAllowed
	}
	img := make([]byte, len(image))
	copy(img, image)
	return Submission{
		latitude:  pos.Latitude,
		longitude: pos.Longitude,
		image:     img,
		note:      pos.Note(),
	}, nil
}

func (s Submission) Latitude() float64  { return s.latitude }
func (s Submission) Longitude() float64 { return s.longitude }
func (s Submission) Note() string       { return s.note }

// Image returns a copy of the captured image bytes.
func (s Submission) Image() []byte {
	img := make([]byte, len(s.image))
	copy(img, s.image)
	return img
}

// AttendanceRecord is what the backend returns for a recorded attendance.
type AttendanceRecord struct {
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// FaceBox is one detected face region. BBox is [x1, y1, x2, y2] relative to
// the frame (0-1).
type FaceBox struct {
	BBox  []float64 `json:"bbox"`
	Score float64   `json:"score"`
}

// DetectOptions are passed to every detector call.
type DetectOptions struct {
	InputSize      int
	ScoreThreshold float64
}

// PositionOptions are passed to the device position provider.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// Coordinates is a raw fix from a position source.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}
