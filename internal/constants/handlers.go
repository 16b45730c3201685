// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Handler constants
const (
	// DefaultHistoryLimit is the default number of session outcomes listed
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps the history page size
	MaxHistoryLimit = 500
)

// Frame upload constants
const (
	// MaxFrameSize is the maximum camera frame size in bytes (8MB)
	MaxFrameSize = 8 << 20
)
