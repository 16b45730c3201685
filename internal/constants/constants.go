// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face sampling constants
const (
	// SamplingInterval is the period between two face samples while scanning
	SamplingInterval = 500 * time.Millisecond

	// DetectionInputSize is the square input resolution the detector runs at
	DetectionInputSize = 224

	// DetectionScoreThreshold is the minimum confidence for a detected face to count
	DetectionScoreThreshold = 0.5
)

// Location constants
const (
	// GPSTimeout is the hard limit for one device position request
	GPSTimeout = 5 * time.Second

	// GPSMaximumAge disables reuse of cached fixes
	GPSMaximumAge = 0

	// DefaultIPLookupURL is the IP geolocation service used when GPS fails
	DefaultIPLookupURL = "https://ipapi.co/json/"
)

// Backend constants
const (
	// DefaultClockPath is the attendance endpoint relative to the backend base URL
	DefaultClockPath = "attendance/clock"

	// HTTPClientTimeout bounds every outbound HTTP call
	HTTPClientTimeout = 15 * time.Second
)
