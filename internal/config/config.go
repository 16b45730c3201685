package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/clock-in/internal/constants"
)

type Config struct {
	Backend      BackendConfig
	FaceDetector FaceDetectorConfig
	Geo          GeoConfig
	Database     DatabaseConfig
	Web          WebConfig
	Capture      CaptureConfig
	Log          LogConfig
}

type BackendConfig struct {
	URL     string        // HR backend API base URL (e.g., https://hris.example.com/api/v1)
	Token   string        // Bearer token used by the CLI; the web API forwards the caller's token instead
	Timeout time.Duration // Per-request timeout (default 15s)
}

type FaceDetectorConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // Per-request timeout (default 5s)
}

// GPS sources.
const (
	GPSSourceGPSD   = "gpsd"
	GPSSourceStatic = "static"
	GPSSourceNone   = "none"
)

type GeoConfig struct {
	GPSSource   string        // gpsd, static or none (default gpsd)
	GPSDAddr    string        // defaults to localhost:2947
	StaticLat   float64       // Used when GPSSource is static
	StaticLng   float64       // Used when GPSSource is static
	IPLookupURL string        // defaults to https://ipapi.co/json/
	IPTimeout   time.Duration // IP lookup timeout (default 15s)
}

type DatabaseConfig struct {
	URL          string // Audit log URL: postgres://, mysql://, sqlite:// (empty keeps the log in memory)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string // CORS origins allowed to call the API (default: same origin only)
}

type CaptureConfig struct {
	MessagesFile string // Optional YAML overriding the built-in user-facing texts
}

type LogConfig struct {
	Level  slog.Level
	Format string // text or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration accepts Go durations ("5s") or plain seconds ("5").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseLogLevel maps debug, info, warn and error to slog levels. Unknown
// values fall back to info.
func ParseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func Load() *Config {
	gpsSource := strings.ToLower(envString("GPS_SOURCE", GPSSourceGPSD))
	switch gpsSource {
	case GPSSourceGPSD, GPSSourceStatic, GPSSourceNone:
	default:
		gpsSource = GPSSourceGPSD
	}

	return &Config{
		Backend: BackendConfig{
			URL:     os.Getenv("ATTENDANCE_API_URL"),
			Token:   os.Getenv("ATTENDANCE_API_TOKEN"),
			Timeout: envDuration("ATTENDANCE_API_TIMEOUT", constants.HTTPClientTimeout),
		},
		FaceDetector: FaceDetectorConfig{
			URL:     os.Getenv("FACE_DETECTOR_URL"),
			Timeout: envDuration("FACE_DETECTOR_TIMEOUT", 5*time.Second),
		},
		Geo: GeoConfig{
			GPSSource:   gpsSource,
			GPSDAddr:    os.Getenv("GPSD_ADDR"),
			StaticLat:   envFloat("GPS_STATIC_LAT", 0),
			StaticLng:   envFloat("GPS_STATIC_LNG", 0),
			IPLookupURL: os.Getenv("IP_LOOKUP_URL"),
			IPTimeout:   envDuration("IP_LOOKUP_TIMEOUT", constants.HTTPClientTimeout),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS"),
		},
		Capture: CaptureConfig{
			MessagesFile: os.Getenv("CAPTURE_MESSAGES_FILE"),
		},
		Log: LogConfig{
			Level:  ParseLogLevel(os.Getenv("LOG_LEVEL")),
			Format: strings.ToLower(envString("LOG_FORMAT", "text")),
		},
	}
}
