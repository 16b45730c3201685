package handlers

import (
	"net/http"

	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/constants"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config       *config.Config
	auditBackend string
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, auditBackend string) *ConfigHandler {
	return &ConfigHandler{
		config:       cfg,
		auditBackend: auditBackend,
	}
}

// ConfigResponse represents the kiosk configuration
type ConfigResponse struct {
	FrameIntervalMs int64  `json:"frame_interval_ms"`
	MaxFrameBytes   int    `json:"max_frame_bytes"`
	GPSSource       string `json:"gps_source"`
	AuditBackend    string `json:"audit_backend"`
}

// Get returns what the kiosk page needs to drive a session
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		FrameIntervalMs: constants.SamplingInterval.Milliseconds(),
		MaxFrameBytes:   constants.MaxFrameSize,
		GPSSource:       h.config.Geo.GPSSource,
		AuditBackend:    h.auditBackend,
	})
}
