package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/constants"
	"github.com/kozaktomas/clock-in/internal/web/middleware"
)

// CaptureHandler handles the kiosk capture session endpoints.
type CaptureHandler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewCaptureHandler creates a new capture handler.
func NewCaptureHandler(registry *Registry, logger *slog.Logger) *CaptureHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureHandler{registry: registry, logger: logger}
}

// OpenRequest represents a request to open a capture session.
type OpenRequest struct {
	Type string `json:"type"`
}

// OpenResponse represents a freshly opened capture session.
type OpenResponse struct {
	ID       string           `json:"id"`
	Snapshot capture.Snapshot `json:"snapshot"`
}

// PositionRequest represents a marker drag on the map.
type PositionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CameraErrorRequest reports why the browser cannot stream the camera.
type CameraErrorRequest struct {
	Reason string `json:"reason"`
}

// Camera error reasons.
const (
	CameraPermissionDenied = "permission_denied"
	CameraNotFound         = "not_found"
)

// SubmitResponse represents a recorded attendance.
type SubmitResponse struct {
	Record   *capture.AttendanceRecord `json:"record"`
	Snapshot capture.Snapshot          `json:"snapshot"`
}

// lookup resolves the {id} URL parameter to a session owned by the caller.
func (h *CaptureHandler) lookup(w http.ResponseWriter, r *http.Request) *KioskSession {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil
	}
	ks := h.registry.Get(id, middleware.GetTokenFromContext(r.Context()))
	if ks == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return ks
}

// Open opens a capture session, replacing the caller's previous one.
func (h *CaptureHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	kind, err := capture.ParseKind(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ks, err := h.registry.Open(middleware.GetTokenFromContext(r.Context()), kind)
	if err != nil {
		h.logger.Error("failed to open capture session", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	respondJSON(w, http.StatusCreated, OpenResponse{ID: ks.ID, Snapshot: ks.Session.Snapshot()})
}

// Get returns the session snapshot.
func (h *CaptureHandler) Get(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	respondJSON(w, http.StatusOK, ks.Session.Snapshot())
}

// Events streams snapshots and notifications over SSE.
func (h *CaptureHandler) Events(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	streamSessionEvents(w, r, ks.Events, ks.Session.Snapshot())
}

// Image returns the captured preview frame.
func (h *CaptureHandler) Image(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	img := ks.Session.Image()
	if img == nil {
		respondError(w, http.StatusNotFound, "no captured image")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// PushFrame stores the latest camera frame sent as the raw request body.
func (h *CaptureHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}

	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxFrameSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	if len(frame) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}
	switch http.DetectContentType(frame) {
	case "image/jpeg", "image/png", "image/webp", "image/bmp":
	default:
		respondError(w, http.StatusUnsupportedMediaType, "frame must be a JPEG, PNG, WebP or BMP image")
		return
	}

	if !ks.Frames.Push(frame) {
		respondError(w, http.StatusGone, capture.ErrSessionClosed.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CameraError reports a camera the browser could not open.
func (h *CaptureHandler) CameraError(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}

	var req CameraErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var camErr error
	switch req.Reason {
	case CameraPermissionDenied:
		camErr = capture.ErrCameraPermissionDenied
	case CameraNotFound:
		camErr = capture.ErrNoCamera
	default:
		respondError(w, http.StatusBadRequest, "reason must be permission_denied or not_found")
		return
	}

	h.logger.Warn("camera unavailable", "session", ks.ID, "reason", sanitizeForLog(req.Reason))
	ks.Frames.Fail(camErr)
	ks.Session.ReportCameraError(camErr)
	respondJSON(w, http.StatusOK, ks.Session.Snapshot())
}

// Capture freezes the current frame and starts location resolution.
func (h *CaptureHandler) Capture(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	if err := ks.Session.Capture(r.Context()); err != nil {
		respondCaptureError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ks.Session.Snapshot())
}

// Retake discards the preview and resumes scanning.
func (h *CaptureHandler) Retake(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	if err := ks.Session.Retake(); err != nil {
		respondCaptureError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ks.Session.Snapshot())
}

// MovePosition moves a manually placed marker.
func (h *CaptureHandler) MovePosition(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}

	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	if err := ks.Session.MoveMarker(*req.Latitude, *req.Longitude); err != nil {
		respondCaptureError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ks.Session.Snapshot())
}

// RetryLocation restarts location resolution after it failed.
func (h *CaptureHandler) RetryLocation(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	if err := ks.Session.RetryLocation(); err != nil {
		respondCaptureError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ks.Session.Snapshot())
}

// Submit sends the attendance. A dropped connection does not abort the
// submission; Cancel does.
func (h *CaptureHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}

	record, err := ks.Session.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		respondCaptureError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Record: record, Snapshot: ks.Session.Snapshot()})
}

// Cancel closes the session.
func (h *CaptureHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ks := h.lookup(w, r)
	if ks == nil {
		return
	}
	ks.Session.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
