package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/clock-in/internal/capture"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondCaptureError maps a capture session error to a status code.
func respondCaptureError(w http.ResponseWriter, err error) {
	var subErr *capture.SubmissionError
	switch {
	case errors.As(err, &subErr):
		status := http.StatusBadGateway
		if subErr.Kind == capture.SubmissionValidation {
			status = http.StatusUnprocessableEntity
		}
		respondJSON(w, status, map[string]string{"error": subErr.Message, "kind": string(subErr.Kind)})
	case errors.Is(err, capture.ErrInvalidCoordinates):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, capture.ErrSessionClosed):
		respondError(w, http.StatusGone, err.Error())
	case errors.Is(err, capture.ErrCaptureNotAllowed),
		errors.Is(err, capture.ErrSubmitNotAllowed),
		errors.Is(err, capture.ErrRetryNotAllowed),
		errors.Is(err, capture.ErrSubmissionInFlight),
		errors.Is(err, capture.ErrNotManualPosition),
		errors.Is(err, capture.ErrSessionOpen),
		errors.Is(err, capture.ErrNoFrame),
		errors.Is(err, capture.ErrCameraPermissionDenied),
		errors.Is(err, capture.ErrNoCamera):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
