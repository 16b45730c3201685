package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/clock-in/internal/constants"
	"github.com/kozaktomas/clock-in/internal/database"
)

// HistoryHandler serves the audit log of closed capture sessions.
type HistoryHandler struct {
	audit  database.AuditReader
	logger *slog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(audit database.AuditReader, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{audit: audit, logger: logger}
}

// HistoryResponse represents one page of the audit log.
type HistoryResponse struct {
	Outcomes []database.StoredOutcome `json:"outcomes"`
	Total    int                      `json:"total"`
}

// List returns recent outcomes, newest first. Query parameters: limit, type, result.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := database.ListOptions{
		Type:   q.Get("type"),
		Result: q.Get("result"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	opts = opts.Normalized(constants.DefaultHistoryLimit, constants.MaxHistoryLimit)

	outcomes, err := h.audit.ListOutcomes(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list outcomes", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	total, err := h.audit.CountOutcomes(r.Context())
	if err != nil {
		h.logger.Error("failed to count outcomes", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if outcomes == nil {
		outcomes = []database.StoredOutcome{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{Outcomes: outcomes, Total: total})
}
