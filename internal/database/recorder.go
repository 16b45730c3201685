package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

const recordTimeout = 5 * time.Second

// Recorder writes session outcomes to the audit log. Write failures are
// logged and never reach the session.
type Recorder struct {
	writer AuditWriter
	logger *slog.Logger
}

// NewRecorder creates a recorder for writer.
func NewRecorder(writer AuditWriter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, logger: logger}
}

// Record stores o. It matches capture.Options.OnClose.
func (r *Recorder) Record(o capture.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	stored := OutcomeFromCapture(o)
	if err := r.writer.SaveOutcome(ctx, &stored); err != nil {
		r.logger.Error("failed to record capture outcome", "session", o.SessionID, "result", o.Result, "error", err)
		return
	}
	r.logger.Debug("capture outcome recorded", "id", stored.ID, "session", o.SessionID, "result", o.Result)
}
