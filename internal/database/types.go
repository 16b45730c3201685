package database

import (
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

// StoredOutcome represents a closed capture session stored in the audit log
type StoredOutcome struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Type         string    `json:"type"`
	Result       string    `json:"result"`
	Phase        string    `json:"phase"`                // phase the session closed from
	Provenance   string    `json:"provenance,omitempty"` // empty when no position was resolved
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	RecordStatus string    `json:"record_status,omitempty"` // backend attendance status (PRESENT, LATE, ...)
	Message      string    `json:"message,omitempty"`
	Error        string    `json:"error,omitempty"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at"`
}

// OutcomeFromCapture flattens a session outcome into its stored form.
func OutcomeFromCapture(o capture.Outcome) StoredOutcome {
	s := StoredOutcome{
		SessionID: o.SessionID,
		Type:      string(o.Kind),
		Result:    string(o.Result),
		Phase:     string(o.Phase),
		Error:     o.Error,
		OpenedAt:  o.OpenedAt.UTC(),
		ClosedAt:  o.ClosedAt.UTC(),
	}
	if o.Position != nil {
		lat, lng := o.Position.Latitude, o.Position.Longitude
		s.Provenance = string(o.Position.Provenance)
		s.Latitude = &lat
		s.Longitude = &lng
	}
	if o.Record != nil {
		s.RecordStatus = o.Record.Status
		s.Message = o.Record.Message
	}
	return s
}

// ListOptions filters audit log queries. Zero values mean no filter.
type ListOptions struct {
	Limit  int
	Type   string
	Result string
}

// Normalized clamps the limit into [1, max], using def when unset.
func (o ListOptions) Normalized(def, max int) ListOptions {
	if o.Limit <= 0 {
		o.Limit = def
	}
	if o.Limit > max {
		o.Limit = max
	}
	return o
}
