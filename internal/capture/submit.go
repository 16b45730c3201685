package capture

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
)

// SubmissionPipeline sends one attendance payload at a time to the backend.
// Failures are classified and returned; nothing is retried automatically.
type SubmissionPipeline struct {
	client   AttendanceClient
	notifier Notifier
	logger   *slog.Logger
	inFlight atomic.Bool
}

// NewSubmissionPipeline creates a pipeline around the backend client.
func NewSubmissionPipeline(client AttendanceClient, notifier Notifier, logger *slog.Logger) *SubmissionPipeline {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionPipeline{client: client, notifier: notifier, logger: logger}
}

// InFlight reports whether a submission is outstanding.
func (p *SubmissionPipeline) InFlight() bool {
	return p.inFlight.Load()
}

// Submit sends sub. A call made while another is outstanding returns
// ErrSubmissionInFlight without contacting the backend.
func (p *SubmissionPipeline) Submit(ctx context.Context, sub Submission) (*AttendanceRecord, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer p.inFlight.Store(false)

	record, err := p.client.Clock(ctx, sub)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		serr := classify(err)
		p.logger.Error("attendance submission failed", "kind", serr.Kind, "status", serr.StatusCode, "error", err)
		p.notifier.Error(serr.Message)
		return nil, serr
	}

	msg := record.Message
	if msg == "" {
		msg = "Attendance recorded"
	}
	p.notifier.Success(msg)
	return record, nil
}

// classify turns any client error into a *SubmissionError.
func classify(err error) *SubmissionError {
	var serr *SubmissionError
	if errors.As(err, &serr) {
		return serr
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &SubmissionError{Kind: SubmissionNetwork, Message: err.Error(), Err: err}
	}
	return &SubmissionError{Kind: SubmissionServer, Message: err.Error(), Err: err}
}
