// Package attendance is the HTTP client for the HR backend that records
// check-in and check-out events.
package attendance

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/constants"
)

// Client posts attendance submissions to the backend.
type Client struct {
	baseURL string
	path    string
	token   string
	client  *http.Client
}

// NewClient creates a backend client. token is sent as a bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		path:    constants.DefaultClockPath,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithToken returns a client that authenticates as another user. The
// underlying HTTP client is shared.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// ClockRequest is the body of the clock endpoint.
type ClockRequest struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImageBase64 string  `json:"image_base64"`
	Notes       string  `json:"notes"`
}

// clockData is the data field of a successful clock response.
type clockData struct {
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// envelope is the backend's response wrapper.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

// NewClockRequest builds the request body for a submission.
func NewClockRequest(sub capture.Submission) ClockRequest {
	return ClockRequest{
		Latitude:    sub.Latitude(),
		Longitude:   sub.Longitude(),
		ImageBase64: base64.StdEncoding.EncodeToString(sub.Image()),
		Notes:       NormalizeText(sub.Note()),
	}
}

// Clock implements capture.AttendanceClient. Every failure is returned as a
// *capture.SubmissionError except context cancellation.
func (c *Client) Clock(ctx context.Context, sub capture.Submission) (*capture.AttendanceRecord, error) {
	jsonBody, err := json.Marshal(NewClockRequest(sub))
	if err != nil {
		return nil, fmt.Errorf("could not marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &capture.SubmissionError{
			Kind:    capture.SubmissionNetwork,
			Message: "Network error. Please check your connection and try again.",
			Err:     fmt.Errorf("could not send request: %w", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &capture.SubmissionError{
			Kind:       capture.SubmissionNetwork,
			StatusCode: resp.StatusCode,
			Message:    "Network error. Please check your connection and try again.",
			Err:        fmt.Errorf("could not read response body: %w", err),
		}
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, env, body)
	}
	if decodeErr != nil {
		return nil, &capture.SubmissionError{
			Kind:       capture.SubmissionServer,
			StatusCode: resp.StatusCode,
			Message:    "Unexpected response from the attendance server.",
			Err:        fmt.Errorf("could not unmarshal response: %w", decodeErr),
		}
	}

	var data clockData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &capture.SubmissionError{
				Kind:       capture.SubmissionServer,
				StatusCode: resp.StatusCode,
				Message:    "Unexpected response from the attendance server.",
				Err:        fmt.Errorf("could not unmarshal response data: %w", err),
			}
		}
	}

	msg := data.Message
	if msg == "" {
		msg = env.Message
	}
	return &capture.AttendanceRecord{
		Type:    data.Type,
		Status:  data.Status,
		Time:    data.Time,
		Message: NormalizeText(msg),
	}, nil
}

// statusError classifies a non-2xx response. The backend's message is kept
// verbatim so the user sees what the server said.
func statusError(status int, env envelope, body []byte) *capture.SubmissionError {
	kind := capture.SubmissionServer
	if status >= 400 && status < 500 {
		kind = capture.SubmissionValidation
	}

	msg := env.Message
	if msg == "" {
		if s, ok := env.Error.(string); ok {
			msg = s
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &capture.SubmissionError{
		Kind:       kind,
		StatusCode: status,
		Message:    NormalizeText(msg),
		Err:        fmt.Errorf("request failed with status %d: %s", status, strings.TrimSpace(string(body))),
	}
}
