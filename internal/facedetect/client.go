// Package facedetect talks to the face detection service that backs the
// capture session's face-presence checks.
package facedetect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

const defaultDetectorURL = "http://localhost:8000"

// Client calls the detection service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new detection client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Detection is a single face reported by the service
type Detection struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels of the uploaded image
	DetScore float64   `json:"det_score"`
}

// DetectResponse represents the response from the face detection endpoint
type DetectResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []Detection `json:"faces"`
	Model      string      `json:"model"`
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// Health checks that the service is up and its model is loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if health.Status != "" && health.Status != "ok" {
		return fmt.Errorf("detector not ready: %s", health.Status)
	}
	return nil
}

// Load implements capture.FaceDetector by checking service readiness.
func (c *Client) Load(ctx context.Context) error {
	return c.Health(ctx)
}

// Detect shrinks the frame to the detector input size, uploads it and
// returns the faces in relative [x1, y1, x2, y2] coordinates.
func (c *Client) Detect(ctx context.Context, frame []byte, opts capture.DetectOptions) ([]capture.FaceBox, error) {
	scaled, err := ScaleFrame(frame, opts.InputSize)
	if err != nil {
		return nil, err
	}

	resp, err := c.detect(ctx, scaled.Data, opts)
	if err != nil {
		return nil, err
	}

	boxes := make([]capture.FaceBox, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		rel := ToRelative(f.BBox, scaled.Width, scaled.Height)
		if Area(rel) == 0 {
			continue
		}
		boxes = append(boxes, capture.FaceBox{BBox: rel, Score: f.DetScore})
	}
	return boxes, nil
}

func (c *Client) detect(ctx context.Context, imageData []byte, opts capture.DetectOptions) (*DetectResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if opts.InputSize > 0 {
		if err := writer.WriteField("input_size", strconv.Itoa(opts.InputSize)); err != nil {
			return nil, fmt.Errorf("failed to write input size: %w", err)
		}
	}
	if err := writer.WriteField("score_threshold", strconv.FormatFloat(opts.ScoreThreshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("failed to write score threshold: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect/face", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var detectResp DetectResponse
	if err := json.Unmarshal(body, &detectResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &detectResp, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
