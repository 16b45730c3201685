package attendance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

var testImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x10, 0x20, 0x30, 0x40}

func testSubmission(t *testing.T, provenance capture.Provenance) capture.Submission {
	t.Helper()
	sub, err := capture.NewSubmission(testImage, &capture.GeoPosition{Latitude: -6.175, Longitude: 106.827, Provenance: provenance})
	if err != nil {
		t.Fatalf("building submission: %v", err)
	}
	return sub
}

func TestClient_ClockSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/attendance/clock" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer employee-token" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req ClockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Latitude != -6.175 || req.Longitude != 106.827 {
			t.Errorf("unexpected coordinates %v,%v", req.Latitude, req.Longitude)
		}
		if req.Notes != "[GPS] Auto-detected" {
			t.Errorf("unexpected notes %q", req.Notes)
		}
		img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil || string(img) != string(testImage) {
			t.Errorf("image_base64 does not round-trip: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Check-in success","data":{"type":"CHECK_IN","status":"PRESENT","time":"2026-10-15T08:01:02Z","message":"Check-in success"},"error":null}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/api/v1/", "", time.Second).WithToken("employee-token")
	record, err := c.Clock(context.Background(), testSubmission(t, capture.ProvenanceGPS))
	if err != nil {
		t.Fatalf("Clock() error: %v", err)
	}
	if record.Type != "CHECK_IN" || record.Status != "PRESENT" || record.Message != "Check-in success" {
		t.Errorf("unexpected record %+v", record)
	}
	if !record.Time.Equal(time.Date(2026, 10, 15, 8, 1, 2, 0, time.UTC)) {
		t.Errorf("unexpected time %v", record.Time)
	}
}

func TestClient_ClockEnvelopeMessageFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Check-out success","data":null,"error":null}`))
	}))
	defer server.Close()

	record, err := NewClient(server.URL, "t", time.Second).Clock(context.Background(), testSubmission(t, capture.ProvenanceManual))
	if err != nil {
		t.Fatalf("Clock() error: %v", err)
	}
	if record.Message != "Check-out success" {
		t.Errorf("unexpected message %q", record.Message)
	}
}

func TestClient_ClockErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     capture.SubmissionErrorKind
		expected string
	}{
		{
			name:     "bad request keeps backend message",
			status:   http.StatusBadRequest,
			body:     `{"message":"Invalid Request","data":null,"error":"code=400"}`,
			kind:     capture.SubmissionValidation,
			expected: "Invalid Request",
		},
		{
			name:     "unauthorized without envelope",
			status:   http.StatusUnauthorized,
			body:     ``,
			kind:     capture.SubmissionValidation,
			expected: "Unauthorized",
		},
		{
			name:     "error field used when message is empty",
			status:   http.StatusUnprocessableEntity,
			body:     `{"message":"","data":null,"error":"you are outside the office radius"}`,
			kind:     capture.SubmissionValidation,
			expected: "you are outside the office radius",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"message":"already checked in today","data":null,"error":"already checked in today"}`,
			kind:     capture.SubmissionServer,
			expected: "already checked in today",
		},
		{
			name:     "success with broken body",
			status:   http.StatusOK,
			body:     `<html>gateway</html>`,
			kind:     capture.SubmissionServer,
			expected: "Unexpected response from the attendance server.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "t", time.Second).Clock(context.Background(), testSubmission(t, capture.ProvenanceGPS))
			var serr *capture.SubmissionError
			if !errors.As(err, &serr) {
				t.Fatalf("expected *SubmissionError, got %T %v", err, err)
			}
			if serr.Kind != tc.kind {
				t.Errorf("expected kind %s, got %s", tc.kind, serr.Kind)
			}
			if serr.Message != tc.expected {
				t.Errorf("expected message %q, got %q", tc.expected, serr.Message)
			}
		})
	}
}

func TestClient_ClockNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewClient("http://"+addr, "t", time.Second).Clock(context.Background(), testSubmission(t, capture.ProvenanceGPS))
	var serr *capture.SubmissionError
	if !errors.As(err, &serr) || serr.Kind != capture.SubmissionNetwork {
		t.Fatalf("expected network SubmissionError, got %v", err)
	}
}

func TestClient_ClockCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient(server.URL, "t", 5*time.Second).Clock(ctx, testSubmission(t, capture.ProvenanceGPS))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Check-in success", "Check-in success"},
		{"Cafe\u0301", "Caf\u00e9"},
		{"  padded\t", "padded"},
		{"bell\u0007ring", "bellring"},
		{"line\nbreak", "line\nbreak"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := NormalizeText(tc.input); got != tc.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
