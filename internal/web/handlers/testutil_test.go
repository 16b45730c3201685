package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/kozaktomas/clock-in/internal/web/middleware"
)

const testToken = "employee-token"

type fakeDetector struct {
	mu    sync.Mutex
	faces int
}

func (d *fakeDetector) Load(ctx context.Context) error { return nil }

func (d *fakeDetector) Detect(ctx context.Context, frame []byte, opts capture.DetectOptions) ([]capture.FaceBox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	boxes := make([]capture.FaceBox, d.faces)
	for i := range boxes {
		boxes[i] = capture.FaceBox{BBox: []float64{0.2, 0.2, 0.6, 0.7}, Score: 0.9}
	}
	return boxes, nil
}

type fakeGPS struct {
	coords capture.Coordinates
}

func (g fakeGPS) CurrentPosition(ctx context.Context, opts capture.PositionOptions) (capture.Coordinates, error) {
	return g.coords, nil
}

type fakeIP struct{}

func (fakeIP) Locate(ctx context.Context) (capture.Coordinates, error) {
	return capture.Coordinates{Latitude: -6.2, Longitude: 106.8}, nil
}

type fakeAttendance struct {
	mu     sync.Mutex
	token  string
	err    error
	calls  int
	record capture.AttendanceRecord
}

func (a *fakeAttendance) Clock(ctx context.Context, sub capture.Submission) (*capture.AttendanceRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	rec := a.record
	return &rec, nil
}

// testEnv wires a registry to fakes and serves the capture routes.
type testEnv struct {
	clock    *clockwork.FakeClock
	detector *fakeDetector
	backend  *fakeAttendance
	audit    *database.MemoryStore
	registry *Registry
	router   *chi.Mux
}

func newTestEnv(t *testing.T, gps capture.PositionProvider) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    clockwork.NewFakeClock(),
		detector: &fakeDetector{faces: 1},
		backend:  &fakeAttendance{record: capture.AttendanceRecord{Type: "IN", Status: "PRESENT", Message: "Check-in success"}},
		audit:    database.NewMemoryStore(10),
	}

	registry, err := NewRegistry(SessionDeps{
		Detector: env.detector,
		GPS:      gps,
		IP:       fakeIP{},
		ClientFor: func(token string) capture.AttendanceClient {
			env.backend.mu.Lock()
			env.backend.token = token
			env.backend.mu.Unlock()
			return env.backend
		},
		Clock:   env.clock,
		OnClose: database.NewRecorder(env.audit, nil).Record,
	})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	env.registry = registry
	t.Cleanup(registry.CloseAll)

	captureHandler := NewCaptureHandler(registry, nil)
	historyHandler := NewHistoryHandler(env.audit, nil)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken())
		r.Post("/sessions", captureHandler.Open)
		r.Get("/sessions/{id}", captureHandler.Get)
		r.Delete("/sessions/{id}", captureHandler.Cancel)
		r.Get("/sessions/{id}/events", captureHandler.Events)
		r.Get("/sessions/{id}/image", captureHandler.Image)
		r.Post("/sessions/{id}/frames", captureHandler.PushFrame)
		r.Post("/sessions/{id}/camera-error", captureHandler.CameraError)
		r.Post("/sessions/{id}/capture", captureHandler.Capture)
		r.Post("/sessions/{id}/retake", captureHandler.Retake)
		r.Put("/sessions/{id}/position", captureHandler.MovePosition)
		r.Post("/sessions/{id}/location/retry", captureHandler.RetryLocation)
		r.Post("/sessions/{id}/submit", captureHandler.Submit)
		r.Get("/history", historyHandler.List)
	})
	env.router = r
	return env
}

// do sends a request as token and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) open(t *testing.T, kind string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/sessions", testToken, []byte(`{"type":"`+kind+`"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp OpenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("open: decode: %v", err)
	}
	return resp.ID
}

func (e *testEnv) snapshot(t *testing.T, id string) capture.Snapshot {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/sessions/"+id, testToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d, body %s", rec.Code, rec.Body.String())
	}
	var snap capture.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("get: decode: %v", err)
	}
	return snap
}

// waitFor advances the fake clock until cond holds on the session snapshot.
func (e *testEnv) waitFor(t *testing.T, id string, cond func(capture.Snapshot) bool) capture.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := e.snapshot(t, id); cond(snap) {
			return snap
		}
		e.clock.Advance(500 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached, last snapshot %+v", e.snapshot(t, id))
	return capture.Snapshot{}
}

// scanReady opens a session, feeds a frame and waits until capture is allowed.
func (e *testEnv) scanReady(t *testing.T) string {
	t.Helper()
	id := e.open(t, "check-in")
	if rec := e.do(t, http.MethodPost, "/sessions/"+id+"/frames", testToken, testJPEG(t)); rec.Code != http.StatusNoContent {
		t.Fatalf("push frame: status %d, body %s", rec.Code, rec.Body.String())
	}
	e.waitFor(t, id, func(s capture.Snapshot) bool { return s.CanCapture })
	return id
}

// captured moves a ready session to a resolved preview.
func (e *testEnv) captured(t *testing.T) string {
	t.Helper()
	id := e.scanReady(t)
	if rec := e.do(t, http.MethodPost, "/sessions/"+id+"/capture", testToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("capture: status %d, body %s", rec.Code, rec.Body.String())
	}
	e.waitFor(t, id, func(s capture.Snapshot) bool { return !s.Locating })
	return id
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

var databaseAll = database.ListOptions{}

var errUnexpected = errors.New("boom")
