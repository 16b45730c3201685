package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var testFrame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03, 0x04}

type fakeDetector struct {
	loadErr error

	mu      sync.Mutex
	boxes   []FaceBox
	err     error
	opts    []DetectOptions
	release chan struct{} // when set, Detect blocks until it is closed

	calls      atomic.Int32
	active     atomic.Int32
	maxActive  atomic.Int32
	detections chan struct{}
}

func newFakeDetector(boxes ...FaceBox) *fakeDetector {
	return &fakeDetector{boxes: boxes, detections: make(chan struct{}, 100)}
}

func (d *fakeDetector) Load(ctx context.Context) error {
	return d.loadErr
}

func (d *fakeDetector) Detect(ctx context.Context, frame []byte, opts DetectOptions) ([]FaceBox, error) {
	d.calls.Add(1)
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		m := d.maxActive.Load()
		if n <= m || d.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	d.mu.Lock()
	d.opts = append(d.opts, opts)
	release := d.release
	boxes, err := d.boxes, d.err
	d.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer func() { d.detections <- struct{}{} }()
	return boxes, err
}

func (d *fakeDetector) setBoxes(boxes ...FaceBox) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.boxes = boxes
	d.err = nil
}

type fakeVideo struct {
	mu     sync.Mutex
	frame  []byte
	err    error
	closed atomic.Bool
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{frame: testFrame}
}

func (v *fakeVideo) ReadFrame(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return append([]byte(nil), v.frame...), nil
}

func (v *fakeVideo) Close() error {
	v.closed.Store(true)
	return nil
}

type fakeGPS struct {
	mu      sync.Mutex
	coords  Coordinates
	err     error
	opts    []PositionOptions
	block   chan struct{} // when set, CurrentPosition waits for it and ignores ctx
	calls   atomic.Int32
	returns chan struct{}
}

func newFakeGPS(lat, lng float64) *fakeGPS {
	return &fakeGPS{coords: Coordinates{Latitude: lat, Longitude: lng}, returns: make(chan struct{}, 10)}
}

func (g *fakeGPS) CurrentPosition(ctx context.Context, opts PositionOptions) (Coordinates, error) {
	g.calls.Add(1)
	defer func() { g.returns <- struct{}{} }()

	g.mu.Lock()
	g.opts = append(g.opts, opts)
	block, coords, err := g.block, g.coords, g.err
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	return coords, err
}

type fakeIP struct {
	mu     sync.Mutex
	coords Coordinates
	err    error
	calls  atomic.Int32
}

func (f *fakeIP) Locate(ctx context.Context) (Coordinates, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coords, f.err
}

func (f *fakeIP) set(c Coordinates, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coords, f.err = c, err
}

type fakeClient struct {
	mu      sync.Mutex
	subs    []Submission
	errs    []error // returned in order, then success
	release chan struct{}
	record  AttendanceRecord
	calls   atomic.Int32
}

func (c *fakeClient) Clock(ctx context.Context, sub Submission) (*AttendanceRecord, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	release := c.release
	var err error
	if len(c.errs) > 0 {
		err = c.errs[0]
		c.errs = c.errs[1:]
	}
	record := c.record
	c.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *fakeClient) submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Submission(nil), c.subs...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	entries []string
}

func (n *recordingNotifier) add(level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, level+": "+msg)
}

func (n *recordingNotifier) Info(msg string)    { n.add("info", msg) }
func (n *recordingNotifier) Success(msg string) { n.add("success", msg) }
func (n *recordingNotifier) Error(msg string)   { n.add("error", msg) }

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.entries...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitTicker blocks until the sampling loop has created its ticker.
func waitTicker(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("sampling ticker was not created: %v", err)
	}
}

// waitDetection waits for one finished Detect call.
func waitDetection(t *testing.T, d *fakeDetector) {
	t.Helper()
	select {
	case <-d.detections:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a detection")
	}
}
