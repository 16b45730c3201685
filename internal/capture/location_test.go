package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestLocationAcquirer_GPSSuccessSkipsFallback(t *testing.T) {
	gps := newFakeGPS(-6.175, 106.827)
	ip := &fakeIP{coords: Coordinates{Latitude: -6.2, Longitude: 106.8}}
	notifier := &recordingNotifier{}
	a := NewLocationAcquirer(gps, ip, notifier, DefaultMessages(), nil, nil)

	pos, err := a.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := GeoPosition{Latitude: -6.175, Longitude: 106.827, Provenance: ProvenanceGPS}
	if pos != expected {
		t.Errorf("expected %+v, got %+v", expected, pos)
	}
	if ip.calls.Load() != 0 {
		t.Errorf("expected no ip fallback calls, got %d", ip.calls.Load())
	}

	gps.mu.Lock()
	opts := gps.opts[0]
	gps.mu.Unlock()
	if !opts.HighAccuracy || opts.Timeout != 5*time.Second || opts.MaximumAge != 0 {
		t.Errorf("unexpected gps options %+v", opts)
	}

	entries := notifier.all()
	if len(entries) != 1 || entries[0] != "success: GPS Accurate Locked!" {
		t.Errorf("unexpected notifications %v", entries)
	}
}

func TestLocationAcquirer_GPSTimeoutFallsBackToIP(t *testing.T) {
	gps := newFakeGPS(0, 0)
	gps.err = context.DeadlineExceeded
	ip := &fakeIP{coords: Coordinates{Latitude: -6.2, Longitude: 106.8}}
	a := NewLocationAcquirer(gps, ip, nil, DefaultMessages(), nil, nil)

	pos, err := a.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := GeoPosition{Latitude: -6.2, Longitude: 106.8, Provenance: ProvenanceManual}
	if pos != expected {
		t.Errorf("expected %+v, got %+v", expected, pos)
	}
	if ip.calls.Load() != 1 {
		t.Errorf("expected exactly 1 ip fallback call, got %d", ip.calls.Load())
	}
}

func TestLocationAcquirer_UnresponsiveGPSTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gps := newFakeGPS(-6.175, 106.827)
	block := make(chan struct{})
	gps.block = block
	defer close(block)
	ip := &fakeIP{coords: Coordinates{Latitude: -6.2, Longitude: 106.8}}
	a := NewLocationAcquirer(gps, ip, nil, DefaultMessages(), clock, nil)

	type result struct {
		pos GeoPosition
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := a.Resolve(context.Background())
		done <- result{pos, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("gps timer was not started: %v", err)
	}

	clock.Advance(5*time.Second - time.Millisecond)
	select {
	case r := <-done:
		t.Fatalf("resolved before the gps timeout: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Millisecond)
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		expected := GeoPosition{Latitude: -6.2, Longitude: 106.8, Provenance: ProvenanceManual}
		if r.pos != expected {
			t.Errorf("expected %+v, got %+v", expected, r.pos)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resolve still blocked after the gps timeout")
	}
	if got := ip.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 ip fallback call, got %d", got)
	}
}

func TestLocationAcquirer_NoGPSCapability(t *testing.T) {
	ip := &fakeIP{coords: Coordinates{Latitude: 50.08, Longitude: 14.43}}
	a := NewLocationAcquirer(nil, ip, nil, DefaultMessages(), nil, nil)

	pos, err := a.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Provenance != ProvenanceManual {
		t.Errorf("expected manual provenance, got %s", pos.Provenance)
	}
}

func TestLocationAcquirer_BothStagesFail(t *testing.T) {
	tests := []struct {
		name  string
		ipErr error
		ip    Coordinates
	}{
		{"network error", errors.New("dial tcp: no route to host"), Coordinates{}},
		{"coordinates out of range", nil, Coordinates{Latitude: 123, Longitude: 500}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gps := newFakeGPS(0, 0)
			gps.err = errors.New("position unavailable")
			ip := &fakeIP{coords: tc.ip, err: tc.ipErr}
			notifier := &recordingNotifier{}
			a := NewLocationAcquirer(gps, ip, notifier, DefaultMessages(), nil, nil)

			_, err := a.Resolve(context.Background())
			if !errors.Is(err, ErrLocationUnavailable) {
				t.Fatalf("expected ErrLocationUnavailable, got %v", err)
			}
			if ip.calls.Load() != 1 {
				t.Errorf("expected exactly 1 ip call, got %d", ip.calls.Load())
			}
			entries := notifier.all()
			if len(entries) != 2 || entries[0] != "info: GPS failed. Please mark your location on the map." {
				t.Errorf("unexpected notifications %v", entries)
			}
		})
	}
}

func TestLocationAcquirer_CancelledContextSkipsFallback(t *testing.T) {
	gps := newFakeGPS(0, 0)
	gps.err = context.Canceled
	ip := &fakeIP{coords: Coordinates{Latitude: -6.2, Longitude: 106.8}}
	a := NewLocationAcquirer(gps, ip, nil, DefaultMessages(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Resolve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ip.calls.Load() != 0 {
		t.Errorf("expected no ip call after cancellation, got %d", ip.calls.Load())
	}
}

func TestApplyManualCorrection(t *testing.T) {
	a := NewLocationAcquirer(nil, nil, nil, DefaultMessages(), nil, nil)

	manual := GeoPosition{Latitude: -6.2, Longitude: 106.8, Provenance: ProvenanceManual}
	moved, err := a.ApplyManualCorrection(manual, -6.21, 106.81)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.Latitude != -6.21 || moved.Longitude != 106.81 || moved.Provenance != ProvenanceManual {
		t.Errorf("unexpected corrected position %+v", moved)
	}

	gps := GeoPosition{Latitude: -6.175, Longitude: 106.827, Provenance: ProvenanceGPS}
	if _, err := a.ApplyManualCorrection(gps, 0, 0); !errors.Is(err, ErrNotManualPosition) {
		t.Errorf("expected ErrNotManualPosition, got %v", err)
	}

	if _, err := a.ApplyManualCorrection(manual, 91, 0); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestGeoPosition_Note(t *testing.T) {
	if got := (GeoPosition{Provenance: ProvenanceGPS}).Note(); got != "[GPS] Auto-detected" {
		t.Errorf("unexpected gps note %q", got)
	}
	if got := (GeoPosition{Provenance: ProvenanceManual}).Note(); got != "[MANUAL] User adjusted location on map" {
		t.Errorf("unexpected manual note %q", got)
	}
}
