package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

func TestNewRegistry_RequiresDeps(t *testing.T) {
	tests := []struct {
		name string
		deps SessionDeps
	}{
		{"no detector", SessionDeps{ClientFor: func(string) capture.AttendanceClient { return nil }}},
		{"no client factory", SessionDeps{Detector: &fakeDetector{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.deps); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_OneSessionPerToken(t *testing.T) {
	env := newTestEnv(t, officeGPS)

	a, err := env.registry.Open("token-a", capture.KindCheckIn)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	b, err := env.registry.Open("token-b", capture.KindCheckIn)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if env.registry.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", env.registry.Len())
	}

	a2, err := env.registry.Open("token-a", capture.KindCheckOut)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if env.registry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", env.registry.Len())
	}
	if env.registry.Get(a.ID, "token-a") != nil {
		t.Error("replaced session still registered")
	}
	if a.Session.Snapshot().Phase != capture.PhaseClosed {
		t.Error("replaced session not cancelled")
	}
	if env.registry.Get(a2.ID, "token-a") != a2 || env.registry.Get(b.ID, "token-b") != b {
		t.Error("open sessions not found")
	}
	if env.registry.Get(b.ID, "token-a") != nil {
		t.Error("session visible to another token")
	}
}

func TestRegistry_Reap(t *testing.T) {
	env := newTestEnv(t, officeGPS)

	idle, _ := env.registry.Open("token-idle", capture.KindCheckIn)
	active, _ := env.registry.Open("token-active", capture.KindCheckIn)

	env.clock.Advance(4 * time.Minute)
	env.registry.Get(active.ID, "token-active")
	env.clock.Advance(2 * time.Minute)

	if n := env.registry.Reap(5 * time.Minute); n != 1 {
		t.Fatalf("Reap() = %d, want 1", n)
	}
	if env.registry.Get(idle.ID, "token-idle") != nil {
		t.Error("idle session not reaped")
	}
	if env.registry.Get(active.ID, "token-active") == nil {
		t.Error("active session reaped")
	}
}

func TestRegistry_RunReaperStops(t *testing.T) {
	env := newTestEnv(t, officeGPS)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.registry.RunReaper(ctx, time.Minute, 5*time.Minute)
		close(done)
	}()

	if err := env.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("reaper ticker not started: %v", err)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunReaper did not return after cancel")
	}
}

func TestFrameBuffer(t *testing.T) {
	ctx := context.Background()
	b := NewFrameBuffer()

	if _, err := b.ReadFrame(ctx); !errors.Is(err, capture.ErrNoFrame) {
		t.Errorf("empty buffer: err = %v, want ErrNoFrame", err)
	}

	frame := []byte{1, 2, 3}
	b.Push(frame)
	got, err := b.ReadFrame(ctx)
	if err != nil || len(got) != 3 {
		t.Fatalf("ReadFrame() = %v, %v", got, err)
	}
	got[0] = 9
	if again, _ := b.ReadFrame(ctx); again[0] != 1 {
		t.Error("ReadFrame must return a copy")
	}

	b.Fail(capture.ErrCameraPermissionDenied)
	if _, err := b.ReadFrame(ctx); !errors.Is(err, capture.ErrCameraPermissionDenied) {
		t.Errorf("after Fail: err = %v", err)
	}

	b.Close()
	if b.Push(frame) {
		t.Error("Push after Close should be rejected")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := NewFrameBuffer().ReadFrame(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: err = %v", err)
	}
}

func TestEventBroadcaster(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()

	b.SendEvent(SessionEvent{Type: EventNotification, Data: "hello"})
	if ev := <-ch; ev.Type != EventNotification {
		t.Errorf("event = %+v", ev)
	}

	b.Close(SessionEvent{Type: EventClosed})
	if ev := <-ch; ev.Type != EventClosed {
		t.Errorf("final event = %+v", ev)
	}
	if _, ok := <-ch; ok {
		t.Error("listener should be closed")
	}

	// Removing a listener closed by Close must not panic.
	b.RemoveListener(ch)

	late := b.AddListener()
	if _, ok := <-late; ok {
		t.Error("listener added after Close should be closed")
	}
	b.Close(SessionEvent{Type: EventClosed})
}
