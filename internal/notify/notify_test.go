package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMulti(t *testing.T) {
	var first, second []Notification
	n := Multi(
		Func(func(n Notification) { first = append(first, n) }),
		nil,
		Func(func(n Notification) { second = append(second, n) }),
	)

	n.Info("GPS failed. Please mark your location on the map.")
	n.Success("Check-in success")
	n.Error("Invalid Request")

	expected := []Level{LevelInfo, LevelSuccess, LevelError}
	for _, got := range [][]Notification{first, second} {
		if len(got) != len(expected) {
			t.Fatalf("expected %d notifications, got %d", len(expected), len(got))
		}
		for i, level := range expected {
			if got[i].Level != level {
				t.Errorf("notification %d level = %s, want %s", i, got[i].Level, level)
			}
		}
	}
	if first[1].Message != "Check-in success" {
		t.Errorf("unexpected message %q", first[1].Message)
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	NewLog(logger).Error("Camera permission denied")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `message="Camera permission denied"`) {
		t.Errorf("unexpected log output %q", out)
	}
}
