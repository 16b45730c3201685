// Package databasetest holds the behaviour every audit log backend must share.
package databasetest

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/clock-in/internal/database"
)

func ptr(v float64) *float64 { return &v }

// Outcomes returns three outcomes closed one minute apart, oldest first.
func Outcomes() []database.StoredOutcome {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return []database.StoredOutcome{
		{
			SessionID:    "s-1",
			Type:         "check-in",
			Result:       "submitted",
			Phase:        "submitting",
			Provenance:   "gps_auto",
			Latitude:     ptr(-6.2),
			Longitude:    ptr(106.8),
			RecordStatus: "PRESENT",
			Message:      "Clocked in",
			OpenedAt:     base,
			ClosedAt:     base.Add(time.Minute),
		},
		{
			SessionID: "s-2",
			Type:      "check-out",
			Result:    "cancelled",
			Phase:     "scanning",
			OpenedAt:  base.Add(time.Minute),
			ClosedAt:  base.Add(2 * time.Minute),
		},
		{
			SessionID:  "s-3",
			Type:       "check-in",
			Result:     "cancelled",
			Phase:      "previewing",
			Provenance: "manual_adjusted",
			Latitude:   ptr(-6.21),
			Longitude:  ptr(106.81),
			Error:      "Server error",
			OpenedAt:   base.Add(2 * time.Minute),
			ClosedAt:   base.Add(3 * time.Minute),
		},
	}
}

// Run exercises store, which must start empty.
func Run(t *testing.T, store database.AuditStore) {
	t.Helper()
	ctx := context.Background()

	outcomes := Outcomes()
	for i := range outcomes {
		if err := store.SaveOutcome(ctx, &outcomes[i]); err != nil {
			t.Fatalf("SaveOutcome(%s) error: %v", outcomes[i].SessionID, err)
		}
		if outcomes[i].ID == 0 {
			t.Errorf("SaveOutcome(%s) did not set ID", outcomes[i].SessionID)
		}
	}

	t.Run("Count", func(t *testing.T) {
		n, err := store.CountOutcomes(ctx)
		if err != nil {
			t.Fatalf("CountOutcomes() error: %v", err)
		}
		if n != 3 {
			t.Errorf("CountOutcomes() = %d, want 3", n)
		}
	})

	t.Run("NewestFirst", func(t *testing.T) {
		got, err := store.ListOutcomes(ctx, database.ListOptions{})
		if err != nil {
			t.Fatalf("ListOutcomes() error: %v", err)
		}
		want := []string{"s-3", "s-2", "s-1"}
		if len(got) != len(want) {
			t.Fatalf("ListOutcomes() returned %d outcomes, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].SessionID != id {
				t.Errorf("ListOutcomes()[%d] = %s, want %s", i, got[i].SessionID, id)
			}
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := store.ListOutcomes(ctx, database.ListOptions{Limit: 1, Result: "submitted"})
		if err != nil {
			t.Fatalf("ListOutcomes() error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("ListOutcomes() returned %d outcomes, want 1", len(got))
		}
		o := got[0]
		if o.Type != "check-in" || o.Phase != "submitting" || o.Provenance != "gps_auto" {
			t.Errorf("unexpected outcome: %+v", o)
		}
		if o.Latitude == nil || *o.Latitude != -6.2 || o.Longitude == nil || *o.Longitude != 106.8 {
			t.Errorf("position not preserved: %v, %v", o.Latitude, o.Longitude)
		}
		if o.RecordStatus != "PRESENT" || o.Message != "Clocked in" {
			t.Errorf("record not preserved: %q %q", o.RecordStatus, o.Message)
		}
		if !o.ClosedAt.Equal(outcomes[0].ClosedAt) {
			t.Errorf("ClosedAt = %v, want %v", o.ClosedAt, outcomes[0].ClosedAt)
		}
	})

	t.Run("NullPosition", func(t *testing.T) {
		got, err := store.ListOutcomes(ctx, database.ListOptions{Type: "check-out"})
		if err != nil {
			t.Fatalf("ListOutcomes() error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("ListOutcomes() returned %d outcomes, want 1", len(got))
		}
		if got[0].Latitude != nil || got[0].Longitude != nil {
			t.Errorf("expected no position, got %v, %v", got[0].Latitude, got[0].Longitude)
		}
	})

	t.Run("Filters", func(t *testing.T) {
		tests := []struct {
			name string
			opts database.ListOptions
			want int
		}{
			{"check-in", database.ListOptions{Type: "check-in"}, 2},
			{"cancelled", database.ListOptions{Result: "cancelled"}, 2},
			{"type and result", database.ListOptions{Type: "check-in", Result: "cancelled"}, 1},
			{"limit", database.ListOptions{Limit: 2}, 2},
			{"no match", database.ListOptions{Type: "break"}, 0},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				got, err := store.ListOutcomes(ctx, tc.opts)
				if err != nil {
					t.Fatalf("ListOutcomes() error: %v", err)
				}
				if len(got) != tc.want {
					t.Errorf("ListOutcomes(%+v) returned %d outcomes, want %d", tc.opts, len(got), tc.want)
				}
			})
		}
	})
}
