package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/kozaktomas/clock-in/internal/database/databasetest"
)

func TestAuditRepository(t *testing.T) {
	repo, err := NewAuditRepository(context.Background(), filepath.Join(t.TempDir(), "audit", "clock-in.db"))
	if err != nil {
		t.Fatalf("NewAuditRepository() error: %v", err)
	}
	defer repo.Close()

	databasetest.Run(t, repo)
}

func TestAuditRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clock-in.db")

	repo, err := NewAuditRepository(ctx, path)
	if err != nil {
		t.Fatalf("NewAuditRepository() error: %v", err)
	}
	outcome := databasetest.Outcomes()[0]
	if err := repo.SaveOutcome(ctx, &outcome); err != nil {
		t.Fatalf("SaveOutcome() error: %v", err)
	}
	repo.Close()

	repo, err = NewAuditRepository(ctx, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer repo.Close()

	n, err := repo.CountOutcomes(ctx)
	if err != nil {
		t.Fatalf("CountOutcomes() error: %v", err)
	}
	if n != 1 {
		t.Errorf("CountOutcomes() = %d, want 1", n)
	}
}

func TestPathFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"sqlite:///var/lib/clock-in/audit.db", "/var/lib/clock-in/audit.db", false},
		{"sqlite://data/audit.db", "data/audit.db", false},
		{"sqlite://", "", true},
		{"postgres://localhost/db", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			got, err := PathFromURL(tc.url)
			if (err != nil) != tc.wantErr {
				t.Fatalf("PathFromURL(%q) error = %v, wantErr %v", tc.url, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("PathFromURL(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestOpenThroughRegistry(t *testing.T) {
	Register()
	cfg := &config.DatabaseConfig{URL: "sqlite://" + filepath.Join(t.TempDir(), "audit.db")}

	store, backend, err := database.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()

	if backend != "sqlite" {
		t.Errorf("backend = %q, want sqlite", backend)
	}
}
