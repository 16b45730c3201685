package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/kozaktomas/clock-in/internal/database/mariadb"
	"github.com/kozaktomas/clock-in/internal/database/postgres"
	"github.com/kozaktomas/clock-in/internal/database/sqlite"
	"github.com/kozaktomas/clock-in/internal/facedetect"
	"github.com/kozaktomas/clock-in/internal/geo"
)

// openAuditLog registers every SQL backend and opens the one DATABASE_URL names.
func openAuditLog(ctx context.Context, cfg *config.Config) (database.AuditStore, string, error) {
	postgres.Register()
	mariadb.Register()
	sqlite.Register()

	store, backend, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, "", err
	}
	return store, backend, nil
}

func newDetector(cfg *config.Config, logger *slog.Logger) *facedetect.Shared {
	return facedetect.NewShared(facedetect.NewClient(cfg.FaceDetector.URL, cfg.FaceDetector.Timeout), logger)
}

// newPositionProvider returns the device GPS for the configured source, or
// nil when the kiosk has none.
func newPositionProvider(cfg *config.Config) capture.PositionProvider {
	switch cfg.Geo.GPSSource {
	case config.GPSSourceStatic:
		return geo.Static{Coordinates: capture.Coordinates{
			Latitude:  cfg.Geo.StaticLat,
			Longitude: cfg.Geo.StaticLng,
		}}
	case config.GPSSourceNone:
		return nil
	default:
		return geo.NewGPSD(cfg.Geo.GPSDAddr)
	}
}

func newIPLocator(cfg *config.Config) capture.IPLocator {
	return geo.NewIPAPI(cfg.Geo.IPLookupURL, cfg.Geo.IPTimeout)
}

// loadMessages returns nil when no override file is configured, which keeps
// the built-in texts.
func loadMessages(cfg *config.Config) (*capture.Messages, error) {
	if cfg.Capture.MessagesFile == "" {
		return nil, nil
	}
	m, err := capture.LoadMessages(cfg.Capture.MessagesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &m, nil
}
