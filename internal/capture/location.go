package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/kozaktomas/clock-in/internal/constants"
)

// LocationAcquirer resolves a position through GPS, then IP geolocation. The
// IP result is only a starting point for the user's map pin.
type LocationAcquirer struct {
	gps      PositionProvider
	ip       IPLocator
	notifier Notifier
	messages Messages
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewLocationAcquirer creates an acquirer. A nil gps means the device has no
// GPS capability and resolution starts at the IP stage. The GPS timeout runs
// on clock.
func NewLocationAcquirer(gps PositionProvider, ip IPLocator, notifier Notifier, messages Messages, clock clockwork.Clock, logger *slog.Logger) *LocationAcquirer {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationAcquirer{
		gps:      gps,
		ip:       ip,
		notifier: notifier,
		messages: messages,
		clock:    clock,
		logger:   logger,
	}
}

// Resolve runs the fallback chain from the first stage. It returns
// ErrLocationUnavailable when no stage produced a position.
func (a *LocationAcquirer) Resolve(ctx context.Context) (GeoPosition, error) {
	pos, err := a.fromGPS(ctx)
	if err == nil {
		a.notifier.Success(a.messages.Location.GPSLocked)
		return pos, nil
	}
	if ctx.Err() != nil {
		return GeoPosition{}, ctx.Err()
	}
	a.logger.Warn("gps failed, falling back to ip geolocation", "error", err)
	a.notifier.Info(a.messages.Location.GPSFailed)

	pos, err = a.fromIP(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return GeoPosition{}, ctx.Err()
		}
		a.logger.Error("ip geolocation failed", "error", err)
		a.notifier.Error(a.messages.Location.IPFailed)
		return GeoPosition{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	return pos, nil
}

// ApplyManualCorrection moves a manual position to the dragged marker location.
func (a *LocationAcquirer) ApplyManualCorrection(pos GeoPosition, lat, lng float64) (GeoPosition, error) {
	return pos.Corrected(lat, lng)
}

func (a *LocationAcquirer) fromGPS(ctx context.Context) (GeoPosition, error) {
	if a.gps == nil {
		return GeoPosition{}, ErrGPSUnavailable
	}

	c, err := a.currentPosition(ctx)
	if err != nil {
		return GeoPosition{}, fmt.Errorf("gps position: %w", err)
	}
	if err := validateCoordinates(c.Latitude, c.Longitude); err != nil {
		return GeoPosition{}, err
	}
	return GeoPosition{Latitude: c.Latitude, Longitude: c.Longitude, Provenance: ProvenanceGPS}, nil
}

type gpsFix struct {
	coords Coordinates
	err    error
}

// currentPosition enforces GPSTimeout itself. A provider that ignores its
// context is abandoned when the timer fires.
func (a *LocationAcquirer) currentPosition(ctx context.Context) (Coordinates, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fix := make(chan gpsFix, 1)
	go func() {
		c, err := a.gps.CurrentPosition(ctx, PositionOptions{
			HighAccuracy: true,
			Timeout:      constants.GPSTimeout,
			MaximumAge:   constants.GPSMaximumAge,
		})
		fix <- gpsFix{coords: c, err: err}
	}()

	timer := a.clock.NewTimer(constants.GPSTimeout)
	defer timer.Stop()

	select {
	case f := <-fix:
		return f.coords, f.err
	case <-timer.Chan():
		return Coordinates{}, context.DeadlineExceeded
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	}
}

func (a *LocationAcquirer) fromIP(ctx context.Context) (GeoPosition, error) {
	if a.ip == nil {
		return GeoPosition{}, errors.New("no ip locator configured")
	}
	c, err := a.ip.Locate(ctx)
	if err != nil {
		return GeoPosition{}, fmt.Errorf("ip lookup: %w", err)
	}
	if err := validateCoordinates(c.Latitude, c.Longitude); err != nil {
		return GeoPosition{}, err
	}
	return GeoPosition{Latitude: c.Latitude, Longitude: c.Longitude, Provenance: ProvenanceManual}, nil
}
