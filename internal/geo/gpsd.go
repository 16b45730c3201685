package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kozaktomas/clock-in/internal/capture"
)

// DefaultGPSDAddr is where gpsd listens unless configured otherwise.
const DefaultGPSDAddr = "localhost:2947"

const watchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// ErrNoFix means gpsd answered but the receiver has no position fix.
var ErrNoFix = errors.New("gps has no fix")

// GPSD reads positions from a gpsd daemon using its JSON protocol. Each
// request opens a fresh connection, so no cached fix is ever returned.
type GPSD struct {
	addr   string
	dialer net.Dialer
}

// NewGPSD creates a gpsd position provider.
func NewGPSD(addr string) *GPSD {
	if addr == "" {
		addr = DefaultGPSDAddr
	}
	return &GPSD{addr: addr}
}

// gpsdReport covers the fields of the TPV report we use.
type gpsdReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"` // 0 unknown, 1 no fix, 2 2D, 3 3D
	Time  string   `json:"time"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Eph   float64  `json:"eph"`
}

// CurrentPosition implements capture.PositionProvider. It waits for the
// first TPV report with a fix; high accuracy requires a 3D fix.
func (g *GPSD) CurrentPosition(ctx context.Context, opts capture.PositionOptions) (capture.Coordinates, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := g.dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return capture.Coordinates{}, fmt.Errorf("could not connect to gpsd: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return capture.Coordinates{}, fmt.Errorf("could not send watch command: %w", err)
	}

	minMode := 2
	if opts.HighAccuracy {
		minMode = 3
	}

	lastMode := 0
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report gpsdReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" {
			continue
		}
		lastMode = report.Mode
		if report.Mode < minMode || report.Lat == nil || report.Lon == nil {
			continue
		}
		return capture.Coordinates{Latitude: *report.Lat, Longitude: *report.Lon}, nil
	}

	if ctx.Err() != nil {
		if lastMode > 0 {
			return capture.Coordinates{}, fmt.Errorf("%w (mode %d): %w", ErrNoFix, lastMode, ctx.Err())
		}
		return capture.Coordinates{}, fmt.Errorf("waiting for gpsd report: %w", ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return capture.Coordinates{}, fmt.Errorf("reading gpsd stream: %w", err)
	}
	return capture.Coordinates{}, fmt.Errorf("gpsd closed the connection: %w", ErrNoFix)
}
