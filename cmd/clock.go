package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/clock-in/internal/attendance"
	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/kozaktomas/clock-in/internal/notify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Record an attendance from image files",
	Long: `Run one capture session without a browser. Frames are read from an image
file or a directory of images (cycled in name order) until exactly one face
is detected. The position comes from the configured GPS source, falling back
to IP geolocation; an IP position must be confirmed with --accept-approximate
or replaced with --lat and --lng.

Examples:
  clock-in clock --frames ./webcam --type check-in
  clock-in clock --frames selfie.jpg --type check-out --lat 50.08 --lng 14.42`,
	Args: cobra.NoArgs,
	RunE: runClock,
}

func init() {
	rootCmd.AddCommand(clockCmd)

	clockCmd.Flags().String("type", string(capture.KindCheckIn), "Attendance type: check-in or check-out")
	clockCmd.Flags().String("frames", "", "Image file or directory of images to use as the camera (required)")
	clockCmd.Flags().String("token", "", "Bearer token for the attendance backend (overrides ATTENDANCE_API_TOKEN)")
	clockCmd.Flags().Float64("lat", 0, "Latitude for an approximate position")
	clockCmd.Flags().Float64("lng", 0, "Longitude for an approximate position")
	clockCmd.Flags().Bool("accept-approximate", false, "Submit an IP-based position without correcting it")
	clockCmd.Flags().Duration("timeout", time.Minute, "Give up when no single face is found within this time")
	_ = clockCmd.MarkFlagRequired("frames")
}

const clockPollInterval = 100 * time.Millisecond

// fileFrames is a video source backed by image files. Every read returns the
// next file, wrapping around at the end.
type fileFrames struct {
	mu     sync.Mutex
	frames [][]byte
	next   int
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp":
		return true
	}
	return false
}

func loadFrames(path string) (*fileFrames, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to list frames: %w", err)
		}
		files = files[:0]
		for _, e := range entries {
			if !e.IsDir() && isFrameFile(e.Name()) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", path)
	}

	f := &fileFrames{}
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s: %w", name, err)
		}
		f.frames = append(f.frames, data)
	}
	return f, nil
}

// ReadFrame implements capture.VideoSource.
func (f *fileFrames) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	frame := f.frames[f.next%len(f.frames)]
	f.next++
	return append([]byte(nil), frame...), nil
}

func (f *fileFrames) Close() error { return nil }

// waitFor polls the session until done accepts a snapshot, updating the
// spinner with describe. It fails when the session closes or ctx ends.
func waitFor(ctx context.Context, sess *capture.Session, bar *progressbar.ProgressBar,
	describe func(capture.Snapshot) string, done func(capture.Snapshot) bool,
) (capture.Snapshot, error) {
	ticker := time.NewTicker(clockPollInterval)
	defer ticker.Stop()

	for {
		snap := sess.Snapshot()
		if done(snap) {
			return snap, nil
		}
		if snap.Phase == capture.PhaseClosed {
			return snap, capture.ErrSessionClosed
		}
		bar.Describe(describe(snap))
		_ = bar.Add(1)

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newSpinner() *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

// confirmPosition applies --lat/--lng to an approximate position, or checks
// that the user accepted it as is.
func confirmPosition(cmd *cobra.Command, sess *capture.Session, snap capture.Snapshot, logger *slog.Logger) error {
	override := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
	if override && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")) {
		return errors.New("--lat and --lng must be given together")
	}

	if !snap.RequiresMapConfirmation {
		if override {
			logger.Warn("ignoring --lat/--lng, the position came from GPS")
		}
		return nil
	}
	if override {
		return sess.MoveMarker(mustGetFloat64(cmd, "lat"), mustGetFloat64(cmd, "lng"))
	}
	if !mustGetBool(cmd, "accept-approximate") {
		return fmt.Errorf("position %.5f, %.5f is only approximate: pass --lat and --lng or --accept-approximate",
			snap.Position.Latitude, snap.Position.Longitude)
	}
	return nil
}

func runClock(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := setupLogger(cmd, cfg.Log)

	kind, err := capture.ParseKind(mustGetString(cmd, "type"))
	if err != nil {
		return err
	}
	token := mustGetString(cmd, "token")
	if token == "" {
		token = cfg.Backend.Token
	}
	if cfg.Backend.URL == "" {
		return errors.New("ATTENDANCE_API_URL environment variable is required")
	}
	if token == "" {
		return errors.New("a backend token is required: set ATTENDANCE_API_TOKEN or pass --token")
	}

	frames, err := loadFrames(mustGetString(cmd, "frames"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	audit, _, err := openAuditLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer audit.Close()

	messages, err := loadMessages(cfg)
	if err != nil {
		return err
	}

	sess, err := capture.NewSession(capture.Options{
		Detector: newDetector(cfg, logger),
		GPS:      newPositionProvider(cfg),
		IP:       newIPLocator(cfg),
		Client:   attendance.NewClient(cfg.Backend.URL, token, cfg.Backend.Timeout),
		Notifier: notify.NewLog(logger),
		Messages: messages,
		Logger:   logger,
		OnClose:  database.NewRecorder(audit, logger).Record,
	})
	if err != nil {
		return err
	}
	if err := sess.Open(kind, frames); err != nil {
		return err
	}
	defer sess.Cancel()

	fmt.Println(headerStyle.Render(kind.Title()))
	bar := newSpinner()
	defer bar.Finish()

	scanCtx, scanCancel := context.WithTimeout(ctx, mustGetDuration(cmd, "timeout"))
	defer scanCancel()
	snap, err := waitFor(scanCtx, sess, bar,
		func(s capture.Snapshot) string { return s.FaceSignal.Reason },
		func(s capture.Snapshot) bool { return s.CanCapture || s.ErrorMessage != "" },
	)
	if err != nil {
		return fmt.Errorf("no capture possible: %s", snap.FaceSignal.Reason)
	}
	if !snap.CanCapture {
		return errors.New(snap.ErrorMessage)
	}
	if err := sess.Capture(ctx); err != nil {
		return err
	}

	snap, err = waitFor(ctx, sess, bar,
		func(capture.Snapshot) string { return "Resolving location" },
		func(s capture.Snapshot) bool { return !s.Locating },
	)
	if err != nil {
		return err
	}
	if snap.Position == nil {
		return errors.New(snap.ErrorMessage)
	}
	if err := confirmPosition(cmd, sess, snap, logger); err != nil {
		return err
	}

	pos := sess.Snapshot().Position
	bar.Describe("Submitting attendance")
	record, err := sess.Submit(ctx)
	_ = bar.Finish()
	if err != nil {
		fmt.Println(errorStyle.Render(sess.Snapshot().ErrorMessage))
		return err
	}

	fmt.Println(successStyle.Render(record.Message))
	fmt.Println(field("Type", record.Type))
	fmt.Println(field("Status", record.Status))
	fmt.Println(field("Time", record.Time.Local().Format(time.DateTime)))
	fmt.Println(field("Position", fmt.Sprintf("%.6f, %.6f (%s)", pos.Latitude, pos.Longitude, pos.Provenance)))
	return nil
}
