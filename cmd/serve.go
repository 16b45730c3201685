package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/clock-in/internal/attendance"
	"github.com/kozaktomas/clock-in/internal/capture"
	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/kozaktomas/clock-in/internal/web"
	"github.com/kozaktomas/clock-in/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the clock-in web server.
The server hosts the kiosk page and the capture session API. Every API call
carries the employee's bearer token, which is forwarded to the attendance
backend when the capture is submitted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies the --port and --host flags over the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

// preloadDetector warms the detection model in the background so the first
// kiosk session does not wait for it.
func preloadDetector(ctx context.Context, detector capture.FaceDetector) {
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_ = detector.Load(loadCtx)
	}()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := setupLogger(cmd, cfg.Log)
	resolveServeHostPort(cmd, cfg)

	if cfg.Backend.URL == "" {
		return errors.New("ATTENDANCE_API_URL environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audit, backend, err := openAuditLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer audit.Close()
	logger.Info("audit log ready", "backend", backend)

	messages, err := loadMessages(cfg)
	if err != nil {
		return err
	}

	detector := newDetector(cfg, logger)
	preloadDetector(ctx, detector)

	// the server never authenticates as itself; each session acts for its caller
	base := attendance.NewClient(cfg.Backend.URL, "", cfg.Backend.Timeout)
	recorder := database.NewRecorder(audit, logger)

	registry, err := handlers.NewRegistry(handlers.SessionDeps{
		Detector: detector,
		GPS:      newPositionProvider(cfg),
		IP:       newIPLocator(cfg),
		ClientFor: func(token string) capture.AttendanceClient {
			return base.WithToken(token)
		},
		Messages: messages,
		Logger:   logger,
		OnClose:  recorder.Record,
	})
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}

	server := web.NewServer(cfg, web.Dependencies{
		Registry:     registry,
		Audit:        audit,
		AuditBackend: backend,
		Logger:       logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting clock-in kiosk on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
