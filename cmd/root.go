package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clock-in",
	Short: "Face-verified attendance capture for kiosks",
	Long: `Clock-in captures a photo with exactly one face, resolves where it was
taken and records a check-in or check-out with the HR attendance backend.
Run "clock-in serve" for the kiosk web UI or "clock-in clock" for a headless
capture from image files.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// setupLogger installs the default slog logger described by cfg. A non-empty
// --log-level flag wins over the environment.
func setupLogger(cmd *cobra.Command, cfg config.LogConfig) *slog.Logger {
	level := cfg.Level
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = config.ParseLogLevel(flag)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
