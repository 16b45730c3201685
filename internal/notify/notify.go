// Package notify holds the notification sinks a capture session reports to.
package notify

import (
	"log/slog"

	"github.com/kozaktomas/clock-in/internal/capture"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Info(msg string)    { l.logger.Info("notification", "level", LevelInfo, "message", msg) }
func (l *Log) Success(msg string) { l.logger.Info("notification", "level", LevelSuccess, "message", msg) }
func (l *Log) Error(msg string)   { l.logger.Warn("notification", "level", LevelError, "message", msg) }

// Func adapts a function to capture.Notifier.
type Func func(Notification)

func (f Func) Info(msg string)    { f(Notification{Level: LevelInfo, Message: msg}) }
func (f Func) Success(msg string) { f(Notification{Level: LevelSuccess, Message: msg}) }
func (f Func) Error(msg string)   { f(Notification{Level: LevelError, Message: msg}) }

type multi []capture.Notifier

// Multi sends every notification to all sinks in order. Nil sinks are skipped.
func Multi(sinks ...capture.Notifier) capture.Notifier {
	m := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Info(msg string) {
	for _, s := range m {
		s.Info(msg)
	}
}

func (m multi) Success(msg string) {
	for _, s := range m {
		s.Success(msg)
	}
}

func (m multi) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}
