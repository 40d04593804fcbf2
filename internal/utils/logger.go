// Package utils carries the small cross-cutting helpers shared by every
// layer: the structured logger and the HTTP error taxonomy.
package utils

import (
	"log/slog"
	"os"
)

// Logger wraps slog so handlers and services can log structured JSON and
// still call Fatal during startup.
type Logger struct {
	*slog.Logger
}

// NewLogger builds a JSON logger at the level named by LOG_LEVEL. Level
// names are case-insensitive; unknown values fall back to info.
func NewLogger(level string) *Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}
