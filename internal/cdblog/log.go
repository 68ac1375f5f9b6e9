// Package cdblog wires log/slog with the level and format the CLI exposes
// through --log-level, replacing the teacher's bare fmt.Println startup
// banner with structured, filterable records for per-tile skip/error
// events emitted while walking a geocell.
package cdblog

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing text-formatted records to stderr at
// the given level ("debug", "info", "warn", "error"; unknown values
// fall back to "info").
func New(level string) *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
