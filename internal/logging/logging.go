package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger. The level comes from LOG_LEVEL; the
// default only shows errors so the terminal UI stays readable.
func Init() {
	InitWriter(os.Stderr, os.Getenv("LOG_LEVEL"))
}

// InitWriter installs a default text logger writing to w at the named level.
func InitWriter(w io.Writer, level string) {
	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: ParseLevel(level),
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps LOG_LEVEL values to slog levels.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "dev", "development", "debug", "trace":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
