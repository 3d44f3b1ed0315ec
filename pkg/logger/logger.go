package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New initializes the process-wide slog.Logger and installs it as the
// default so package-level slog calls share the same handler.
// Log level can be debug, info, warn, error.
func New(level string) *slog.Logger {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
