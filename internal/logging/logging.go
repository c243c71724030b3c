// Package logging configures the process-wide slog logger. The TUI owns
// stdout, so logs default to stderr at warn level.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds a logger from SYSMON_LOG_LEVEL, SYSMON_LOG_FORMAT and
// SYSMON_LOG_OUTPUT and installs it as the slog default.
func Setup() *slog.Logger {
	level := parseLevel(os.Getenv("SYSMON_LOG_LEVEL"))
	format := strings.ToLower(os.Getenv("SYSMON_LOG_FORMAT"))

	var writer io.Writer
	switch out := os.Getenv("SYSMON_LOG_OUTPUT"); out {
	case "", "stderr":
		writer = os.Stderr
	case "discard":
		writer = io.Discard
	default:
		file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			writer = os.Stderr
		} else {
			writer = file
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
