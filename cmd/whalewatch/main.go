// Package main is the entry point for the whalewatch service.
package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

func main() {
	Execute()
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler)
}

// truncateURL shortens a URL for logging.
func truncateURL(u string) string {
	if len(u) <= 48 {
		return u
	}
	return u[:40] + "..." + u[len(u)-4:]
}
