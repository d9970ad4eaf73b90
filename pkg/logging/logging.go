// Package logging configures structured logging for the Settle Up binaries.
//
// Usage:
//
//	logging.Setup()                                    // INFO level, from LOG_LEVEL env
//	logging.SetupWithOptions(slog.LevelDebug, false)   // explicit level, colored text
//	logging.SetupWithOptions(slog.LevelInfo, true)     // JSON lines on stdout
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures colored logging at the level specified by LOG_LEVEL env var
// (default: INFO).
func Setup() {
	SetupWithOptions(levelFromEnv(), false)
}

// SetupWithOptions configures the default logger. Colored text goes to stderr for
// humans; JSON goes to stdout for log shippers.
func SetupWithOptions(level slog.Level, json bool) {
	slog.SetDefault(New(os.Stderr, os.Stdout, level, json))
}

// New builds a logger without installing it. text receives colored output, structured
// receives JSON output; only one of them is used.
func New(text, structured io.Writer, level slog.Level, json bool) *slog.Logger {
	if json {
		return slog.New(slog.NewJSONHandler(structured, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(text, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
