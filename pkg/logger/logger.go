// Package logger provides structured logging for sage, built on log/slog
// with a charmbracelet/log handler for human-friendly terminal output and
// an optional JSON file sink for debugging sessions after the fact.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
)

var logFile *os.File

// Init installs the default logger. When file is non-empty, records are
// also written there as JSON. Pretty output goes to stderr so it never
// mixes with streamed responses on stdout.
func Init(level, file string) error {
	handlers := []slog.Handler{prettyHandler(parseLevel(level))}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: parseLevel(level),
		}))
	}

	slog.SetDefault(slog.New(&multiHandler{handlers: handlers}))
	return nil
}

// Close closes the JSON log file if one was opened.
func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// WithComponent returns a logger tagged with the given component name.
func WithComponent(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

func prettyHandler(level slog.Level) slog.Handler {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	l.SetLevel(charmLevel(level))
	return l
}

func parseLevel(level string) slog.Level {
	switch level {
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

func charmLevel(level slog.Level) charmlog.Level {
	switch level {
	case slog.LevelDebug:
		return charmlog.DebugLevel
	case slog.LevelWarn:
		return charmlog.WarnLevel
	case slog.LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}
