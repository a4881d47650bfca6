package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogLevel is a logging.level / -log-level value.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// logLevels maps accepted spellings to levels. "warning" is kept for
// older configs.
var logLevels = map[string]LogLevel{
	"error":   LogLevelError,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"info":    LogLevelInfo,
	"debug":   LogLevelDebug,
}

func parseLogLevel(level string) (LogLevel, error) {
	l, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return "", fmt.Errorf("invalid log level %q (must be error, warn, info or debug)", level)
	}
	return l, nil
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// setupLogger returns the daemon's root logger: slog text on w, tagged
// with the program name and version.
func setupLogger(w io.Writer, level LogLevel) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return slog.New(handler).With("app", "flightmouse", "version", version)
}

// withComponent scopes logger to one part of the daemon
// (reader, throttle, rudder, control, status).
func withComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
