// Package logging builds the process-wide structured logger. All
// services log JSON to stdout, tag every record with the service name,
// and normalize timestamps to UTC RFC3339 so the api, indexer, and
// ingest streams interleave cleanly in one collector.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return newLogger(os.Stdout, service, level)
}

func newLogger(w io.Writer, service, level string) *slog.Logger {
	parsed := parseLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parsed,
		// Call sites only at debug; resolving them costs a stack walk
		// per record.
		AddSource:   parsed <= slog.LevelDebug,
		ReplaceAttr: normalizeTime,
	})
	return slog.New(handler).With(slog.String("service", service))
}

func normalizeTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
	}
	return a
}

// parseLevel accepts the common level names plus slog's native offset
// forms ("INFO+2", "DEBUG-4"). Unrecognized input falls back to info.
func parseLevel(level string) slog.Level {
	text := strings.TrimSpace(level)
	switch strings.ToLower(text) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(text)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
