// Package logging builds the *slog.Logger instances handed to the rest of
// the server.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a text logger writing to w at the given level name
// (debug, info, warn, error). Unknown names fall back to info.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		return Discard()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discard logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel maps a configuration level name onto a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
