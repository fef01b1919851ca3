package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// BufferedHandler is a slog.Handler that keeps records in memory as JSON
// lines. Tests use it to check what the compositor and workflow logged.
type BufferedHandler struct {
	level  slog.Leveler
	mu     *sync.Mutex
	buffer *bytes.Buffer
	attrs  []slog.Attr
	groups []string
}

// NewBufferedHandler returns an empty handler. A nil level captures
// everything.
func NewBufferedHandler(level slog.Leveler) *BufferedHandler {
	return &BufferedHandler{
		level:  level,
		mu:     &sync.Mutex{},
		buffer: &bytes.Buffer{},
	}
}

// Enabled implements slog.Handler.
func (h *BufferedHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferedHandler) Handle(_ context.Context, r slog.Record) error {
	entry := bufferedEntry{
		Level:   r.Level.String(),
		Message: r.Message,
	}
	for _, attr := range h.attrs {
		entry.Attrs = append(entry.Attrs, h.prefixed(attr))
	}
	r.Attrs(func(attr slog.Attr) bool {
		entry.Attrs = append(entry.Attrs, h.prefixed(attr))
		return true
	})

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer.Write(data)
	h.buffer.WriteByte('\n')
	return nil
}

func (h *BufferedHandler) prefixed(attr slog.Attr) string {
	if len(h.groups) == 0 {
		return attr.String()
	}
	return strings.Join(h.groups, ".") + "." + attr.String()
}

// WithAttrs implements slog.Handler. The returned handler shares the buffer.
func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	clone := *h
	clone.attrs = merged
	return &clone
}

// WithGroup implements slog.Handler. The returned handler shares the buffer.
func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)

	clone := *h
	clone.groups = groups
	return &clone
}

// String returns everything captured so far.
func (h *BufferedHandler) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.String()
}

// Contains reports whether the captured output contains s.
func (h *BufferedHandler) Contains(s string) bool {
	return strings.Contains(h.String(), s)
}

// Lines returns the number of records captured.
func (h *BufferedHandler) Lines() int {
	out := strings.TrimSpace(h.String())
	if out == "" {
		return 0
	}
	return len(strings.Split(out, "\n"))
}

// Reset drops all captured records.
func (h *BufferedHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer.Reset()
}

type bufferedEntry struct {
	Level   string   `json:"level"`
	Message string   `json:"message"`
	Attrs   []string `json:"attrs,omitempty"`
}
