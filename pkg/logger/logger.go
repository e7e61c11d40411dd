// Package logger provides a colored slog handler for terminal output.
// Warnings render yellow, errors red, and persistence messages green so
// long-running sweeps are easy to scan.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ANSI escape codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// greenKeywords highlight database persistence messages.
var greenKeywords = []string{"persist", "persisted", "superseded", "resolved", "merged"}

// ColorHandler wraps a slog.Handler and colorizes records by level.
type ColorHandler struct {
	inner slog.Handler
	out   io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
}

// NewColorHandler creates a handler writing colored text records to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		inner: slog.NewTextHandler(w, opts),
		out:   w,
		mu:    &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle writes the record, wrapped in a color escape when one applies.
func (h *ColorHandler) Handle(ctx context.Context, record slog.Record) error {
	color := colorFor(record)
	if color == "" {
		return h.inner.Handle(ctx, record)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.out, color); err != nil {
		return err
	}
	if err := h.inner.Handle(ctx, record); err != nil {
		return err
	}
	_, err := io.WriteString(h.out, colorReset)
	return err
}

// WithAttrs returns a new handler with the given attributes.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{
		inner: h.inner.WithAttrs(attrs),
		out:   h.out,
		mu:    h.mu,
		attrs: append(h.attrs, attrs...),
	}
}

// WithGroup returns a new handler with the given group name.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{
		inner: h.inner.WithGroup(name),
		out:   h.out,
		mu:    h.mu,
		attrs: h.attrs,
	}
}

func colorFor(record slog.Record) string {
	switch {
	case record.Level >= slog.LevelError:
		return colorRed
	case record.Level >= slog.LevelWarn:
		return colorYellow
	}
	msg := strings.ToLower(record.Message)
	for _, kw := range greenKeywords {
		if strings.Contains(msg, kw) {
			return colorGreen
		}
	}
	return ""
}

// NewDefaultLogger creates a colored logger on stderr at the given level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewLogger creates a logger from a level name and format. Format "json"
// produces machine-readable records; anything else is colored text.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}
	return NewDefaultLogger(lvl)
}
