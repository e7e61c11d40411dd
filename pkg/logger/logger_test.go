package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestColorHandlerColorsByLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		msg   string
		color string
	}{
		{"error is red", slog.LevelError, "database connection failed", colorRed},
		{"warn is yellow", slog.LevelWarn, "rate limit approaching", colorYellow},
		{"persistence is green", slog.LevelInfo, "persisted contradiction record", colorGreen},
		{"plain info is uncolored", slog.LevelInfo, "starting sweep", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			log.Log(context.Background(), tt.level, tt.msg)

			out := buf.String()
			if tt.color == "" {
				if strings.Contains(out, "\033[") {
					t.Errorf("expected uncolored output, got %q", out)
				}
				return
			}
			if !strings.HasPrefix(out, tt.color) {
				t.Errorf("expected prefix %q, got %q", tt.color, out)
			}
			if !strings.HasSuffix(out, colorReset) {
				t.Errorf("expected reset suffix, got %q", out)
			}
		})
	}
}

func TestNewLoggerLevels(t *testing.T) {
	log := NewLogger("warn", "text")
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}
}
