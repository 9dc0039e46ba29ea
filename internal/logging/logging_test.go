package logging

import (
	"context"
	"testing"

	"log/slog"

	"github.com/ruslanv/metacbot/internal/config"
)

func TestNewHonorsLevelAndFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		level    slog.Level
		wantJSON bool
	}{
		{name: "json", format: "json", level: slog.LevelWarn, wantJSON: true},
		{name: "text", format: "text", level: slog.LevelDebug},
		{name: "unknown format falls back to text", format: "pretty", level: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: tt.level, Format: tt.format})

			_, isJSON := logger.Handler().(*slog.JSONHandler)
			if isJSON != tt.wantJSON {
				t.Errorf("format %q: json handler = %t, want %t", tt.format, isJSON, tt.wantJSON)
			}

			ctx := context.Background()
			for _, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
				enabled := logger.Enabled(ctx, lvl)
				expected := lvl >= tt.level
				if enabled != expected {
					t.Fatalf("level %v enabled(%v)=%t, want %t", tt.level, lvl, enabled, expected)
				}
			}
		})
	}
}
