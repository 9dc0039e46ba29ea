package logging

import (
	"log/slog"
	"os"

	"github.com/ruslanv/metacbot/internal/config"
)

// New constructs a slog.Logger for the configured level and format. Formats
// other than "json" render as text, so a bad config value never blocks a run.
func New(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
