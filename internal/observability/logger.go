package observability

import (
	"log/slog"

	"github.com/adrian-cg/earthquakes/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. Unknown levels fall back to info; any
// format other than "text" is JSON.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "quakemap")
	slog.SetDefault(logger)
	return logger
}
