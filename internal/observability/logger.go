package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/config"
	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger: JSON lines by default, a colored
// console when LOG_FORMAT=text.
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	// Load already rejected unknown levels.
	level, _ := config.ParseLogLevel(cfg.LogLevel)

	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
