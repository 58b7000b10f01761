package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level   string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Format  string `mapstructure:"format" envconfig:"LOG_FORMAT"` // json or console
	Service string `mapstructure:"-" ignored:"true"`
}

// New builds the root logger for a binary. The returned logger carries the
// service name on every event; callers derive component loggers from it with
// With().Str("component", ...).
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()

	// Keep the package-global in sync for code logging via zerolog/log.
	log.Logger = zl
	return zl
}
