// Package telemetry builds the process logger and the timing metrics
// reported at the end of every command.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/lockplane/schemaclone/internal/config"
)

// LevelEnvVar overrides the configured log level when no flag is given.
const LevelEnvVar = "SCHEMACLONE_LOG_LEVEL"

// ResolveLevel picks the log level: an explicit flag value, then
// SCHEMACLONE_LOG_LEVEL, then the configured level.
func ResolveLevel(flag, configured string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(LevelEnvVar); env != "" {
		return env
	}
	return configured
}

// NewLogger returns a logger writing to stderr.
func NewLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	return NewLoggerWithWriter(os.Stderr, cfg)
}

// NewLoggerWithWriter returns a logger writing to w. Format "json" emits
// one JSON object per line; anything else uses the console writer.
func NewLoggerWithWriter(w io.Writer, cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	writer := w
	switch strings.ToLower(cfg.Format) {
	case "json":
	case "", "console":
		writer = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
			NoColor:    color.NoColor,
		}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func parseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
