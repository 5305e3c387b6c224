// Package logging builds the zerolog logger used by the cdk-example CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// FormatEnv selects the log format: "json" or "console" (default).
const FormatEnv = "CDK_EXAMPLE_LOG_FORMAT"

// Options configures New.
type Options struct {
	// Level is a zerolog level name. Empty means info.
	Level string
	// Verbose forces debug level.
	Verbose bool
	// Format overrides FormatEnv.
	Format string
	// Out defaults to os.Stderr.
	Out io.Writer
}

// New creates a logger. Console format is used unless JSON is requested, so
// terminal users get readable output and CI systems can ask for structured
// lines.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			level = parsed
		}
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	format := opts.Format
	if format == "" {
		format = os.Getenv(FormatEnv)
	}

	if strings.EqualFold(format, "json") {
		return zerolog.New(out).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
