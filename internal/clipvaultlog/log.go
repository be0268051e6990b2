// Package clipvaultlog is the structured logging facade shared by every
// package in this module, built on github.com/rs/zerolog.
package clipvaultlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Components obtain a scoped child via
// WithComponent rather than logging against Logger directly.
var Logger zerolog.Logger

func init() {
	Init(Config{})
}

// Config configures the global logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string

	// JSON selects structured JSON output instead of console formatting.
	JSON bool

	// Output is where log lines are written. Defaults to os.Stderr.
	Output io.Writer
}

// Init (re)configures the global Logger. Called once at process start by
// cmd/clipvault-search; tests may call it to redirect output or raise
// verbosity.
func Init(cfg Config) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.JSON {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}

	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "", "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a child logger tagging every entry with the given
// component name (e.g. "store", "fuzzy", "search").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
