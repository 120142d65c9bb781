// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger setup.
type Options struct {
	Debug  bool
	Format string // "console" or "json"
	Out    io.Writer
}

// Init installs the global logger. Logs always go to stderr by default so
// stdout stays clean for --json output.
func Init(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.WarnLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Format == "json" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}

	if opts.Debug {
		log.Logger = log.With().Caller().Logger()
	}
}

// For returns a child logger tagged with a component name.
func For(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
