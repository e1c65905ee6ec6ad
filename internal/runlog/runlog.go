// Package runlog builds the zerolog logger every component in one crawl run
// shares, pre-scoped with the run's identifying fields.
package runlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Options configures the base logger.
type Options struct {
	// Writer receives log output. Defaults to os.Stdout.
	Writer io.Writer

	// Pretty switches to zerolog's human-readable ConsoleWriter, for
	// interactive/dev use; false emits raw JSON lines, for production.
	Pretty bool

	// Level is the minimum level logged. Defaults to zerolog.InfoLevel: the
	// zero value (zerolog.DebugLevel) and zerolog.NoLevel both select it, so
	// debug lines need zerolog.TraceLevel.
	Level zerolog.Level
}

// New builds a base logger per Options, with a timestamp on every line.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	level := opts.Level
	if level == zerolog.NoLevel || level == zerolog.DebugLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ForRun scopes a base logger to one crawl run: every subsequent line carries
// run_id and site_domain, the fields the orchestrator and its collaborators
// log against.
func ForRun(base zerolog.Logger, runID, siteDomain string) zerolog.Logger {
	return base.With().Str("run_id", runID).Str("site_domain", siteDomain).Logger()
}
