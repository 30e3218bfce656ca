// Package obslog provides the one shared zerolog.Logger every subsystem
// derives its own sub-logger from, so every log line in a run carries a
// consistent set of base fields (service, frame) instead of each package
// inventing its own format.
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the root logger for a simcore process. level follows
// zerolog's own names ("debug", "info", "warn", "error"); an unrecognized
// or empty level falls back to info.
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", "simcore").
		Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// ForModule returns a sub-logger tagging every line with the owning
// module id, used by the host when invoking one module's Tick.
func ForModule(base zerolog.Logger, moduleID string) zerolog.Logger {
	return base.With().Str("module", moduleID).Logger()
}

// ForFrame returns a sub-logger tagging every line with the current
// frame number, used for per-frame diagnostics (scheduler faults,
// recorder drops, snapshot pool exhaustion).
func ForFrame(base zerolog.Logger, frame int64) zerolog.Logger {
	return base.With().Int64("frame", frame).Logger()
}

// ForSubsystem returns a sub-logger tagging every line with a subsystem
// name (e.g. "scheduler", "recorder", "timesync").
func ForSubsystem(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("subsystem", name).Logger()
}
