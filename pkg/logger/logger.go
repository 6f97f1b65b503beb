//go:build !logless

// Package logger provides the process-wide zerolog instance used by the
// facedetect packages for structured, leveled diagnostics.
package logger

import (
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Log is the base logger. The cascade and facedetect packages derive
// component-scoped loggers from it via Named rather than writing to it
// directly.
var Log = zlog.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// Named returns a logger with a "component" field set, so log lines from
// different packages (the cascade driver, the public facedetect API) can be
// told apart.
func Named(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
