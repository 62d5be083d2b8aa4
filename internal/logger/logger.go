package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup initializes the global zerolog logger based on environment configuration.
//   - level: log level string (trace, debug, info, warn, error, fatal, panic)
//   - format: "json" for machine-readable output, "pretty" for human-readable dev output
//
// Logs are written to stderr so command output on stdout stays parseable.
func Setup(level, format string) zerolog.Logger {
	return New(os.Stderr, level, format)
}

// New builds a logger writing to w. Tests pass io.Discard or a buffer.
func New(w io.Writer, level, format string) zerolog.Logger {
	var writer io.Writer

	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	} else {
		writer = w
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}
