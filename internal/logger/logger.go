package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the process logger: a human-readable console writer in
// development, JSON lines on stderr everywhere else.
func New(env string) zerolog.Logger {
	var out io.Writer = os.Stderr
	level := zerolog.InfoLevel

	if env == "" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		level = zerolog.DebugLevel
	}
	if os.Getenv("DEBUG") == "1" {
		level = zerolog.DebugLevel
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "plate-reader").
		Logger()
}
