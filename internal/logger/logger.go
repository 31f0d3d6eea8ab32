package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger writing JSON lines to stdout
func New(level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter builds a logger on an arbitrary writer. Unknown levels fall back to info.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger.Level(ParseLevel(level))
}

// ParseLevel converts a config string into a zerolog level
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
