package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level controls the verbosity of a Logger. The zero value is LevelInfo.
type Level int

const (
	LevelInfo Level = iota
	LevelDebug
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "info"
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger wraps a zerolog logger. All packages take a *Logger so that callers
// can share one sink and level across the pipeline.
type Logger struct {
	z zerolog.Logger
}

type Config struct {
	Level  Level
	Output io.Writer
}

func NewLogger(c Config) *Logger {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	z := zerolog.New(out).With().Timestamp().Logger().Level(c.Level.zerolog())
	return &Logger{z: z}
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{z: zerolog.Nop()}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.z.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.z.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.z.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.z.Error().Msgf(format, args...)
}

// WithField returns a logger with a constant key/value attached to every line.
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{z: l.z.With().Str(key, value).Logger()}
}
