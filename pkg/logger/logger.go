package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

// New logs human-readable lines at info level to stderr.
func New() *Logger { return NewWith(os.Stderr, "info", false) }

// NewWith builds a logger writing to w. Unknown levels fall back to info;
// asJSON switches from console lines to one JSON object per event.
func NewWith(w io.Writer, level string, asJSON bool) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := w
	if !asJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return &Logger{zl: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}
}

func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

// With returns a child logger carrying key=val on every event.
func (l *Logger) With(key string, val any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, val).Logger()}
}

func (l *Logger) Zerolog() *zerolog.Logger { return &l.zl }

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}
