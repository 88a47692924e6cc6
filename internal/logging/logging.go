// Package logging wires zerolog the way the rest of monocle expects:
// console output for interactive use, plain JSON for production, and a
// std-library adapter for the handful of third-party APIs that want one.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a root logger. console selects the human-friendly writer;
// otherwise logs are newline-delimited JSON on w (or os.Stderr if w is nil).
func New(level string, console bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var out io.Writer = w
	if console {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.DateTime,
		}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()

	if lvl, err := zerolog.ParseLevel(level); err == nil {
		logger = logger.Level(lvl)
	}

	return logger
}

// Stdlog adapts a zerolog.Logger to the handful of *log.Logger-shaped
// interfaces third-party packages expect (http.Server.ErrorLog and similar).
type Stdlog struct {
	zerolog.Logger
}

func (l *Stdlog) Printf(format string, args ...any) {
	l.Debug().Msgf(format, args...)
}

func (l *Stdlog) Debugf(format string, args ...any) {
	l.Debug().Msgf(format, args...)
}

func (l *Stdlog) Infof(format string, args ...any) {
	l.Info().Msgf(format, args...)
}

func (l *Stdlog) Warnf(format string, args ...any) {
	l.Warn().Msgf(format, args...)
}

func (l *Stdlog) Errorf(format string, args ...any) {
	l.Error().Msgf(format, args...)
}
