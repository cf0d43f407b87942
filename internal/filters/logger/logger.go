// Package logger provides the structured logger used by the filters binaries.
// Call sites pass a message followed by alternating key/value pairs:
//
//	log.Info("server starting", "address", addr)
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)

	// With returns a child logger that adds keyvals to every entry.
	With(keyvals ...any) Logger
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

type zeroLogger struct {
	logger zerolog.Logger
}

// New returns a logger writing to stdout. Format "text" selects the console
// writer; anything else emits JSON lines. Unknown levels fall back to info.
func New(level, format string) Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) Logger {
	output := w
	if format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		l = zerolog.InfoLevel
	}

	z := zerolog.New(output).Level(l).With().Timestamp().Logger()

	return &zeroLogger{logger: z}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zeroLogger{logger: zerolog.Nop()}
}

func (l *zeroLogger) Debug(msg string, keyvals ...any) {
	l.log(l.logger.Debug(), msg, keyvals...)
}

func (l *zeroLogger) Info(msg string, keyvals ...any) {
	l.log(l.logger.Info(), msg, keyvals...)
}

func (l *zeroLogger) Warn(msg string, keyvals ...any) {
	l.log(l.logger.Warn(), msg, keyvals...)
}

func (l *zeroLogger) Error(msg string, keyvals ...any) {
	l.log(l.logger.Error(), msg, keyvals...)
}

func (l *zeroLogger) With(keyvals ...any) Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		ctx = ctx.Interface(keyString(keyvals[i]), keyvals[i+1])
	}
	return &zeroLogger{logger: ctx.Logger()}
}

func (l *zeroLogger) log(e *zerolog.Event, msg string, keyvals ...any) {
	// Disabled levels return a nil event.
	if e == nil {
		return
	}

	for i := 0; i+1 < len(keyvals); i += 2 {
		key := keyString(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case error:
			e.AnErr(key, v)
		case time.Duration:
			e.Dur(key, v)
		case fmt.Stringer:
			e.Stringer(key, v)
		default:
			e.Interface(key, v)
		}
	}

	e.Msg(msg)
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
