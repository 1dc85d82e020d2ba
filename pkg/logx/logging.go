// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so the rest of the codebase never imports zerolog directly:
// components receive a Logger, derive scoped loggers with With(), and emit
// events through level methods taking Field options.
package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field mutates a zerolog event. Fields are applied in order; if the same key
// is set twice, the later one wins.
type Field func(e *zerolog.Event)

func String(k, v string) Field      { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field     { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Bool(k string, v bool) Field   { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Time(k string, v time.Time) Field {
	return func(e *zerolog.Event) { e.Time(k, v) }
}
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Any(k string, v any) Field { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger is a lightweight structured logger.
// The zero value is a safe no-op logger.
type Logger struct {
	base    zerolog.Logger
	hasBase bool
	fields  []Field
}

// Nop returns a logger that never writes anything.
func Nop() Logger {
	return Logger{base: zerolog.Nop(), hasBase: true}
}

// SetLevel adjusts the process-wide minimum level. Loggers from this package
// are gated by it, so a config reload re-levels every existing logger at
// once.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level, zerolog.InfoLevel))
}

// NewConsole creates a console logger writing human-readable lines to stdout.
// The process-wide level is set from level.
func NewConsole(level string) Logger {
	SetLevel(level)
	return newWriterLogger(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat})
}

// NewWriter creates a JSON logger writing to w with its own level floor.
// Used for file sinks and tests.
func NewWriter(w io.Writer, level string) Logger {
	return newWriterLogger(w).Level(level)
}

func newWriterLogger(w io.Writer) Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"
	zl := zerolog.New(w).With().Timestamp().Logger()
	return Logger{base: zl, hasBase: true}
}

// With returns a derived logger carrying additional fixed fields.
func (l Logger) With(fields ...Field) Logger {
	nl := l
	nl.fields = append(append([]Field(nil), l.fields...), fields...)
	return nl
}

// Level returns a derived logger with the level overridden.
func (l Logger) Level(level string) Logger {
	nl := l
	nl.base = l.root().Level(ParseLevel(level, zerolog.InfoLevel))
	nl.hasBase = true
	return nl
}

func (l Logger) root() zerolog.Logger {
	if l.hasBase {
		return l.base
	}
	return zerolog.Nop()
}

func (l Logger) IsZero() bool { return !l.hasBase && len(l.fields) == 0 }

func (l Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range l.fields {
		f(e)
	}
	for _, f := range fields {
		f(e)
	}
	e.Msg(msg)
}

func (l Logger) Debug(msg string, fields ...Field) { zl := l.root(); l.emit(zl.Debug(), msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { zl := l.root(); l.emit(zl.Info(), msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { zl := l.root(); l.emit(zl.Warn(), msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { zl := l.root(); l.emit(zl.Error(), msg, fields) }

// ParseLevel maps a config string to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
