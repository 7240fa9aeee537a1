package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time format for log messages
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: logger}, nil
}

// Nop returns a logger that writes nothing. Handy in tests.
func Nop() *Logger { return &Logger{zl: zerolog.Nop()} }

// With returns a child logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// A nil *Logger is valid and drops every event.

func (l *Logger) Info(msg string, fields ...Field) {
	if l == nil {
		return
	}
	emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	if l == nil {
		return
	}
	emit(l.zl.Error(), msg, fields)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	if l == nil {
		return
	}
	emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	if l == nil {
		return
	}
	emit(l.zl.Warn(), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		if f != nil {
			f(event)
		}
	}
	event.Msg(msg)
}

// Field adds one key to an event. Build fields with the constructors below.
type Field func(*zerolog.Event)

func String(key, value string) Field {
	return func(e *zerolog.Event) { e.Str(key, value) }
}

func Strings(key string, value []string) Field {
	return func(e *zerolog.Event) { e.Strs(key, value) }
}

func Int(key string, value int) Field {
	return func(e *zerolog.Event) { e.Int(key, value) }
}

func Int64(key string, value int64) Field {
	return func(e *zerolog.Event) { e.Int64(key, value) }
}

func Float64(key string, value float64) Field {
	return func(e *zerolog.Event) { e.Float64(key, value) }
}

func Bool(key string, value bool) Field {
	return func(e *zerolog.Event) { e.Bool(key, value) }
}

// Duration logs d in milliseconds.
func Duration(key string, d time.Duration) Field {
	return func(e *zerolog.Event) { e.Float64(key, float64(d.Microseconds())/1000) }
}

func Error(err error) Field {
	return func(e *zerolog.Event) { e.Err(err) }
}

func Any(key string, value interface{}) Field {
	return func(e *zerolog.Event) { e.Interface(key, value) }
}
