// Package logging builds the structured zerolog.Logger every service
// constructor in this module accepts, and adapts it to the narrower
// four-method Logger interface for code that wants to stay decoupled from
// zerolog's concrete type.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how New builds the base logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Pretty selects a human-readable console writer instead of JSON lines.
	Pretty bool
	// Component, when set, is attached to every record as "component".
	Component string
	Output    io.Writer
}

func (c Config) level() zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a zerolog.Logger from cfg. Every long-lived service
// constructor in this module (scheduler, configbackup, bridge, transport)
// takes the resulting logger as a plain zerolog.Logger field.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).With().Timestamp().Logger().Level(cfg.level())
	if cfg.Component != "" {
		logger = logger.With().Str("component", cfg.Component).Logger()
	}
	return logger
}

// Logger is the narrow four-method shape used by code that wants to stay
// decoupled from zerolog's concrete type.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// Adapter implements Logger by dispatching onto a wrapped zerolog.Logger.
// A single optional map[string]any argument is merged in as structured
// fields; any other shape is ignored.
type Adapter struct {
	log zerolog.Logger
}

// NewAdapter wraps log as a Logger.
func NewAdapter(log zerolog.Logger) Adapter {
	return Adapter{log: log}
}

func (a Adapter) Debug(msg string, fields ...any) { a.emit(zerolog.DebugLevel, msg, fields...) }
func (a Adapter) Info(msg string, fields ...any)  { a.emit(zerolog.InfoLevel, msg, fields...) }
func (a Adapter) Warn(msg string, fields ...any)  { a.emit(zerolog.WarnLevel, msg, fields...) }
func (a Adapter) Error(msg string, fields ...any) { a.emit(zerolog.ErrorLevel, msg, fields...) }

func (a Adapter) emit(level zerolog.Level, msg string, fields ...any) {
	logger := a.log
	if len(fields) == 1 {
		if m, ok := fields[0].(map[string]any); ok {
			logger = logger.With().Fields(m).Logger()
		}
	}
	logger.WithLevel(level).Msg(msg)
}

var _ Logger = Adapter{}
