// Package logging defines the structured logging contract used across
// the engine and its zap-backed production implementation. Components
// receive the Logger interface so tests can swap in NoOpLogger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with free-form fields.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// NoOpLogger discards all log output.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// ZapLogger adapts a zap logger to the Logger interface.
type ZapLogger struct {
	zap *zap.Logger
}

// New builds a ZapLogger for the given level ("debug".."error") and
// format ("json" or "console"), writing to stdout.
func New(level, format string) (*ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &ZapLogger{zap: logger}, nil
}

// NewWithZap wraps an existing zap logger.
func NewWithZap(z *zap.Logger) *ZapLogger {
	return &ZapLogger{zap: z}
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.zap.Info(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields map[string]interface{}) {
	l.zap.Error(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.zap.Warn(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.zap.Debug(msg, toZapFields(fields)...)
}

// Sync flushes buffered log entries. Call before process exit.
func (l *ZapLogger) Sync() error {
	return l.zap.Sync()
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
