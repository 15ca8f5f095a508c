// Package logger wraps zap with the small surface this project needs:
// leveled sugared logging plus an adapter for badger's logger interface.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New creates a logger. level is one of debug/info/warn/error, format is
// "json" or "console".
func New(level, format string) (*Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "", "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{SugaredLogger: base.Sugar(), base: base}, nil
}

// Nop returns a logger that discards everything. Used as the default and
// in tests.
func Nop() *Logger {
	base := zap.NewNop()
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	base := l.base.Named(name)
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// BadgerAdapter satisfies badger.Logger so the spill store's internal
// logging flows through the same sink.
type BadgerAdapter struct {
	l *Logger
}

// Badger returns an adapter implementing badger's Logger interface.
func (l *Logger) Badger() *BadgerAdapter {
	return &BadgerAdapter{l: l}
}

func (a *BadgerAdapter) Errorf(format string, args ...any)   { a.l.Errorf(format, args...) }
func (a *BadgerAdapter) Warningf(format string, args ...any) { a.l.Warnf(format, args...) }
func (a *BadgerAdapter) Infof(format string, args ...any)    { a.l.Debugf(format, args...) }
func (a *BadgerAdapter) Debugf(format string, args ...any)   { a.l.Debugf(format, args...) }
