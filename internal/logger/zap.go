package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
}

// defaultZapLevel defines the fallback log level when an unknown level string is provided.
const defaultZapLevel = zapcore.DebugLevel

// toZapLevel converts a textual level to zapcore.Level using known level constants.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

func newEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// newConsoleCore builds a zapcore.Core with a console encoder targeting stdout.
func newConsoleCore(level zap.AtomicLevel) zapcore.Core {
	encoder := zapcore.NewConsoleEncoder(newEncoderConfig())
	ws := zapcore.Lock(os.Stdout) // thread-safe writer
	return zapcore.NewCore(encoder, zapcore.AddSync(ws), level)
}

// newZapLogger constructs a sugared zap logger with the provided level string.
func newZapLogger(levelStr string) *Logger {
	level := zap.NewAtomicLevelAt(toZapLevel(levelStr))
	return &Logger{
		SugaredLogger: zap.New(newConsoleCore(level)).Sugar(),
		level:         level,
	}
}

// New builds a standalone logger; tests use it with a custom sink.
func New(levelStr string, ws zapcore.WriteSyncer) *Logger {
	level := zap.NewAtomicLevelAt(toZapLevel(levelStr))
	core := zapcore.NewCore(zapcore.NewJSONEncoder(newEncoderConfig()), ws, level)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), level: level}
}

// SetLevel changes the minimum enabled level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level.SetLevel(toZapLevel(levelStr))
}

// Level returns the current minimum level as text.
func (l *Logger) Level() string {
	return l.level.Level().String()
}

// Tee returns a logger that additionally writes entries at or above minLevel
// to ws as JSON lines. The receiver is left untouched.
func (l *Logger) Tee(ws zapcore.WriteSyncer, minLevel string) *Logger {
	remote := zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		ws,
		zap.NewAtomicLevelAt(toZapLevel(minLevel)),
	)
	base := l.Desugar()
	teed := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, remote)
	}))
	return &Logger{SugaredLogger: teed.Sugar(), level: l.level}
}
