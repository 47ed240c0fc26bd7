// Package logger provides the structured logger used across fich.ai.
//
// Components depend on the Logger interface and build fields with the typed
// helpers in this package (logger.String, logger.Error, ...). The only
// implementation is backed by zap.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum level a logger emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Output formats accepted by NewZapLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Field is a single structured logging attribute.
type Field = zap.Field

// Logger is the logging contract shared by all packages.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that always includes fields.
	With(fields ...Field) Logger
	// Module returns a child logger tagged with a component name.
	Module(name string) Logger
	// Sync flushes buffered entries.
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

// ParseLevel converts a configuration string into a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn, "warning":
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewZapLogger creates a Logger writing to w. format is FormatJSON or
// FormatConsole; anything else falls back to JSON.
func NewZapLogger(w io.Writer, level LogLevel, format string) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == FormatConsole {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(level.zapLevel()))
	return &zapLogger{z: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// NewStdoutLogger creates the process logger from configuration values.
func NewStdoutLogger(level, format, service string) Logger {
	l := NewZapLogger(os.Stdout, ParseLevel(level), format)
	if service != "" {
		l = l.With(String("service", service))
	}
	return l
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	if z == nil {
		return NewNop()
	}
	return &zapLogger{z: z}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) Module(name string) Logger {
	return &zapLogger{z: l.z.Named(name)}
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

// Zap exposes the underlying zap logger for libraries that want one.
func Zap(l Logger) *zap.Logger {
	if zl, ok := l.(*zapLogger); ok {
		return zl.z
	}
	return zap.NewNop()
}

// Field constructors.

func String(key, value string) Field            { return zap.String(key, value) }
func Strings(key string, values []string) Field { return zap.Strings(key, values) }
func Int(key string, value int) Field           { return zap.Int(key, value) }
func Int64(key string, value int64) Field       { return zap.Int64(key, value) }
func Uint64(key string, value uint64) Field     { return zap.Uint64(key, value) }
func Float64(key string, value float64) Field   { return zap.Float64(key, value) }
func Bool(key string, value bool) Field         { return zap.Bool(key, value) }
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}
func Time(key string, value time.Time) Field { return zap.Time(key, value) }
func Any(key string, value any) Field        { return zap.Any(key, value) }

// Error attaches err under the "error" key.
func Error(err error) Field { return zap.Error(err) }
