package utils

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel mirrors zapcore.Level so call sites never import zap directly.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field is a structured key-value pair attached to a log entry.
type Field = zap.Field

// Logger provides structured, leveled, per-component logging backed by zap.
type Logger struct {
	z         *zap.Logger
	component string
}

// LoggerConfig configures a logger instance.
type LoggerConfig struct {
	Level      LogLevel
	Component  string
	Colorize   bool
	ShowCaller bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(config LoggerConfig) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if config.Colorize {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(config.Level.zapLevel()),
	)

	opts := []zap.Option{}
	if config.ShowCaller {
		opts = append(opts, zap.AddCaller())
	}

	z := zap.New(core, opts...)
	if config.Component != "" {
		z = z.Named(config.Component)
	}

	return &Logger{z: z, component: config.Component}
}

// DefaultLogger creates a logger with sensible defaults for a named component.
func DefaultLogger(component string) *Logger {
	return NewLogger(LoggerConfig{
		Level:      INFO,
		Component:  component,
		Colorize:   true,
		ShowCaller: false,
	})
}

// With returns a derived logger that always includes the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...), component: l.component}
}

// Named returns a derived logger scoped under an additional component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{z: l.z.Named(component), component: component}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }

// Field constructors, kept so call sites read the same regardless of backend.
func String(key, value string) Field          { return zap.String(key, value) }
func Int(key string, value int) Field         { return zap.Int(key, value) }
func Int64(key string, value int64) Field     { return zap.Int64(key, value) }
func Uint64(key string, value uint64) Field   { return zap.Uint64(key, value) }
func Uint32(key string, value uint32) Field   { return zap.Uint32(key, value) }
func Float64(key string, value float64) Field { return zap.Float64(key, value) }
func Bool(key string, value bool) Field       { return zap.Bool(key, value) }
func Err(err error) Field                     { return zap.Error(err) }
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}
func Any(key string, value interface{}) Field { return zap.Any(key, value) }

// Global logger instance used by the package-level convenience functions.
var globalLogger = DefaultLogger("kestrel")

// SetGlobalLogger sets the global logger instance.
func SetGlobalLogger(logger *Logger) { globalLogger = logger }

func Debug(msg string, fields ...Field) { globalLogger.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { globalLogger.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { globalLogger.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { globalLogger.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { globalLogger.Fatal(msg, fields...) }
