package logger

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements contracts.Logger on top of Uber's zap.
type ZapLogger struct {
	logger atomic.Pointer[zap.Logger]
	level  zap.AtomicLevel
}

// NewZapLogger creates a production zap logger writing JSON to stderr.
func NewZapLogger() contracts.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger, err := newZap(level, "stderr")
	if err != nil {
		logger = zap.NewNop()
	}
	z := &ZapLogger{level: level}
	z.logger.Store(logger)
	return z
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// as a fallback when no logger is configured for an internal component.
func NewNopLogger() contracts.Logger {
	z := &ZapLogger{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
	z.logger.Store(zap.NewNop())
	return z
}

// NewFromZap wraps an existing zap logger. The level filter starts at Info.
func NewFromZap(l *zap.Logger) contracts.Logger {
	z := &ZapLogger{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
	z.logger.Store(l)
	return z
}

func newZap(level zap.AtomicLevel, output string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{output}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	return cfg.Build(zap.AddCallerSkip(2))
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.log(zapcore.InfoLevel, msg, fields...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.log(zapcore.DebugLevel, msg, fields...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.log(zapcore.WarnLevel, msg, fields...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.log(zapcore.FatalLevel, msg, fields...)
	os.Exit(1)
}

// Field returns a field constructor.
func (z *ZapLogger) Field() contracts.Field {
	return zapField{}
}

// SetLevel sets the logging level
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

// SetDestination rebuilds the underlying logger for a new output. FileLog
// requires a path; an unusable destination keeps the current logger.
func (z *ZapLogger) SetDestination(dest contracts.LogDestination, filePath ...string) {
	output := "stderr"
	if dest == contracts.FileLog {
		if len(filePath) == 0 || filePath[0] == "" {
			z.Warn("file log destination requested without a path")
			return
		}
		output = filePath[0]
	}

	logger, err := newZap(z.level, output)
	if err != nil {
		z.Error("failed to switch log destination", z.Field().Error("error", err))
		return
	}
	if old := z.logger.Swap(logger); old != nil {
		_ = old.Sync()
	}
}

func (z *ZapLogger) log(level zapcore.Level, msg string, fields ...contracts.Field) {
	if !z.level.Enabled(level) {
		return
	}

	zfs := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if f, ok := field.(zapField); ok && f.set {
			zfs = append(zfs, f.field)
		}
	}

	if ce := z.logger.Load().Check(level, msg); ce != nil {
		ce.Write(zfs...)
	}
}

func toZapLevel(level contracts.LogLevel) zapcore.Level {
	switch level {
	case contracts.DebugLevel:
		return zapcore.DebugLevel
	case contracts.WarnLevel:
		return zapcore.WarnLevel
	case contracts.ErrorLevel:
		return zapcore.ErrorLevel
	case contracts.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// zapField implements contracts.Field by wrapping a zap.Field.
type zapField struct {
	field zap.Field
	set   bool
}

func wrap(f zap.Field) contracts.Field { return zapField{field: f, set: true} }

func (zapField) Bool(key string, val bool) contracts.Field       { return wrap(zap.Bool(key, val)) }
func (zapField) Int(key string, val int) contracts.Field         { return wrap(zap.Int(key, val)) }
func (zapField) Float64(key string, val float64) contracts.Field { return wrap(zap.Float64(key, val)) }
func (zapField) String(key string, val string) contracts.Field   { return wrap(zap.String(key, val)) }
func (zapField) Strings(key string, val []string) contracts.Field {
	return wrap(zap.Strings(key, val))
}
func (zapField) Time(key string, val time.Time) contracts.Field { return wrap(zap.Time(key, val)) }
func (zapField) Duration(key string, val time.Duration) contracts.Field {
	return wrap(zap.Duration(key, val))
}
func (zapField) Int64(key string, val int64) contracts.Field   { return wrap(zap.Int64(key, val)) }
func (zapField) Error(key string, val error) contracts.Field   { return wrap(zap.NamedError(key, val)) }
func (zapField) Uint64(key string, val uint64) contracts.Field { return wrap(zap.Uint64(key, val)) }
func (zapField) Uint32(key string, val uint32) contracts.Field { return wrap(zap.Uint32(key, val)) }
func (zapField) Uint8(key string, val uint8) contracts.Field   { return wrap(zap.Uint8(key, val)) }
