package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used by every gateway component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	// WithContext adds the request id and the active trace and span ids
	// found in ctx.
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field is a typed log attribute.
type Field = zap.Field

// Field constructors.
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
	Time     = zap.Time
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LogConfig selects the level, encoding and destination of log output.
type LogConfig struct {
	Level  string
	Format string
	// Output is "stdout" or "stderr".
	Output string
}

// DefaultLogConfig returns info-level JSON on stdout.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: FormatJSON, Output: "stdout"}
}

// LevelController changes the level of a running logger.
type LevelController interface {
	SetLevel(level string) error
	Level() string
}

type levelController struct {
	level zap.AtomicLevel
}

func (c levelController) SetLevel(level string) error {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	c.level.SetLevel(l)
	return nil
}

func (c levelController) Level() string {
	return c.level.Level().String()
}

// NewLogger creates a logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	logger, _, err := NewLoggerWithLevel(cfg)
	return logger, err
}

// NewLoggerWithLevel creates a logger whose level can be changed while it
// runs, e.g. on configuration reload.
func NewLoggerWithLevel(cfg LogConfig) (Logger, LevelController, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	level := zap.NewAtomicLevelAt(lvl)

	core := zapcore.NewCore(newEncoder(cfg.Format), outputFor(cfg.Output), level)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))

	return &zapLogger{z: z}, levelController{level: level}, nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if strings.EqualFold(format, FormatConsole) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func outputFor(name string) zapcore.WriteSyncer {
	if name == "stderr" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.Lock(os.Stdout)
}

// NewLoggerFromZap wraps an existing zap logger, such as one recording to
// zaptest/observer.
func NewLoggerFromZap(z *zap.Logger) Logger {
	if z == nil {
		return NopLogger()
	}
	return &zapLogger{z: z}
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return &zapLogger{z: zap.NewNop()}
}

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}
