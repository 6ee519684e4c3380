// Package logger provides a zap-based, context-aware application logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a Logger writes.
type Level int8

const (
	LevelDebug = Level(zapcore.DebugLevel)
	LevelInfo  = Level(zapcore.InfoLevel)
	LevelWarn  = Level(zapcore.WarnLevel)
	LevelError = Level(zapcore.ErrorLevel)
)

// TraceIDFn extracts a trace id from a context. It may return "".
type TraceIDFn func(ctx context.Context) string

// Logger writes structured JSON records. Every record carries the service
// name and, when traceID yields one, the active trace id.
type Logger struct {
	z       *zap.SugaredLogger
	traceID TraceIDFn
}

// New builds a Logger writing JSON lines to w.
func New(w io.Writer, minLevel Level, service string, traceID TraceIDFn) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(zapcore.Level(minLevel)),
	)
	z := zap.New(core).With(zap.String("service", service))
	return &Logger{z: z.Sugar(), traceID: traceID}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

// ParseLevel maps debug, info, warn and error to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// With returns a child Logger that adds kv to every record.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.With(kv...), traceID: l.traceID}
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.z.Debugw(msg, l.withTrace(ctx, kv)...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.z.Infow(msg, l.withTrace(ctx, kv)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	l.z.Warnw(msg, l.withTrace(ctx, kv)...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	l.z.Errorw(msg, l.withTrace(ctx, kv)...)
}

// Sync flushes buffered records.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) withTrace(ctx context.Context, kv []any) []any {
	if l.traceID == nil || ctx == nil {
		return kv
	}
	if id := l.traceID(ctx); id != "" {
		return append(kv, "trace_id", id)
	}
	return kv
}
