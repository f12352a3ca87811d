// Package logger provides a zap-based application logger that stamps log
// records with the trace ID of the request context.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceIDFn extracts a trace ID from the context, or returns "" when the
// context carries no span.
type TraceIDFn func(ctx context.Context) string

// Logger wraps a zap sugared logger with context-aware methods.
type Logger struct {
	z         *zap.SugaredLogger
	traceIDFn TraceIDFn
}

// New builds a production JSON logger for the named service.
func New(service string, traceIDFn TraceIDFn) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]interface{}{"service": service}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{z: z.Sugar(), traceIDFn: traceIDFn}, nil
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Debugw(msg, l.with(ctx, kv)...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Infow(msg, l.with(ctx, kv)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Warnw(msg, l.with(ctx, kv)...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, kv ...interface{}) {
	l.z.Errorw(msg, l.with(ctx, kv)...)
}

// Sync flushes buffered records. Call before process exit.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) with(ctx context.Context, kv []interface{}) []interface{} {
	if l.traceIDFn == nil {
		return kv
	}
	if id := l.traceIDFn(ctx); id != "" {
		kv = append(kv, "trace_id", id)
	}
	return kv
}
