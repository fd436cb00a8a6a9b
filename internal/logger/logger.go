// Package logger provides structured, context-carrying logging built on
// logrus. Every call site passes the request context so that a trace id
// attached via WithTraceID (and copied onto derived contexts by
// CloneContext) flows into every log line for that request.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel adjusts the base logger's level, e.g. from Config.Env.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// WithTraceID returns a context carrying a logger entry pre-populated with
// trace_id, so every subsequent call using that context is correlated.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	entry := base.WithField("trace_id", traceID)
	return context.WithValue(ctx, ctxKey{}, entry)
}

// CloneContext copies the logging entry (if any) from src onto dst, used
// when spawning a derived context (e.g. per-expert sub-context) that must
// keep the same trace correlation but its own cancellation.
func CloneContext(dst, src context.Context) context.Context {
	if entry, ok := src.Value(ctxKey{}).(*logrus.Entry); ok {
		return context.WithValue(dst, ctxKey{}, entry)
	}
	return dst
}

// GetLogger returns the *logrus.Entry attached to ctx, or a bare entry on
// the base logger if none was attached.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(base)
}

func Info(ctx context.Context, args ...interface{})  { GetLogger(ctx).Info(args...) }
func Infof(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Infof(format, args...)
}
func Warnf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Warnf(format, args...)
}
func Errorf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Errorf(format, args...)
}
func Debugf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Debugf(format, args...)
}

// ErrorWithFields logs err with additional structured fields.
func ErrorWithFields(ctx context.Context, err error, fields map[string]interface{}) {
	entry := GetLogger(ctx).WithError(err)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error("error")
}
