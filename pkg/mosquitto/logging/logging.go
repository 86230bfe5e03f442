package logging

import (
	"context"
	"log/slog"
)

const redactedPlaceholder = "[redacted]"

// OriginKey is the attribute added to records logged from a native callback.
const OriginKey = "origin"

// Logger is what the mosquitto client logs through. Methods take a context
// so records emitted on the native network thread can be told apart from
// records emitted on the owner's goroutines, see Callback.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

type callbackKey struct{}

// Callback returns a context marking work done on the native library's
// network thread. Loggers from this package tag such records with
// origin=native.
func Callback(ctx context.Context) context.Context {
	return context.WithValue(ctx, callbackKey{}, true)
}

// FromCallback reports whether ctx was produced by Callback.
func FromCallback(ctx context.Context) bool {
	v, _ := ctx.Value(callbackKey{}).(bool)
	return v
}

// originArgs appends origin=native to args for callback contexts.
func originArgs(ctx context.Context, args []any) []any {
	if ctx == nil || !FromCallback(ctx) {
		return args
	}
	return append(args[:len(args):len(args)], slog.String(OriginKey, "native"))
}

// New returns a Logger backed by logger, or by slog.Default() when nil.
func New(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, msg, originArgs(ctx, args)...)
}

func (l *slogLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *slogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *slogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

// Status groups a native status code with its text: status.rc, status.text.
func Status(rc int, text string) slog.Attr {
	return slog.Group("status", slog.Int("rc", rc), slog.String("text", text))
}

// Redacted keeps key in the record but replaces its value. Credentials are
// logged only through it.
func Redacted(key string) slog.Attr {
	return slog.String(key, redactedPlaceholder)
}

// Placeholder returns the string Redacted logs in place of a value.
func Placeholder() string {
	return redactedPlaceholder
}
