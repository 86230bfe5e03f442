package logging

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
)

// NewZap returns a Logger backed by zap. Arguments follow the slog key/value
// convention; slog.Attr values are converted to zap fields. Passing nil binds
// to zap.L().
func NewZap(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.L()
	}
	return &zapLogger{sugar: logger.Sugar()}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.sugar.Debugw(msg, zapArgs(originArgs(ctx, args))...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, args ...any) {
	l.sugar.Infow(msg, zapArgs(originArgs(ctx, args))...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.sugar.Warnw(msg, zapArgs(originArgs(ctx, args))...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, args ...any) {
	l.sugar.Errorw(msg, zapArgs(originArgs(ctx, args))...)
}

func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(zapArgs(args)...)}
}

// zapArgs rewrites slog.Attr arguments as zap.Field, which the sugared logger
// accepts alongside plain key/value pairs.
func zapArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if attr, ok := arg.(slog.Attr); ok {
			out[i] = attrField(attr)
			continue
		}
		out[i] = arg
	}
	return out
}

// attrField maps an slog.Attr onto a zap field; groups become nested
// dictionaries.
func attrField(attr slog.Attr) zap.Field {
	v := attr.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return zap.Any(attr.Key, v.Any())
	}
	group := v.Group()
	fields := make([]zap.Field, len(group))
	for i, a := range group {
		fields[i] = attrField(a)
	}
	return zap.Dict(attr.Key, fields...)
}
