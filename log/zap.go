package log

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

var _ Logger = (*zapLogger)(nil)

// Zap adapts a *zap.Logger to the Logger interface.
func Zap(l *zap.Logger) Logger {
	return &zapLogger{logger: l}
}

type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Log(ctx context.Context, msg string, fields ...Field) {
	zapFields := make([]zap.Field, 0, len(fields)+1)
	if names := NamesFromContext(ctx); len(names) > 0 {
		zapFields = append(zapFields, zap.String("scope", strings.Join(names, ".")))
	}
	for _, f := range fields {
		zapFields = append(zapFields, fieldToZap(f))
	}

	switch LevelFromContext(ctx) {
	case TRACE, DEBUG:
		l.logger.Debug(msg, zapFields...)
	case INFO:
		l.logger.Info(msg, zapFields...)
	case WARN:
		l.logger.Warn(msg, zapFields...)
	case ERROR:
		l.logger.Error(msg, zapFields...)
	case FATAL:
		l.logger.Fatal(msg, zapFields...)
	default:
	}
}

func fieldToZap(f Field) zap.Field {
	switch f.Type() {
	case IntType:
		return zap.Int(f.Key(), f.IntValue())
	case Int64Type:
		return zap.Int64(f.Key(), f.Int64Value())
	case StringType:
		return zap.String(f.Key(), f.StringValue())
	case BoolType:
		return zap.Bool(f.Key(), f.BoolValue())
	case DurationType:
		return zap.Duration(f.Key(), f.DurationValue())
	case ErrorType:
		return zap.NamedError(f.Key(), f.ErrorValue())
	case AnyType:
		return zap.Any(f.Key(), f.AnyValue())
	default:
		return zap.Skip()
	}
}
