package logging

import (
	"context"

	"github.com/mushtruk/framegate"
	"go.uber.org/zap"
)

// ZapAdapter adapts zap.Logger to framegate.Logger interface.
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter creates a new zap adapter.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: logger}
}

// DebugContext implements framegate.Logger.
func (z *ZapAdapter) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	if ce := z.logger.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(toZapFields(keysAndValues)...)
	}
}

// InfoContext implements framegate.Logger.
func (z *ZapAdapter) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Info(msg, toZapFields(keysAndValues)...)
}

// WarnContext implements framegate.Logger.
func (z *ZapAdapter) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Warn(msg, toZapFields(keysAndValues)...)
}

// ErrorContext implements framegate.Logger.
func (z *ZapAdapter) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Error(msg, toZapFields(keysAndValues)...)
}

func toZapFields(keysAndValues []any) []zap.Field {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, zap.Any(fieldKey(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}

// Verify interface compliance at compile time.
var _ framegate.Logger = (*ZapAdapter)(nil)
