package logging

import (
	"context"

	"github.com/mushtruk/framegate"
	"github.com/rs/zerolog"
)

// ZeroLogAdapter adapts zerolog.Logger to framegate.Logger interface.
type ZeroLogAdapter struct {
	logger zerolog.Logger
}

// NewZeroLogAdapter creates a new zerolog adapter.
func NewZeroLogAdapter(logger zerolog.Logger) *ZeroLogAdapter {
	return &ZeroLogAdapter{logger: logger}
}

// DebugContext implements framegate.Logger.
func (z *ZeroLogAdapter) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	addFields(z.logger.Debug().Ctx(ctx), keysAndValues).Msg(msg)
}

// InfoContext implements framegate.Logger.
func (z *ZeroLogAdapter) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	addFields(z.logger.Info().Ctx(ctx), keysAndValues).Msg(msg)
}

// WarnContext implements framegate.Logger.
func (z *ZeroLogAdapter) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	addFields(z.logger.Warn().Ctx(ctx), keysAndValues).Msg(msg)
}

// ErrorContext implements framegate.Logger.
func (z *ZeroLogAdapter) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	addFields(z.logger.Error().Ctx(ctx), keysAndValues).Msg(msg)
}

func addFields(event *zerolog.Event, keysAndValues []any) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		event = event.Interface(fieldKey(keysAndValues[i]), keysAndValues[i+1])
	}
	return event
}

// Verify interface compliance at compile time.
var _ framegate.Logger = (*ZeroLogAdapter)(nil)
