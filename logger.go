package framegate

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the interface for logging in framegate.
// Adapters for zap and zerolog live in the logging package.
//
// All methods take a context and alternating key-value pairs:
//
//	logger.InfoContext(ctx, "low performance mode on",
//	    "fps", 28.5,
//	    "score", 0.41)
//
// The monitor logs platform-capability problems at debug level only; mode
// transitions are logged at info.
type Logger interface {
	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)
}

// NoOpLogger discards all output.
type NoOpLogger struct{}

// DebugContext implements Logger.
func (NoOpLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {}

// InfoContext implements Logger.
func (NoOpLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {}

// WarnContext implements Logger.
func (NoOpLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {}

// ErrorContext implements Logger.
func (NoOpLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {}

// NewDefaultLogger returns a text logger on stderr at info level, tagged
// with component=framegate.
func NewDefaultLogger() *SlogAdapter {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return NewSlogAdapter(slog.New(handler).With("component", "framegate"))
}

// SlogAdapter wraps a slog.Logger to implement Logger.
//
//	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	m := framegate.New(framegate.WithLogger(framegate.NewSlogAdapter(slog.New(handler))))
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new slog adapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// DebugContext implements Logger.
func (s *SlogAdapter) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.DebugContext(ctx, msg, keysAndValues...)
}

// InfoContext implements Logger.
func (s *SlogAdapter) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.InfoContext(ctx, msg, keysAndValues...)
}

// WarnContext implements Logger.
func (s *SlogAdapter) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.WarnContext(ctx, msg, keysAndValues...)
}

// ErrorContext implements Logger.
func (s *SlogAdapter) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.ErrorContext(ctx, msg, keysAndValues...)
}

func loggerOrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
