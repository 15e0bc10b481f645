// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key carrying the per-request correlation id.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *Logger
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{
		tableName: tableName,
		logger:    GlobalLogger,
	}
}

// LogWrite logs a repository write operation.
func (l *RepoLogger) LogWrite(ctx context.Context, operation string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "repository write", attrs...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// FeedLogger provides structured logging for subscription channels.
type FeedLogger struct {
	component string
	logger    *Logger
}

// NewFeedLogger creates a new FeedLogger for the given component.
func NewFeedLogger(component string) *FeedLogger {
	return &FeedLogger{
		component: component,
		logger:    GlobalLogger,
	}
}

// LogChannelOpen logs the opening of an upstream channel.
func (l *FeedLogger) LogChannelOpen(ctx context.Context, key string) {
	l.logger.InfoContext(ctx, "channel opened",
		slog.String("component", l.component),
		slog.String("channel", key),
	)
}

// LogChannelClose logs the teardown of an upstream channel.
func (l *FeedLogger) LogChannelClose(ctx context.Context, key string, reason string) {
	l.logger.InfoContext(ctx, "channel closed",
		slog.String("component", l.component),
		slog.String("channel", key),
		slog.String("reason", reason),
	)
}

// LogDegraded logs a channel that failed to open and is running pull-only.
func (l *FeedLogger) LogDegraded(ctx context.Context, key string, err error) {
	l.logger.WarnContext(ctx, "channel degraded, live updates unavailable",
		slog.String("component", l.component),
		slog.String("channel", key),
		slog.String("error", err.Error()),
	)
}

// LogDeliveryError logs a failure inside a listener callback or decoder.
func (l *FeedLogger) LogDeliveryError(ctx context.Context, key string, err error) {
	l.logger.ErrorContext(ctx, "event delivery error",
		slog.String("component", l.component),
		slog.String("channel", key),
		slog.String("error", err.Error()),
	)
}

// LogSideEffectFailure logs a post-commit side effect that failed. The primary
// write already succeeded, so this is never escalated to the caller.
func LogSideEffectFailure(ctx context.Context, effect string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("effect", effect),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.ErrorContext(ctx, "side effect failed", attrs...)
}
