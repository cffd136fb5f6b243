package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"taskhub.dev/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit events through an injected slog logger.
type Logger struct {
	log *slog.Logger
	now func() time.Time
}

// New returns an audit logger. A nil slog logger disables output.
func New(log *slog.Logger) *Logger {
	return &Logger{log: log, now: time.Now}
}

// LogEvent writes an audit entry enriched with request and user context.
func (l *Logger) LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if l == nil || l.log == nil {
		return nil
	}
	attrs := []any{
		slog.String("type", "audit"),
		slog.String("event", event),
		slog.String("ts", l.now().UTC().Format(time.RFC3339Nano)),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	copyFields := make([]any, 0, len(fields))
	for k, v := range fields {
		copyFields = append(copyFields, slog.Any(k, v))
	}
	attrs = append(attrs, slog.Group("fields", copyFields...))

	l.log.InfoContext(ctx, "audit", attrs...)
	return nil
}
