package types

import "context"

// Request-scoped identifiers. The auth middleware sets the user, the
// request id middleware the trace id and the orchestrator the session.
// Agents and the profile analyzer read them back for logs and spans.
type ctxKey int

const (
	traceIDKey ctxKey = iota
	userIDKey
	sessionIDKey
)

func lookup(ctx context.Context, k ctxKey) (string, bool) {
	v, _ := ctx.Value(k).(string)
	return v, v != ""
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID reports false when no non-empty trace id is set.
func TraceID(ctx context.Context) (string, bool) { return lookup(ctx, traceIDKey) }

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func UserID(ctx context.Context) (string, bool) { return lookup(ctx, userIDKey) }

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionID(ctx context.Context) (string, bool) { return lookup(ctx, sessionIDKey) }
