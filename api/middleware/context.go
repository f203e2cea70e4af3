package middleware

import "context"

type contextKey string

const (
	ctxActor     contextKey = "actor"
	ctxRole      contextKey = "actor_role"
	ctxRequestID contextKey = "request_id"
)

// ActorFromContext returns the admin subject recorded by AdminAuth.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActor).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the acting admin into the context.
func WithActor(ctx context.Context, actor, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActor, actor)
	return context.WithValue(ctx, ctxRole, role)
}
