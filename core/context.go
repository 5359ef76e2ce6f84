package core

import "context"

type invocationKey struct{}

// WithInvocationID returns a copy of ctx carrying the graph invocation ID.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// InvocationIDFromContext returns the invocation ID stored in ctx, if any.
func InvocationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}
