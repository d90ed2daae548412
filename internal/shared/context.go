package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the session to the request context. The
// session middleware installs it; handlers and the RBAC layer read it back.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the session stored in ctx, or nil when the
// request never passed through the session middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
