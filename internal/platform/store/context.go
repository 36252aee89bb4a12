package store

import "context"

type reqIDKey struct{}

// WithRequestID tags the context with a correlation id. The SQL tracer
// stamps it on every statement logged under this context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, id)
}

// RequestID reports the correlation id when one is set and non-empty
func RequestID(ctx context.Context) (string, bool) {
	s, _ := ctx.Value(reqIDKey{}).(string)
	return s, s != ""
}
