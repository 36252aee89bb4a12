// Package net carries request-scoped identity between middleware and
// handlers and defines the JSON error envelope the transports share.
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type actorKey struct{}
type clientKey struct{}

// WithRequest seeds the chi request id slot. The RequestID middleware does
// this on real traffic; tests use it to fake an inbound id
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, reqID)
}

// RequestID returns the chi request id, or "" before the middleware ran
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// WithActor records which authenticated admin credential is acting
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the admin actor label, or "" for unauthenticated requests
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClient records the admission key the rate limiter charged
func WithClient(ctx context.Context, client string) context.Context {
	if client == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, client)
}

// Client returns the admission key, or "" when no limit applied
func Client(ctx context.Context) string {
	if v, ok := ctx.Value(clientKey{}).(string); ok {
		return v
	}
	return ""
}
